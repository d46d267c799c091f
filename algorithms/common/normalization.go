package common

import (
	"math"
)

// NormalizationType defines normalization method
type NormalizationType int

const (
	ZScore NormalizationType = iota
	MinMax
	Energy
	Peak
	UnitSum
)

// Normalizer provides the vector normalization methods used by the
// chroma extractor and the chord classifier
type Normalizer struct {
	method NormalizationType
}

// NewNormalizer creates a new normalizer
func NewNormalizer(method NormalizationType) *Normalizer {
	return &Normalizer{
		method: method,
	}
}

// Normalize normalizes signal using the specified method
func (n *Normalizer) Normalize(signal []float64) []float64 {
	switch n.method {
	case ZScore:
		return n.zScoreNormalize(signal)
	case MinMax:
		return MinMaxNormalize(signal)
	case Energy:
		return n.energyNormalize(signal)
	case Peak:
		return n.peakNormalize(signal)
	case UnitSum:
		return n.unitSumNormalize(signal)
	default:
		return n.zScoreNormalize(signal)
	}
}

// zScoreNormalize normalizes to zero mean and unit variance
func (n *Normalizer) zScoreNormalize(signal []float64) []float64 {
	if len(signal) == 0 {
		return signal
	}

	mean := Mean(signal)
	std := StandardDeviation(signal)

	normalized := make([]float64, len(signal))
	if std < 1e-10 {
		// Constant signal: only remove the mean
		for i, val := range signal {
			normalized[i] = val - mean
		}
		return normalized
	}

	for i, val := range signal {
		normalized[i] = (val - mean) / std
	}

	return normalized
}

// energyNormalize normalizes by total energy (L2 norm)
func (n *Normalizer) energyNormalize(signal []float64) []float64 {
	if len(signal) == 0 {
		return signal
	}

	energy := 0.0
	for _, val := range signal {
		energy += val * val
	}

	if energy < 1e-10 {
		return signal // Return unchanged if no energy
	}

	energyNorm := math.Sqrt(energy)
	normalized := make([]float64, len(signal))
	for i, val := range signal {
		normalized[i] = val / energyNorm
	}

	return normalized
}

// peakNormalize normalizes by peak absolute value
func (n *Normalizer) peakNormalize(signal []float64) []float64 {
	if len(signal) == 0 {
		return signal
	}

	peak := 0.0
	for _, val := range signal {
		abs := math.Abs(val)
		if abs > peak {
			peak = abs
		}
	}

	if peak < 1e-10 {
		return signal // Return unchanged if no peak
	}

	normalized := make([]float64, len(signal))
	for i, val := range signal {
		normalized[i] = val / peak
	}

	return normalized
}

// unitSumNormalize scales a non-negative vector so its elements sum to 1.
// Vectors with a nonpositive sum are returned as all zeros.
func (n *Normalizer) unitSumNormalize(signal []float64) []float64 {
	if len(signal) == 0 {
		return signal
	}

	total := Sum(signal)
	normalized := make([]float64, len(signal))
	if total <= 0 {
		return normalized
	}

	for i, val := range signal {
		normalized[i] = val / total
	}

	return normalized
}
