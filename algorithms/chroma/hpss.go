package chroma

import (
	"fmt"
	"math"

	"github.com/chordscape/chordscape/algorithms/common"
	"github.com/chordscape/chordscape/algorithms/spectral"
)

// HPSSParams contains configuration for harmonic/percussive separation
type HPSSParams struct {
	WindowSize   int     `json:"window_size"`   // STFT window size
	HopSize      int     `json:"hop_size"`      // STFT hop size
	HarmonicSize int     `json:"harmonic_size"` // Median filter length along time (frames)
	PercussSize  int     `json:"percuss_size"`  // Median filter length along frequency (bins)
	MaskPower    float64 `json:"mask_power"`    // Soft mask exponent
}

// HPSS separates the harmonic component of a signal from transients using
// median filtering of the STFT magnitude. Harmonic content forms horizontal
// ridges in the spectrogram (stable across time), percussive content forms
// vertical ridges (broadband within a frame); filtering along each axis and
// soft-masking recovers the harmonic part for chroma extraction.
type HPSS struct {
	params HPSSParams
	stft   *spectral.STFT
}

// NewHPSS creates an HPSS separator with default parameters
func NewHPSS() *HPSS {
	return NewHPSSWithParams(HPSSParams{
		WindowSize:   2048,
		HopSize:      512,
		HarmonicSize: 17,
		PercussSize:  17,
		MaskPower:    2.0,
	})
}

// NewHPSSWithParams creates an HPSS separator with custom parameters
func NewHPSSWithParams(params HPSSParams) *HPSS {
	return &HPSS{
		params: params,
		stft:   spectral.NewSTFT(),
	}
}

// Harmonic returns the harmonic component of the signal. Signals shorter
// than one analysis window are returned unchanged.
func (h *HPSS) Harmonic(signal []float64, sampleRate int) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if len(signal) < h.params.WindowSize {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out, nil
	}

	result, err := h.stft.Compute(signal, h.params.WindowSize, h.params.HopSize, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("harmonic separation failed: %w", err)
	}

	harmonic := h.filterTime(result.Magnitude)
	percussive := h.filterFreq(result.Magnitude)

	// Wiener-style soft mask applied to the complex spectrogram
	masked := make([][]complex128, result.TimeFrames)
	for t := range result.TimeFrames {
		masked[t] = make([]complex128, result.FreqBins)
		for f := range result.FreqBins {
			hPow := math.Pow(harmonic[t][f], h.params.MaskPower)
			pPow := math.Pow(percussive[t][f], h.params.MaskPower)
			total := hPow + pPow
			if total > 1e-10 {
				masked[t][f] = result.Complex[t][f] * complex(hPow/total, 0)
			}
		}
	}

	return h.stft.Inverse(masked, h.params.WindowSize, h.params.HopSize, result.SignalLen), nil
}

// filterTime median-filters each frequency bin across time frames
func (h *HPSS) filterTime(magnitude [][]float64) [][]float64 {
	numFrames := len(magnitude)
	numBins := len(magnitude[0])

	filtered := make([][]float64, numFrames)
	for t := range numFrames {
		filtered[t] = make([]float64, numBins)
	}

	column := make([]float64, numFrames)
	for f := range numBins {
		for t := range numFrames {
			column[t] = magnitude[t][f]
		}
		smoothed := common.MedianFilter(column, h.params.HarmonicSize)
		for t := range numFrames {
			filtered[t][f] = smoothed[t]
		}
	}

	return filtered
}

// filterFreq median-filters each frame across frequency bins
func (h *HPSS) filterFreq(magnitude [][]float64) [][]float64 {
	filtered := make([][]float64, len(magnitude))
	for t, frame := range magnitude {
		filtered[t] = common.MedianFilter(frame, h.params.PercussSize)
	}
	return filtered
}
