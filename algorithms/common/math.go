package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions shared across the chord analysis algorithms,
// using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// Sum returns the sum of all elements using gonum
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// MinMaxNormalize normalizes data to [0, 1] range
func MinMaxNormalize(data []float64) []float64 {
	if len(data) == 0 {
		return data
	}

	min := floats.Min(data)
	max := floats.Max(data)

	if math.Abs(max-min) < 1e-10 {
		// Constant data maps to all zeros
		return make([]float64, len(data))
	}

	normalized := make([]float64, len(data))
	for i, val := range data {
		normalized[i] = (val - min) / (max - min)
	}

	return normalized
}

// MedianFilter applies median filtering with given window size
func MedianFilter(data []float64, windowSize int) []float64 {
	if len(data) == 0 || windowSize <= 0 {
		return data
	}

	if windowSize > len(data) {
		windowSize = len(data)
	}

	result := make([]float64, len(data))
	halfWindow := windowSize / 2

	for i := range data {
		start := i - halfWindow
		end := i + halfWindow + 1

		if start < 0 {
			start = 0
		}
		if end > len(data) {
			end = len(data)
		}

		window := make([]float64, end-start)
		copy(window, data[start:end])
		sort.Float64s(window)

		mid := len(window) / 2
		if len(window)%2 == 0 {
			result[i] = (window[mid-1] + window[mid]) / 2.0
		} else {
			result[i] = window[mid]
		}
	}

	return result
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
