package chroma

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolay smooths a time series by least-squares fitting a low-order
// polynomial over a sliding window. Unlike a moving average it preserves the
// position and height of peaks, which keeps chord onsets sharp while removing
// frame-to-frame jitter in the chroma bins.
type SavitzkyGolay struct {
	windowSize int
	polyOrder  int
	coeffs     []float64
}

// NewSavitzkyGolay creates a smoother with the given window size (must be odd)
// and polynomial order (must be smaller than the window size).
func NewSavitzkyGolay(windowSize, polyOrder int) (*SavitzkyGolay, error) {
	if windowSize < 3 || windowSize%2 == 0 {
		return nil, fmt.Errorf("window size must be odd and >= 3, got %d", windowSize)
	}
	if polyOrder < 0 || polyOrder >= windowSize {
		return nil, fmt.Errorf("polynomial order %d invalid for window size %d", polyOrder, windowSize)
	}

	sg := &SavitzkyGolay{
		windowSize: windowSize,
		polyOrder:  polyOrder,
	}
	if err := sg.computeCoefficients(); err != nil {
		return nil, err
	}
	return sg, nil
}

// computeCoefficients derives the convolution kernel from the Vandermonde
// matrix of window offsets: the smoothed center value is the first row of
// the pseudo-inverse (AᵀA)⁻¹Aᵀ applied to the window.
func (sg *SavitzkyGolay) computeCoefficients() error {
	half := sg.windowSize / 2
	cols := sg.polyOrder + 1

	a := mat.NewDense(sg.windowSize, cols, nil)
	for i := 0; i < sg.windowSize; i++ {
		offset := float64(i - half)
		power := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, power)
			power *= offset
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		return fmt.Errorf("failed to solve smoothing coefficients: %w", err)
	}

	var pinv mat.Dense
	pinv.Mul(&ataInv, a.T())

	sg.coeffs = make([]float64, sg.windowSize)
	for i := range sg.coeffs {
		sg.coeffs[i] = pinv.At(0, i)
	}

	return nil
}

// Smooth applies the filter to a series. Series shorter than the window are
// returned unchanged. Edges use mirror padding so the output keeps the input
// length.
func (sg *SavitzkyGolay) Smooth(series []float64) []float64 {
	n := len(series)
	out := make([]float64, n)
	if n < sg.windowSize {
		copy(out, series)
		return out
	}

	half := sg.windowSize / 2
	for i := range n {
		sum := 0.0
		for k := range sg.windowSize {
			idx := i + k - half
			// mirror padding at the boundaries
			if idx < 0 {
				idx = -idx
			}
			if idx >= n {
				idx = 2*n - 2 - idx
			}
			sum += sg.coeffs[k] * series[idx]
		}
		out[i] = sum
	}

	return out
}

// WindowSize returns the filter window length in samples
func (sg *SavitzkyGolay) WindowSize() int {
	return sg.windowSize
}
