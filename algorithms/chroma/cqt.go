package chroma

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/chordscape/chordscape/algorithms/common"
	"github.com/chordscape/chordscape/algorithms/spectral"
)

// CQTParams contains configuration for the constant-Q transform
type CQTParams struct {
	MinFreq       float64 `json:"min_freq"`        // Lowest analyzed frequency (C1 = 32.70 Hz)
	BinsPerOctave int     `json:"bins_per_octave"` // Semitone resolution uses 12
	NumBins       int     `json:"num_bins"`        // Total CQT bins
	QFactor       float64 `json:"q_factor"`        // Quality factor (frequency / bandwidth)
	TuningFreq    float64 `json:"tuning_freq"`     // A4 reference, 440 Hz
}

// DefaultCQTParams returns the transform settings used for chord analysis:
// eight octaves upward from C1 at semitone resolution.
func DefaultCQTParams() CQTParams {
	return CQTParams{
		MinFreq:       32.70,
		BinsPerOctave: 12,
		NumBins:       96,
		QFactor:       25.0,
		TuningFreq:    440.0,
	}
}

// CQT computes a constant-Q spectrogram with logarithmic frequency spacing.
// Bin frequencies follow f_k = f_min * 2^(k / bins_per_octave), matching
// musical note spacing, so folding bins by pitch class gives chroma directly.
type CQT struct {
	params     CQTParams
	sampleRate int
	fft        *spectral.FFT

	// Pre-computed frequency-domain kernels, lazily built on first use
	kernel         [][]complex128
	freqBins       []float64
	kernelComputed bool
}

// NewCQT creates a constant-Q transform for the given sample rate
func NewCQT(sampleRate int) *CQT {
	return NewCQTWithParams(sampleRate, DefaultCQTParams())
}

// NewCQTWithParams creates a constant-Q transform with custom parameters
func NewCQTWithParams(sampleRate int, params CQTParams) *CQT {
	return &CQT{
		params:     params,
		sampleRate: sampleRate,
		fft:        spectral.NewFFT(),
	}
}

// Compute returns the CQT magnitude spectrogram (time x bins) of the signal
func (c *CQT) Compute(signal []float64, hopSize int) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if !c.kernelComputed {
		if err := c.computeKernel(); err != nil {
			return nil, err
		}
	}

	numFrames := len(signal) / hopSize
	if numFrames < 1 {
		numFrames = 1
	}

	fftSize := len(c.kernel[0])
	spectrogram := make([][]float64, numFrames)

	frame := make([]float64, fftSize)
	for frameIdx := range numFrames {
		startIdx := frameIdx * hopSize

		// Zero-padded frame centered on the hop position
		for i := range fftSize {
			srcIdx := startIdx + i - fftSize/2
			if srcIdx >= 0 && srcIdx < len(signal) {
				frame[i] = signal[srcIdx]
			} else {
				frame[i] = 0
			}
		}

		frameFFT := c.fft.Compute(frame)

		cqtFrame := make([]float64, len(c.freqBins))
		for k := range c.freqBins {
			// Pointwise product in the frequency domain is convolution
			// with the time-domain kernel
			bin := complex(0, 0)
			for n := range frameFFT {
				bin += frameFFT[n] * cmplx.Conj(c.kernel[k][n])
			}
			cqtFrame[k] = cmplx.Abs(bin) / float64(fftSize)
		}

		spectrogram[frameIdx] = cqtFrame
	}

	return spectrogram, nil
}

// computeKernel builds the frequency-domain CQT kernels: one Gaussian-windowed
// complex exponential per bin, transformed once so each analysis frame needs a
// single FFT plus dot products.
func (c *CQT) computeKernel() error {
	nyquist := float64(c.sampleRate) / 2.0

	c.freqBins = make([]float64, 0, c.params.NumBins)
	for k := range c.params.NumBins {
		freq := c.params.MinFreq * math.Pow(2.0, float64(k)/float64(c.params.BinsPerOctave))
		if freq >= nyquist {
			break
		}
		c.freqBins = append(c.freqBins, freq)
	}
	if len(c.freqBins) == 0 {
		return fmt.Errorf("no CQT bins below Nyquist (%0.1f Hz)", nyquist)
	}

	// The lowest bin has the longest kernel and sets the FFT size
	maxKernelLength := c.kernelLength(c.freqBins[0])
	fftSize := common.NextPowerOfTwo(maxKernelLength * 2)

	c.kernel = make([][]complex128, len(c.freqBins))
	for k, freq := range c.freqBins {
		kernelLength := c.kernelLength(freq)

		bandwidth := freq / c.params.QFactor
		sigma := float64(c.sampleRate) / (2.0 * math.Pi * bandwidth)

		kernel := make([]complex128, fftSize)
		center := kernelLength / 2
		norm := 0.0
		for n := range kernelLength {
			t := float64(n - center)
			window := math.Exp(-(t * t) / (2.0 * sigma * sigma))
			norm += window

			phase := 2.0 * math.Pi * freq * t / float64(c.sampleRate)
			kernel[n] = complex(window, 0) * cmplx.Exp(complex(0, phase))
		}

		// Unit-gain normalization keeps bins comparable across octaves
		if norm > 0 {
			for n := range kernelLength {
				kernel[n] /= complex(norm, 0)
			}
		}

		c.kernel[k] = c.fft.ComputeComplex(kernel)
	}

	c.kernelComputed = true
	return nil
}

// kernelLength returns the time support of the kernel for a frequency
func (c *CQT) kernelLength(frequency float64) int {
	length := int(c.params.QFactor * float64(c.sampleRate) / frequency)
	if length%2 == 0 {
		length++
	}
	if length < 3 {
		length = 3
	}
	if length > c.sampleRate/2 {
		length = c.sampleRate / 2
	}
	return length
}

// BinFrequencies returns the center frequency of each CQT bin
func (c *CQT) BinFrequencies() []float64 {
	if !c.kernelComputed {
		if err := c.computeKernel(); err != nil {
			return nil
		}
	}
	freqs := make([]float64, len(c.freqBins))
	copy(freqs, c.freqBins)
	return freqs
}

// PitchClass maps a CQT bin frequency to its chroma bin (0 = C)
func (c *CQT) PitchClass(frequency float64) int {
	if frequency <= 0 {
		return 0
	}
	midi := 69.0 + 12.0*math.Log2(frequency/c.params.TuningFreq)
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}
