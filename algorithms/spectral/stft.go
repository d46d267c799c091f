package spectral

import (
	"fmt"
	"math/cmplx"

	"github.com/chordscape/chordscape/algorithms/windowing"
)

// STFT provides Short-Time Fourier Transform analysis and resynthesis.
// The harmonic/percussive separation stage masks the complex spectrogram
// and reconstructs the harmonic signal with Inverse.
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Complex    [][]complex128 `json:"-"`           // Time x Frequency complex spectrogram
	Magnitude  [][]float64    `json:"magnitude"`   // Time x Frequency magnitude matrix
	TimeFrames int            `json:"time_frames"` // Number of time frames
	FreqBins   int            `json:"freq_bins"`   // Number of positive-frequency bins
	SampleRate int            `json:"sample_rate"` // Sample rate
	WindowSize int            `json:"window_size"` // FFT window size
	HopSize    int            `json:"hop_size"`    // Hop size between frames
	SignalLen  int            `json:"signal_len"`  // Original signal length, for resynthesis
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute computes the STFT of a signal with a Hann analysis window
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for window size %d", windowSize)
	}

	freqBins := windowSize/2 + 1
	window := windowing.NewHann(windowSize, false)

	complexSpectrum := make([][]complex128, numFrames)
	magnitude := make([][]float64, numFrames)

	frameBuffer := make([]float64, windowSize)
	for frameIdx := range numFrames {
		startIdx := frameIdx * hopSize
		copy(frameBuffer, signal[startIdx:startIdx+windowSize])

		if err := window.ApplyInPlace(frameBuffer); err != nil {
			return nil, err
		}

		fftResult := s.fft.Compute(frameBuffer)

		complexSpectrum[frameIdx] = make([]complex128, freqBins)
		magnitude[frameIdx] = make([]float64, freqBins)
		for i := range freqBins {
			complexSpectrum[frameIdx][i] = fftResult[i]
			magnitude[frameIdx][i] = cmplx.Abs(fftResult[i])
		}
	}

	return &STFTResult{
		Complex:    complexSpectrum,
		Magnitude:  magnitude,
		TimeFrames: numFrames,
		FreqBins:   freqBins,
		SampleRate: sampleRate,
		WindowSize: windowSize,
		HopSize:    hopSize,
		SignalLen:  len(signal),
	}, nil
}

// Inverse reconstructs a time-domain signal from a (possibly masked) complex
// spectrogram using windowed overlap-add with window-square normalization
func (s *STFT) Inverse(frames [][]complex128, windowSize, hopSize, signalLen int) []float64 {
	if len(frames) == 0 || windowSize <= 0 || hopSize <= 0 {
		return nil
	}

	window := windowing.NewHann(windowSize, false)
	coeffs := window.GetCoefficients()

	output := make([]float64, signalLen)
	windowSum := make([]float64, signalLen)

	fullSpectrum := make([]complex128, windowSize)
	for frameIdx, frame := range frames {
		// Rebuild the full spectrum from positive frequencies via
		// conjugate symmetry
		for i := range frame {
			fullSpectrum[i] = frame[i]
		}
		for i := len(frame); i < windowSize; i++ {
			fullSpectrum[i] = cmplx.Conj(frame[windowSize-i])
		}

		timeFrame := s.fft.ComputeInverseReal(fullSpectrum)

		startIdx := frameIdx * hopSize
		for i := 0; i < windowSize && startIdx+i < signalLen; i++ {
			output[startIdx+i] += timeFrame[i] * coeffs[i]
			windowSum[startIdx+i] += coeffs[i] * coeffs[i]
		}
	}

	for i := range output {
		if windowSum[i] > 1e-10 {
			output[i] /= windowSum[i]
		}
	}

	return output
}
