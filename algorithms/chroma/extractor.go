package chroma

import (
	"fmt"
	"math"

	"github.com/chordscape/chordscape/algorithms/common"
	"github.com/chordscape/chordscape/logging"
)

// ExtractorParams contains configuration for chroma extraction
type ExtractorParams struct {
	HopSize         int  `json:"hop_size"`         // Analysis hop in samples
	SmoothingWindow int  `json:"smoothing_window"` // Savitzky-Golay window (odd)
	SmoothingOrder  int  `json:"smoothing_order"`  // Savitzky-Golay polynomial order
	UseHPSS         bool `json:"use_hpss"`         // Separate harmonics before analysis
}

// DefaultExtractorParams returns the extraction settings tuned for chord
// analysis at 22050 Hz
func DefaultExtractorParams() ExtractorParams {
	return ExtractorParams{
		HopSize:         512,
		SmoothingWindow: 15,
		SmoothingOrder:  3,
		UseHPSS:         true,
	}
}

// Chromagram is the output of chroma extraction: one 12-bin pitch-class
// energy vector per analysis frame, each normalized to unit sum.
type Chromagram struct {
	Frames     [][]float64 `json:"frames"`      // Time x 12 pitch-class energies
	SampleRate int         `json:"sample_rate"` // Source sample rate
	HopSize    int         `json:"hop_size"`    // Hop between frames in samples
}

// NumFrames returns the number of analysis frames
func (c *Chromagram) NumFrames() int {
	return len(c.Frames)
}

// FrameTime returns the time in seconds of the given frame index
func (c *Chromagram) FrameTime(frame int) float64 {
	return float64(frame) * float64(c.HopSize) / float64(c.SampleRate)
}

// Duration returns the total analyzed duration in seconds
func (c *Chromagram) Duration() float64 {
	return c.FrameTime(len(c.Frames))
}

// Extractor computes smoothed chromagrams for chord classification. The
// pipeline is harmonic separation, constant-Q analysis, pitch-class folding
// with a square nonlinearity, per-bin temporal smoothing, and per-frame
// unit-sum normalization.
type Extractor struct {
	params     ExtractorParams
	sampleRate int
	hpss       *HPSS
	cqt        *CQT
	smoother   *SavitzkyGolay
	normalizer *common.Normalizer
	logger     logging.Logger
}

// NewExtractor creates a chroma extractor with default parameters
func NewExtractor(sampleRate int) (*Extractor, error) {
	return NewExtractorWithParams(sampleRate, DefaultExtractorParams())
}

// NewExtractorWithParams creates a chroma extractor with custom parameters
func NewExtractorWithParams(sampleRate int, params ExtractorParams) (*Extractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	smoother, err := NewSavitzkyGolay(params.SmoothingWindow, params.SmoothingOrder)
	if err != nil {
		return nil, fmt.Errorf("invalid smoothing parameters: %w", err)
	}

	return &Extractor{
		params:     params,
		sampleRate: sampleRate,
		hpss:       NewHPSS(),
		cqt:        NewCQT(sampleRate),
		smoother:   smoother,
		normalizer: common.NewNormalizer(common.UnitSum),
		logger: logging.WithFields(logging.Fields{
			"component": "chroma_extractor",
		}),
	}, nil
}

// Extract computes the chromagram of a mono signal
func (e *Extractor) Extract(signal []float64) (*Chromagram, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	working := signal
	if e.params.UseHPSS {
		harmonic, err := e.hpss.Harmonic(signal, e.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("chroma extraction failed: %w", err)
		}
		working = harmonic
	}

	spectrogram, err := e.cqt.Compute(working, e.params.HopSize)
	if err != nil {
		return nil, fmt.Errorf("chroma extraction failed: %w", err)
	}

	frames := e.foldToChroma(spectrogram)
	e.smoothBins(frames)

	for t := range frames {
		frames[t] = e.normalizer.Normalize(frames[t])
	}

	e.logger.Debug("extracted chromagram", logging.Fields{
		"frames":   len(frames),
		"hop_size": e.params.HopSize,
	})

	return &Chromagram{
		Frames:     frames,
		SampleRate: e.sampleRate,
		HopSize:    e.params.HopSize,
	}, nil
}

// foldToChroma sums CQT bins into 12 pitch classes. Squaring the magnitudes
// before summing emphasizes the strongest partials, which sharpens the
// contrast between chord tones and accompaniment noise.
func (e *Extractor) foldToChroma(spectrogram [][]float64) [][]float64 {
	freqs := e.cqt.BinFrequencies()

	pitchClasses := make([]int, len(freqs))
	for k, freq := range freqs {
		pitchClasses[k] = e.cqt.PitchClass(freq)
	}

	frames := make([][]float64, len(spectrogram))
	for t, cqtFrame := range spectrogram {
		frame := make([]float64, 12)
		for k := range cqtFrame {
			frame[pitchClasses[k]] += cqtFrame[k] * cqtFrame[k]
		}
		frames[t] = frame
	}

	return frames
}

// smoothBins applies Savitzky-Golay smoothing to each pitch class over time
func (e *Extractor) smoothBins(frames [][]float64) {
	if len(frames) == 0 {
		return
	}

	series := make([]float64, len(frames))
	for bin := range 12 {
		for t := range frames {
			series[t] = frames[t][bin]
		}
		smoothed := e.smoother.Smooth(series)
		for t := range frames {
			// Smoothing can overshoot below zero near sharp transitions
			frames[t][bin] = math.Max(smoothed[t], 0)
		}
	}
}
