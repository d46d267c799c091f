package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/chordscape/chordscape/algorithms/chroma"
	"github.com/chordscape/chordscape/algorithms/tonal"
	"github.com/chordscape/chordscape/logging"
	"github.com/chordscape/chordscape/training"
	"github.com/chordscape/chordscape/transcode"
)

// Config aggregates the parameters of every stage
type Config struct {
	SampleRate int                         `json:"sample_rate"`
	Decoder    *transcode.DecoderConfig    `json:"decoder"`
	Downloader *transcode.DownloaderConfig `json:"downloader"`
	Extractor  chroma.ExtractorParams      `json:"extractor"`
	Detection  tonal.DetectionParams       `json:"detection"`
	Segmenter  tonal.SegmenterParams       `json:"segmenter"`
	Miner      tonal.MinerParams           `json:"miner"`
	Key        tonal.KeyParams             `json:"key"`
}

// DefaultConfig returns the standard end-to-end settings
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 22050,
		Decoder:    transcode.DefaultDecoderConfig(),
		Downloader: transcode.DefaultDownloaderConfig(),
		Extractor:  chroma.DefaultExtractorParams(),
		Detection:  tonal.DefaultDetectionParams(),
		Segmenter:  tonal.DefaultSegmenterParams(),
		Miner:      tonal.DefaultMinerParams(),
		Key:        tonal.DefaultKeyParams(),
	}
}

// ChordSpan is one chord of the result sequence in serialized form
type ChordSpan struct {
	Chord     string  `json:"chord"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// ProgressionResult is one mined progression in serialized form
type ProgressionResult struct {
	Progression []string `json:"progression"`
	Count       int      `json:"count"`
	Length      int      `json:"length"`
	Function    string   `json:"function"`
}

// Result is the full outcome of one analysis run. An empty chord sequence
// with "Unknown Key" is a valid result for degenerate input, not an error.
type Result struct {
	ChordSequence []ChordSpan         `json:"chord_sequence"`
	Progressions  []ProgressionResult `json:"progressions"`
	EstimatedKey  string              `json:"estimated_key"`
	Duration      float64             `json:"duration"`
	ElapsedMs     int64               `json:"elapsed_ms"`
}

// Pipeline orchestrates one analysis: acquire, decode, extract chroma,
// classify and segment, mine progressions, estimate the key. A run is
// single-threaded and CPU-bound; concurrency lives at the serving boundary,
// where each request gets its own goroutine. The only shared state is the
// read-only template bank and the atomic weight snapshot.
type Pipeline struct {
	config     *Config
	bank       *tonal.TemplateBank
	extractor  *chroma.Extractor
	segmenter  *tonal.Segmenter
	miner      *tonal.Miner
	decoder    *transcode.Decoder
	downloader *transcode.Downloader
	weights    *training.Registry
	logger     logging.Logger
}

// New creates an analysis pipeline. A nil registry gets default weights.
func New(config *Config, weights *training.Registry) (*Pipeline, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if weights == nil {
		weights = training.NewRegistry()
	}

	extractor, err := chroma.NewExtractorWithParams(config.SampleRate, config.Extractor)
	if err != nil {
		return nil, fmt.Errorf("failed to build chroma extractor: %w", err)
	}

	return &Pipeline{
		config:     config,
		bank:       tonal.NewTemplateBank(),
		extractor:  extractor,
		segmenter:  tonal.NewSegmenterWithParams(config.SampleRate, config.Extractor.HopSize, config.Segmenter),
		miner:      tonal.NewMinerWithParams(config.Miner),
		decoder:    transcode.NewDecoder(config.Decoder),
		downloader: transcode.NewDownloader(config.Downloader),
		weights:    weights,
		logger: logging.WithFields(logging.Fields{
			"component": "pipeline",
		}),
	}, nil
}

// Weights exposes the active weight registry
func (p *Pipeline) Weights() *training.Registry {
	return p.weights
}

// AnalyzeURL downloads the source audio and analyzes it. Progress callbacks
// are optional.
func (p *Pipeline) AnalyzeURL(ctx context.Context, url string, progress ProgressFunc) (*Result, error) {
	report(progress, StageDownloading, "Downloading audio")

	path, err := p.downloader.Fetch(ctx, url)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}

	return p.AnalyzeFile(ctx, path, progress)
}

// AnalyzeFile analyzes a local audio file. Cancellation is cooperative:
// the context is checked at stage boundaries, and a stage that has already
// started runs to completion before the check is observed.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	start := time.Now()

	report(progress, StageExtracting, "Extracting audio features")

	audio, err := p.decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chromagram, err := p.extractor.Extract(audio.PCM)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report(progress, StageClassifying, "Identifying chords")

	// Snapshot the weights once; a concurrent training pass publishing a
	// new set must not be observed mid-run
	snapshot := p.weights.Current()

	detection := applyChordWeights(p.config.Detection, snapshot.ChordWeights)
	classifier := tonal.NewClassifierWithParams(p.bank, detection)

	labels := classifier.ClassifyFrames(chromagram.Frames)
	segments := p.segmenter.Segment(labels)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report(progress, StageEstimating, "Estimating key and progressions")

	progressions := p.miner.Mine(segments)

	keyParams := p.config.Key
	estimator := tonal.NewKeyEstimatorWithParams(keyParams)
	estimator.SetWeights(snapshot.KeyWeights)
	keyEstimate := estimator.Estimate(chromagram.Frames, segments)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := buildResult(segments, progressions, keyEstimate, audio.Duration.Seconds())
	result.ElapsedMs = time.Since(start).Milliseconds()

	p.logger.Info("analysis complete", logging.Fields{
		"source":     path,
		"segments":   len(result.ChordSequence),
		"key":        result.EstimatedKey,
		"elapsed_ms": result.ElapsedMs,
	})

	report(progress, StageComplete, "Analysis complete")
	return result, nil
}

// applyChordWeights maps a trained chord weight snapshot onto detection
// parameters: bass_emphasis replaces the root/fifth boost directly,
// harmonic_context is the extra root boost above unity, and cluster_penalty
// is the margin cluster shapes must clear above the ordinary detection
// threshold. Missing or non-positive entries leave the configured value
// alone.
func applyChordWeights(params tonal.DetectionParams, weights map[string]float64) tonal.DetectionParams {
	if w, ok := weights[training.ChordWeightBassEmphasis]; ok && w > 0 {
		params.BassEmphasis = w
	}
	if w, ok := weights[training.ChordWeightHarmonicContext]; ok && w > 0 {
		params.HarmonicEmphasis = 1.0 + w
	}
	if w, ok := weights[training.ChordWeightClusterPenalty]; ok && w > 0 {
		params.ClusterThreshold = params.DetectionThreshold + w
	}
	return params
}

func buildResult(segments []tonal.ChordSegment, progressions []tonal.Progression, key tonal.KeyEstimate, duration float64) *Result {
	spans := make([]ChordSpan, len(segments))
	for i, seg := range segments {
		spans[i] = ChordSpan{
			Chord:     seg.Chord.String(),
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
			Duration:  seg.Duration,
		}
	}

	mined := make([]ProgressionResult, len(progressions))
	for i := range progressions {
		mined[i] = ProgressionResult{
			Progression: progressions[i].Labels(),
			Count:       progressions[i].Count,
			Length:      progressions[i].Length,
			Function:    progressions[i].Function,
		}
	}

	return &Result{
		ChordSequence: spans,
		Progressions:  mined,
		EstimatedKey:  key.Key.String(),
		Duration:      duration,
	}
}

func report(progress ProgressFunc, stage Stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
