package tonal

import (
	"github.com/chordscape/chordscape/logging"
)

// ChordSegment is a maximal contiguous time span assigned one stable chord
type ChordSegment struct {
	Chord     Chord   `json:"-"`
	StartTime float64 `json:"start_time"` // Seconds
	EndTime   float64 `json:"end_time"`   // Seconds
	Duration  float64 `json:"duration"`   // Always EndTime - StartTime
}

// SegmenterParams contains configuration for temporal smoothing
type SegmenterParams struct {
	WindowSize        int     `json:"window_size"`         // Majority-vote window (frames)
	MinDurationFrames int     `json:"min_duration_frames"` // Shortest run that survives
	MinChordDuration  float64 `json:"min_chord_duration"`  // Post-pass floor in seconds
}

// DefaultSegmenterParams returns the smoothing settings tuned for a
// 512-sample hop at 22050 Hz
func DefaultSegmenterParams() SegmenterParams {
	return SegmenterParams{
		WindowSize:        9,
		MinDurationFrames: 5,
		MinChordDuration:  0.5,
	}
}

// Segmenter majority-votes frame labels over a sliding window and merges the
// smoothed stream into chord segments. Runs shorter than the minimum frame
// count are dropped outright, never merged into a neighbor; cluster-shape
// runs must last twice the minimum to survive.
type Segmenter struct {
	params     SegmenterParams
	sampleRate int
	hopSize    int
	logger     logging.Logger
}

// NewSegmenter creates a segmenter with default parameters
func NewSegmenter(sampleRate, hopSize int) *Segmenter {
	return NewSegmenterWithParams(sampleRate, hopSize, DefaultSegmenterParams())
}

// NewSegmenterWithParams creates a segmenter with custom parameters
func NewSegmenterWithParams(sampleRate, hopSize int, params SegmenterParams) *Segmenter {
	return &Segmenter{
		params:     params,
		sampleRate: sampleRate,
		hopSize:    hopSize,
		logger: logging.WithFields(logging.Fields{
			"component": "segmenter",
		}),
	}
}

// frameRun is a maximal run of one smoothed label, measured in frames
type frameRun struct {
	chord  Chord
	frames int
}

// Segment converts a stream of frame labels into the final segment list:
// sliding-window smoothing, run assembly, frame-to-seconds conversion, then
// the cleanup pass that drops no-chord and sub-minimum segments and merges
// adjacent duplicates.
func (s *Segmenter) Segment(labels []Chord) []ChordSegment {
	runs := s.smoothToRuns(labels)
	segments := s.runsToSegments(runs)
	segments = s.cleanup(segments)

	s.logger.Debug("segmentation complete", logging.Fields{
		"frames":   len(labels),
		"segments": len(segments),
	})

	return segments
}

// smoothToRuns drives the majority-vote state machine over the label stream
func (s *Segmenter) smoothToRuns(labels []Chord) []frameRun {
	if len(labels) == 0 {
		return nil
	}

	window := make([]Chord, 0, s.params.WindowSize)
	var runs []frameRun

	currentLabel := NoChord
	runLength := 0
	haveRun := false

	finishRun := func() {
		if s.runEligible(currentLabel, runLength) {
			runs = append(runs, frameRun{chord: currentLabel, frames: runLength})
		}
	}

	for _, label := range labels {
		if len(window) == s.params.WindowSize {
			window = window[1:]
		}
		window = append(window, label)
		if len(window) < s.params.WindowSize {
			continue
		}

		majority := majorityLabel(window)
		if !haveRun {
			// The first vote stands in for the whole warm-up window,
			// so the run covers the stream from frame zero
			currentLabel = majority
			runLength = s.params.WindowSize
			haveRun = true
			continue
		}

		if majority == currentLabel {
			runLength++
			continue
		}

		finishRun()
		currentLabel = majority
		runLength = 1
	}

	if haveRun {
		finishRun()
	}

	return runs
}

// runEligible applies the minimum-duration rule; cluster shapes need twice
// the minimum
func (s *Segmenter) runEligible(chord Chord, frames int) bool {
	if frames < s.params.MinDurationFrames {
		return false
	}
	if chord.IsCluster() && frames < 2*s.params.MinDurationFrames {
		return false
	}
	return true
}

// majorityLabel returns the most frequent label in the window; ties go to
// the label whose maximal count was reached first, keeping the vote stable
func majorityLabel(window []Chord) Chord {
	counts := make(map[Chord]int, len(window))
	best := window[0]
	bestCount := 0
	for _, label := range window {
		counts[label]++
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

// runsToSegments converts frame runs into seconds. Surviving runs are laid
// out gaplessly on an accumulating time cursor; time belonging to dropped
// runs is not reinserted.
func (s *Segmenter) runsToSegments(runs []frameRun) []ChordSegment {
	secondsPerFrame := float64(s.hopSize) / float64(s.sampleRate)

	segments := make([]ChordSegment, 0, len(runs))
	cursor := 0.0
	for _, run := range runs {
		duration := float64(run.frames) * secondsPerFrame
		segments = append(segments, ChordSegment{
			Chord:     run.chord,
			StartTime: cursor,
			EndTime:   cursor + duration,
			Duration:  duration,
		})
		cursor += duration
	}

	return segments
}

// cleanup removes no-chord segments and anything under the duration floor,
// then merges adjacent segments sharing a label regardless of the gap the
// removals left behind
func (s *Segmenter) cleanup(segments []ChordSegment) []ChordSegment {
	filtered := make([]ChordSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.Chord.IsNone() || seg.Duration < s.params.MinChordDuration {
			continue
		}
		filtered = append(filtered, seg)
	}

	if len(filtered) == 0 {
		return filtered
	}

	merged := filtered[:1]
	for _, seg := range filtered[1:] {
		last := &merged[len(merged)-1]
		if seg.Chord == last.Chord {
			last.EndTime = seg.EndTime
			last.Duration = last.EndTime - last.StartTime
			continue
		}
		merged = append(merged, seg)
	}

	return merged
}
