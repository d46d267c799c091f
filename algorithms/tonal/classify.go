package tonal

import (
	"sort"
)

// DetectionParams contains configuration for frame-level chord matching
type DetectionParams struct {
	DetectionThreshold float64 `json:"detection_threshold"` // Minimum similarity for ordinary types
	ClusterThreshold   float64 `json:"cluster_threshold"`   // Stricter minimum for cluster shapes
	SimilarityMargin   float64 `json:"similarity_margin"`   // Margin below which a match is ambiguous
	BassEmphasis       float64 `json:"bass_emphasis"`       // Root and fifth boost (> 1)
	HarmonicEmphasis   float64 `json:"harmonic_emphasis"`   // Extra root boost (> 1)
}

// DefaultDetectionParams returns the thresholds tuned for smoothed CQT chroma
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		DetectionThreshold: 0.5,
		ClusterThreshold:   0.65,
		SimilarityMargin:   0.1,
		BassEmphasis:       1.5,
		HarmonicEmphasis:   1.2,
	}
}

// Classifier assigns a chord label to each chroma frame by scoring the full
// template bank against a root-enhanced copy of the frame. Pure and
// deterministic for fixed inputs and parameters.
type Classifier struct {
	params DetectionParams
	bank   *TemplateBank
}

// NewClassifier creates a classifier over a shared template bank
func NewClassifier(bank *TemplateBank) *Classifier {
	return NewClassifierWithParams(bank, DefaultDetectionParams())
}

// NewClassifierWithParams creates a classifier with custom thresholds
func NewClassifierWithParams(bank *TemplateBank, params DetectionParams) *Classifier {
	return &Classifier{
		params: params,
		bank:   bank,
	}
}

type scoredMatch struct {
	chord Chord
	score float64
}

// ClassifyFrame returns the best-matching chord for one 12-bin chroma frame,
// or NoChord when nothing clears its threshold.
//
// Raw chroma under-weights the bass, the strongest perceptual cue for chord
// identity, so each template is scored against a copy of the frame with that
// template's root and fifth bins emphasized and the copy renormalized to unit
// length. The dot product against the unit-norm template is then a cosine
// similarity.
func (c *Classifier) ClassifyFrame(chroma []float64) Chord {
	if len(chroma) != 12 {
		return NoChord
	}

	var candidates []scoredMatch
	enhanced := make([]float64, 12)

	for _, template := range c.bank.Templates() {
		// A malformed template must never abort a run; skip it
		if len(template.Vector) != 12 {
			continue
		}

		root := int(template.Chord.Root)
		fifth := (root + 7) % 12

		copy(enhanced, chroma)
		enhanced[root] *= c.params.BassEmphasis * c.params.HarmonicEmphasis
		enhanced[fifth] *= c.params.BassEmphasis
		normalizeL2(enhanced)

		score := 0.0
		for i := range enhanced {
			score += enhanced[i] * template.Vector[i]
		}

		threshold := c.params.DetectionThreshold
		if template.Chord.IsCluster() {
			threshold = c.params.ClusterThreshold
		}
		if score > threshold {
			candidates = append(candidates, scoredMatch{chord: template.Chord, score: score})
		}
	}

	if len(candidates) == 0 {
		return NoChord
	}

	// Stable sort keeps bank order for equal scores, which makes
	// classification deterministic
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	if len(candidates) == 1 {
		return candidates[0].chord
	}
	if candidates[0].score-candidates[1].score > c.params.SimilarityMargin {
		return candidates[0].chord
	}

	// Ambiguous match: prefer the simpler of the top two qualities
	if candidates[1].chord.Type.Complexity() < candidates[0].chord.Type.Complexity() {
		return candidates[1].chord
	}
	return candidates[0].chord
}

// ClassifyFrames labels every frame of a chroma matrix
func (c *Classifier) ClassifyFrames(frames [][]float64) []Chord {
	labels := make([]Chord, len(frames))
	for t, frame := range frames {
		labels[t] = c.ClassifyFrame(frame)
	}
	return labels
}
