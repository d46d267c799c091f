package tonal

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/chordscape/chordscape/algorithms/common"
	"github.com/chordscape/chordscape/logging"
)

// Key is one of the 24 major/minor keys, or the unknown sentinel
type Key struct {
	Root  Root
	Minor bool
}

// UnknownKey is returned for degenerate input that produced no scores
var UnknownKey = Key{Root: -1}

// IsUnknown reports whether the key is the unknown sentinel
func (k Key) IsUnknown() bool {
	return k.Root < 0
}

// String renders the key as "C Major" / "A Minor" / "Unknown Key"
func (k Key) String() string {
	if k.IsUnknown() {
		return "Unknown Key"
	}
	if k.Minor {
		return k.Root.String() + " Minor"
	}
	return k.Root.String() + " Major"
}

// RelativeMinor returns the relative minor of a major key
func (k Key) RelativeMinor() Key {
	return Key{Root: Root((int(k.Root) + 9) % 12), Minor: true}
}

// Krumhansl-Kessler probe-tone profiles: the perceptual fit of each pitch
// class to a major or minor tonal context, tonic first
var (
	krumhanslMajor = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// Diatonic scale pitch classes relative to the tonic
var (
	majorScale = []int{0, 2, 4, 5, 7, 9, 11}
	minorScale = []int{0, 2, 3, 5, 7, 8, 10}
)

// Signal names used in the key weight map
const (
	KeySignalProfile  = "profile"
	KeySignalChords   = "chords"
	KeySignalCoverage = "coverage"
)

// KeyParams contains configuration for key estimation
type KeyParams struct {
	// Weights blends the per-signal scores; keys are the KeySignal* names
	Weights map[string]float64 `json:"weights"`
	// RelativeMinorMargin switches a major winner to its relative minor
	// when the minor scores within this fraction of the winner
	RelativeMinorMargin float64 `json:"relative_minor_margin"`
}

// DefaultKeyParams returns the hand-tuned signal blend
func DefaultKeyParams() KeyParams {
	return KeyParams{
		Weights: map[string]float64{
			KeySignalProfile:  0.5,
			KeySignalChords:   0.3,
			KeySignalCoverage: 0.2,
		},
		RelativeMinorMargin: 0.1,
	}
}

// KeyEstimate is the result of key estimation
type KeyEstimate struct {
	Key        Key                `json:"-"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"-"` // Final score per key label
}

// KeyEstimator combines three independent signals into one key estimate:
// Krumhansl-Kessler profile correlation of the aggregate chroma, a
// duration-weighted histogram of the keys each detected chord plausibly
// functions in, and diatonic coverage of the aggregate chroma mass.
type KeyEstimator struct {
	params KeyParams
	logger logging.Logger
}

// NewKeyEstimator creates a key estimator with default parameters
func NewKeyEstimator() *KeyEstimator {
	return NewKeyEstimatorWithParams(DefaultKeyParams())
}

// NewKeyEstimatorWithParams creates a key estimator with custom parameters
func NewKeyEstimatorWithParams(params KeyParams) *KeyEstimator {
	return &KeyEstimator{
		params: params,
		logger: logging.WithFields(logging.Fields{
			"component": "key_estimator",
		}),
	}
}

// SetWeights replaces the signal blend, typically from a trained snapshot
func (e *KeyEstimator) SetWeights(weights map[string]float64) {
	if len(weights) == 0 {
		return
	}
	merged := make(map[string]float64, len(e.params.Weights))
	for name, w := range e.params.Weights {
		merged[name] = w
	}
	for name, w := range weights {
		merged[name] = w
	}
	e.params.Weights = merged
}

// AllKeys enumerates the 24 concrete keys in a fixed order
func AllKeys() []Key {
	keys := make([]Key, 0, 24)
	for root := range 12 {
		keys = append(keys, Key{Root: Root(root)})
	}
	for root := range 12 {
		keys = append(keys, Key{Root: Root(root), Minor: true})
	}
	return keys
}

// Estimate returns the most likely key for the analyzed material. Degenerate
// input (no chroma energy and no segments) yields UnknownKey.
func (e *KeyEstimator) Estimate(chromaFrames [][]float64, segments []ChordSegment) KeyEstimate {
	aggregate := aggregateChroma(chromaFrames)

	hasEnergy := common.Sum(aggregate) > 1e-10
	if !hasEnergy && len(segments) == 0 {
		return KeyEstimate{Key: UnknownKey, Scores: map[string]float64{}}
	}

	keys := AllKeys()
	profile := e.profileScores(aggregate, keys)
	chords := e.chordScores(segments, keys)
	coverage := e.coverageScores(aggregate, keys)

	wProfile := e.params.Weights[KeySignalProfile]
	wChords := e.params.Weights[KeySignalChords]
	wCoverage := e.params.Weights[KeySignalCoverage]

	scores := make(map[string]float64, len(keys))
	best := UnknownKey
	bestScore := math.Inf(-1)
	for i, key := range keys {
		score := wProfile*profile[i] + wChords*chords[i] + wCoverage*coverage[i]
		scores[key.String()] = score
		if score > bestScore {
			best = key
			bestScore = score
		}
	}

	if bestScore <= 0 {
		return KeyEstimate{Key: UnknownKey, Scores: scores}
	}

	// Chorus-heavy material skews major; prefer the relative minor when it
	// scores nearly as well
	if !best.Minor {
		relative := best.RelativeMinor()
		if scores[relative.String()] >= bestScore*(1.0-e.params.RelativeMinorMargin) {
			e.logger.Debug("relative minor correction applied", logging.Fields{
				"from": best.String(),
				"to":   relative.String(),
			})
			best = relative
			bestScore = scores[relative.String()]
		}
	}

	return KeyEstimate{Key: best, Confidence: bestScore, Scores: scores}
}

// aggregateChroma averages the chroma frames into one 12-bin vector
func aggregateChroma(frames [][]float64) []float64 {
	aggregate := make([]float64, 12)
	if len(frames) == 0 {
		return aggregate
	}
	for _, frame := range frames {
		for i := 0; i < 12 && i < len(frame); i++ {
			aggregate[i] += frame[i]
		}
	}
	for i := range aggregate {
		aggregate[i] /= float64(len(frames))
	}
	return aggregate
}

// profileScores correlates the aggregate chroma with each key's rotated
// Krumhansl-Kessler profile, mapping Pearson r from [-1,1] to [0,1]
func (e *KeyEstimator) profileScores(aggregate []float64, keys []Key) []float64 {
	scores := make([]float64, len(keys))
	if common.Sum(aggregate) <= 1e-10 {
		return scores
	}

	rotated := make([]float64, 12)
	for i, key := range keys {
		profile := krumhanslMajor
		if key.Minor {
			profile = krumhanslMinor
		}
		for pc := range 12 {
			rotated[pc] = profile[(pc-int(key.Root)+12)%12]
		}
		r := stat.Correlation(aggregate, rotated, nil)
		if math.IsNaN(r) {
			continue
		}
		scores[i] = (r + 1.0) / 2.0
	}

	return scores
}

// chordScores accumulates, per key, the duration of every segment whose
// chord plausibly functions in that key, then normalizes by the maximum
func (e *KeyEstimator) chordScores(segments []ChordSegment, keys []Key) []float64 {
	weights := make(map[Key]float64)
	for _, seg := range segments {
		if seg.Chord.IsNone() {
			continue
		}
		for _, key := range likelyKeys(seg.Chord) {
			weights[key] += seg.Duration
		}
	}

	maxWeight := 0.0
	for _, w := range weights {
		if w > maxWeight {
			maxWeight = w
		}
	}

	scores := make([]float64, len(keys))
	if maxWeight <= 0 {
		return scores
	}
	for i, key := range keys {
		scores[i] = weights[key] / maxWeight
	}
	return scores
}

// likelyKeys infers the keys a chord plausibly belongs to from its quality
// and scale-degree function
func likelyKeys(chord Chord) []Key {
	root := int(chord.Root)
	quality := chord.Type.String()

	switch quality {
	case "maj", "maj7", "maj6", "add9", "maj9":
		// Tonic, or IV/V of the key a fourth/fifth below
		return []Key{
			{Root: Root(root)},
			{Root: Root((root + 7) % 12)},
			{Root: Root((root + 5) % 12)},
		}
	case "min", "min7", "min6", "min9":
		// Tonic minor, or ii/vi of the majors it is diatonic to
		return []Key{
			{Root: Root(root), Minor: true},
			{Root: Root((root + 10) % 12)},
			{Root: Root((root + 3) % 12)},
		}
	case "7", "9", "11", "7sus4":
		// Dominant function points a fifth below, or at its relative minor
		fifthDown := (root + 5) % 12
		return []Key{
			{Root: Root(fifthDown)},
			{Root: Root((fifthDown + 9) % 12), Minor: true},
		}
	case "dim", "dim7", "hdim7":
		// Leading-tone function: resolves a semitone up
		semitoneUp := (root + 1) % 12
		return []Key{
			{Root: Root(semitoneUp)},
			{Root: Root(semitoneUp), Minor: true},
		}
	case "aug", "aug7":
		return []Key{{Root: Root(root)}}
	}

	return nil
}

// coverageScores measures the fraction of aggregate chroma mass lying on
// each key's diatonic scale, min-max normalized across the 24 keys
func (e *KeyEstimator) coverageScores(aggregate []float64, keys []Key) []float64 {
	total := common.Sum(aggregate)
	raw := make([]float64, len(keys))
	if total <= 1e-10 {
		return raw
	}

	for i, key := range keys {
		scale := majorScale
		if key.Minor {
			scale = minorScale
		}
		mass := 0.0
		for _, degree := range scale {
			mass += aggregate[(int(key.Root)+degree)%12]
		}
		raw[i] = mass / total
	}

	return common.MinMaxNormalize(raw)
}
