package tonal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeToneFrame returns the Krumhansl-Kessler profile rotated to the given
// key, usable as a synthetic chroma frame
func probeToneFrame(root Root, minor bool) []float64 {
	profile := krumhanslMajor
	if minor {
		profile = krumhanslMinor
	}
	frame := make([]float64, 12)
	for pc := range 12 {
		frame[pc] = profile[(pc-int(root)+12)%12]
	}
	return frame
}

func TestAllKeys_OrderAndCount(t *testing.T) {
	keys := AllKeys()
	require.Len(t, keys, 24)
	assert.Equal(t, "C Major", keys[0].String())
	assert.Equal(t, "B Major", keys[11].String())
	assert.Equal(t, "C Minor", keys[12].String())
	assert.Equal(t, "B Minor", keys[23].String())
}

func TestKey_RelativeMinor(t *testing.T) {
	c := Key{Root: 0}
	assert.Equal(t, "A Minor", c.RelativeMinor().String())

	g := Key{Root: 7}
	assert.Equal(t, "E Minor", g.RelativeMinor().String())
}

func TestKeyEstimator_MatchesMinorProfile(t *testing.T) {
	estimator := NewKeyEstimator()

	frames := [][]float64{probeToneFrame(9, true)}
	segments := []ChordSegment{
		{Chord: mustChord(t, "A:min"), StartTime: 0, EndTime: 4, Duration: 4},
	}

	estimate := estimator.Estimate(frames, segments)

	assert.Equal(t, "A Minor", estimate.Key.String())
	assert.Greater(t, estimate.Confidence, 0.0)
}

// A purely major profile whose relative minor scores nearly as well is
// corrected to the minor reading
func TestKeyEstimator_RelativeMinorCorrection(t *testing.T) {
	params := DefaultKeyParams()
	params.RelativeMinorMargin = 0.2
	estimator := NewKeyEstimatorWithParams(params)

	frames := [][]float64{probeToneFrame(0, false)}
	estimate := estimator.Estimate(frames, nil)

	assert.Equal(t, "A Minor", estimate.Key.String())
}

// With no chroma at all, a lone dominant seventh still implies its tonic,
// and the exact tie with the relative minor resolves to the minor
func TestKeyEstimator_ChordSignalOnly(t *testing.T) {
	estimator := NewKeyEstimator()

	segments := []ChordSegment{
		{Chord: mustChord(t, "G:7"), StartTime: 0, EndTime: 3, Duration: 3},
	}

	estimate := estimator.Estimate(nil, segments)

	assert.Equal(t, "A Minor", estimate.Key.String())
	assert.InDelta(t, estimate.Scores["C Major"], estimate.Scores["A Minor"], 1e-9)
}

func TestKeyEstimator_DegenerateInput(t *testing.T) {
	estimator := NewKeyEstimator()

	estimate := estimator.Estimate(nil, nil)
	assert.True(t, estimate.Key.IsUnknown())
	assert.Equal(t, "Unknown Key", estimate.Key.String())

	// All-zero frames with no segments are equally degenerate
	estimate = estimator.Estimate([][]float64{make([]float64, 12)}, nil)
	assert.True(t, estimate.Key.IsUnknown())
}

func TestKeyEstimator_SetWeights(t *testing.T) {
	estimator := NewKeyEstimator()
	estimator.SetWeights(map[string]float64{KeySignalChords: 0.0})

	segments := []ChordSegment{
		{Chord: mustChord(t, "G:7"), StartTime: 0, EndTime: 3, Duration: 3},
	}

	// The only contributing signal has been zeroed out
	estimate := estimator.Estimate(nil, segments)
	assert.True(t, estimate.Key.IsUnknown())

	// Empty and nil weight maps leave the blend untouched
	estimator = NewKeyEstimator()
	estimator.SetWeights(nil)
	estimate = estimator.Estimate(nil, segments)
	assert.Equal(t, "A Minor", estimate.Key.String())
}
