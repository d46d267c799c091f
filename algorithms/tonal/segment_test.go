package tonal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 22050
	testHopSize    = 512
)

func mustChord(t *testing.T, label string) Chord {
	t.Helper()
	chord, err := ParseChord(label)
	require.NoError(t, err)
	return chord
}

func repeatLabels(chord Chord, n int) []Chord {
	labels := make([]Chord, n)
	for i := range labels {
		labels[i] = chord
	}
	return labels
}

func assertSegmentInvariants(t *testing.T, segments []ChordSegment) {
	t.Helper()
	for i, seg := range segments {
		assert.InDelta(t, seg.EndTime-seg.StartTime, seg.Duration, 1e-9, "segment %d", i)
		if i > 0 {
			prev := segments[i-1]
			assert.GreaterOrEqual(t, seg.StartTime, prev.StartTime, "segment %d out of order", i)
			assert.GreaterOrEqual(t, seg.StartTime, prev.EndTime-1e-9, "segment %d overlaps", i)
			assert.NotEqual(t, prev.Chord, seg.Chord, "adjacent segments %d share a label", i)
		}
	}
}

// Forty frames of one chord collapse into a single segment spanning the
// whole stream
func TestSegmenter_SingleChordRun(t *testing.T) {
	segmenter := NewSegmenter(testSampleRate, testHopSize)
	cmaj := mustChord(t, "C:maj")

	segments := segmenter.Segment(repeatLabels(cmaj, 40))

	require.Len(t, segments, 1)
	secondsPerFrame := float64(testHopSize) / float64(testSampleRate)
	assert.Equal(t, cmaj, segments[0].Chord)
	assert.InDelta(t, 0.0, segments[0].StartTime, 1e-9)
	assert.InDelta(t, 40*secondsPerFrame, segments[0].Duration, 1e-9)
	assertSegmentInvariants(t, segments)
}

// A short noise burst inside a long chord run is swallowed by the majority
// vote; the run must not split into three segments
func TestSegmenter_NoiseBurstSwallowed(t *testing.T) {
	params := DefaultSegmenterParams()
	params.MinDurationFrames = 15
	segmenter := NewSegmenterWithParams(testSampleRate, testHopSize, params)

	cmaj := mustChord(t, "C:maj")
	labels := repeatLabels(cmaj, 15)
	labels = append(labels, NoChord, NoChord)
	labels = append(labels, repeatLabels(cmaj, 15)...)

	segments := segmenter.Segment(labels)

	require.Len(t, segments, 1)
	assert.Equal(t, cmaj, segments[0].Chord)

	secondsPerFrame := float64(testHopSize) / float64(testSampleRate)
	frames := segments[0].Duration / secondsPerFrame
	assert.InDelta(t, 32, frames, 2.5)
	assertSegmentInvariants(t, segments)
}

// Runs below the minimum are dropped outright, never merged into a neighbor
func TestSegmenter_ShortRunDroppedNotMerged(t *testing.T) {
	params := SegmenterParams{
		WindowSize:        1, // No smoothing: labels pass straight through
		MinDurationFrames: 5,
		MinChordDuration:  0.1,
	}
	segmenter := NewSegmenterWithParams(testSampleRate, testHopSize, params)

	cmaj := mustChord(t, "C:maj")
	gmaj := mustChord(t, "G:maj")
	fmaj := mustChord(t, "F:maj")

	labels := repeatLabels(cmaj, 10)
	labels = append(labels, repeatLabels(gmaj, 3)...) // Too short, dropped
	labels = append(labels, repeatLabels(fmaj, 10)...)

	segments := segmenter.Segment(labels)

	require.Len(t, segments, 2)
	assert.Equal(t, cmaj, segments[0].Chord)
	assert.Equal(t, fmaj, segments[1].Chord)

	// Dropped time is not reinserted: the survivors are gapless
	assert.InDelta(t, segments[0].EndTime, segments[1].StartTime, 1e-9)
	assertSegmentInvariants(t, segments)
}

// Cluster-shape runs need double the minimum duration to survive
func TestSegmenter_ClusterDoubleMinimum(t *testing.T) {
	params := SegmenterParams{
		WindowSize:        1,
		MinDurationFrames: 5,
		MinChordDuration:  0.1,
	}
	segmenter := NewSegmenterWithParams(testSampleRate, testHopSize, params)

	clus := mustChord(t, "C:clus3")
	cmaj := mustChord(t, "C:maj")

	// Seven cluster frames clear the plain minimum but not the doubled one
	labels := repeatLabels(clus, 7)
	labels = append(labels, repeatLabels(cmaj, 10)...)
	segments := segmenter.Segment(labels)
	require.Len(t, segments, 1)
	assert.Equal(t, cmaj, segments[0].Chord)

	// Ten cluster frames survive
	labels = repeatLabels(clus, 10)
	labels = append(labels, repeatLabels(cmaj, 10)...)
	segments = segmenter.Segment(labels)
	require.Len(t, segments, 2)
	assert.Equal(t, clus, segments[0].Chord)
}

// The cleanup pass removes no-chord segments and merges the duplicates they
// separated
func TestSegmenter_CleanupMergesAcrossRemoved(t *testing.T) {
	params := SegmenterParams{
		WindowSize:        1,
		MinDurationFrames: 5,
		MinChordDuration:  0.1,
	}
	segmenter := NewSegmenterWithParams(testSampleRate, testHopSize, params)

	cmaj := mustChord(t, "C:maj")
	labels := repeatLabels(cmaj, 10)
	labels = append(labels, repeatLabels(NoChord, 6)...)
	labels = append(labels, repeatLabels(cmaj, 10)...)

	segments := segmenter.Segment(labels)

	require.Len(t, segments, 1)
	assert.Equal(t, cmaj, segments[0].Chord)
	assertSegmentInvariants(t, segments)
}

func TestSegmenter_EmptyAndShortInput(t *testing.T) {
	segmenter := NewSegmenter(testSampleRate, testHopSize)

	assert.Empty(t, segmenter.Segment(nil))
	// Fewer labels than the vote window yields nothing
	assert.Empty(t, segmenter.Segment(repeatLabels(mustChord(t, "C:maj"), 4)))
}
