package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordscape/chordscape/algorithms/tonal"
)

func labeledChord(t *testing.T, label string, start, end float64) LabeledChord {
	t.Helper()
	chord, err := tonal.ParseChord(label)
	require.NoError(t, err)
	return LabeledChord{Chord: chord, StartTime: start, EndTime: end}
}

// keySignalVector builds a per-key score vector with 1.0 at the given key
// label and zero elsewhere
func keySignalVector(t *testing.T, label string) []float64 {
	t.Helper()
	keys := tonal.AllKeys()
	vector := make([]float64, len(keys))
	for i, key := range keys {
		if key.String() == label {
			vector[i] = 1.0
			return vector
		}
	}
	t.Fatalf("unknown key label %q", label)
	return nil
}

func TestTrainer_InsufficientData(t *testing.T) {
	trainer := NewTrainer()

	samples := make([]Sample, 3)
	_, err := trainer.Train(samples, DefaultWeights(), nil)

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Got)
	assert.Equal(t, 5, insufficient.Need)
}

// Samples the current weights already classify correctly must contribute no
// gradient: a perfect dataset leaves the weights exactly where they started
func TestTrainer_AllCorrectIsNoOp(t *testing.T) {
	trainer := NewTrainer()
	start := DefaultWeights()

	samples := make([]Sample, 6)
	for i := range samples {
		samples[i] = Sample{
			Name:    "correct",
			TrueKey: "C Major",
			KeySignals: map[string][]float64{
				tonal.KeySignalProfile: keySignalVector(t, "C Major"),
			},
			TrueChords:      []LabeledChord{labeledChord(t, "C:maj", 0, 4)},
			PredictedChords: []LabeledChord{labeledChord(t, "C:maj", 0, 4)},
			ChordFeatures:   map[string]float64{ChordWeightBassEmphasis: 1.0},
		}
	}

	result, err := trainer.Train(samples, start, nil)
	require.NoError(t, err)

	assert.Equal(t, start.KeyWeights, result.Weights.KeyWeights)
	assert.Equal(t, start.ChordWeights, result.Weights.ChordWeights)
	assert.False(t, result.Improved)
	assert.InDelta(t, 1.0, result.ValidationAccuracy, 1e-9)
}

// When one signal consistently points at the true key and another at a wrong
// key, training shifts weight toward the reliable signal until the
// prediction flips
func TestTrainer_LearnsReliableSignal(t *testing.T) {
	trainer := NewTrainer()
	start := DefaultWeights()

	samples := make([]Sample, 6)
	for i := range samples {
		samples[i] = Sample{
			Name:    "conflicted",
			TrueKey: "C Major",
			KeySignals: map[string][]float64{
				tonal.KeySignalProfile: keySignalVector(t, "D Major"),
				tonal.KeySignalChords:  keySignalVector(t, "C Major"),
			},
		}
	}

	result, err := trainer.Train(samples, start, nil)
	require.NoError(t, err)

	assert.True(t, result.Improved)
	assert.InDelta(t, 1.0, result.ValidationAccuracy, 1e-9)
	assert.Greater(t, result.Weights.KeyWeights[tonal.KeySignalChords],
		start.KeyWeights[tonal.KeySignalChords])

	// The starting snapshot is never mutated by a training pass
	assert.InDelta(t, 0.3, start.KeyWeights[tonal.KeySignalChords], 1e-12)
}

func TestTrainer_WeightsStayNonNegative(t *testing.T) {
	config := DefaultTrainingConfig()
	config.LearningRate = 10.0 // Deliberately oversized steps
	trainer := NewTrainerWithConfig(config)

	samples := make([]Sample, 6)
	for i := range samples {
		samples[i] = Sample{
			Name:            "wrong-chords",
			TrueChords:      []LabeledChord{labeledChord(t, "C:maj", 0, 4)},
			PredictedChords: []LabeledChord{labeledChord(t, "F:maj", 0, 4)},
			ChordFeatures:   map[string]float64{ChordWeightBassEmphasis: 1.0},
		}
	}

	result, err := trainer.Train(samples, DefaultWeights(), nil)
	require.NoError(t, err)

	for name, w := range result.Weights.ChordWeights {
		assert.GreaterOrEqual(t, w, 0.0, "chord weight %s", name)
	}
	for name, w := range result.Weights.KeyWeights {
		assert.GreaterOrEqual(t, w, 0.0, "key weight %s", name)
	}
}

func TestTrainer_EpochCallback(t *testing.T) {
	config := DefaultTrainingConfig()
	config.Epochs = 3
	trainer := NewTrainerWithConfig(config)

	samples := make([]Sample, 6)
	for i := range samples {
		samples[i] = Sample{
			TrueKey: "C Major",
			KeySignals: map[string][]float64{
				tonal.KeySignalProfile: keySignalVector(t, "C Major"),
			},
		}
	}

	var epochs []int
	result, err := trainer.Train(samples, DefaultWeights(), func(epoch int, accuracy float64) {
		epochs = append(epochs, epoch)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, epochs)
	assert.Equal(t, 3, result.Epochs)
}

func TestChordAccuracy(t *testing.T) {
	truth := []LabeledChord{labeledChord(t, "C:maj", 0, 4)}

	// Exact match over the full span
	assert.InDelta(t, 1.0,
		ChordAccuracy([]LabeledChord{labeledChord(t, "C:maj", 0, 4)}, truth), 1e-9)

	// Right root, wrong quality: 70% credit
	assert.InDelta(t, 0.7,
		ChordAccuracy([]LabeledChord{labeledChord(t, "C:min", 0, 4)}, truth), 1e-9)

	// Wrong root entirely
	assert.InDelta(t, 0.0,
		ChordAccuracy([]LabeledChord{labeledChord(t, "F:maj", 0, 4)}, truth), 1e-9)

	// Half the span covered exactly: credit scales with overlap
	assert.InDelta(t, 0.5,
		ChordAccuracy([]LabeledChord{labeledChord(t, "C:maj", 0, 2)}, truth), 1e-9)

	// No overlap in time
	assert.InDelta(t, 0.0,
		ChordAccuracy([]LabeledChord{labeledChord(t, "C:maj", 10, 14)}, truth), 1e-9)

	// Empty ground truth is vacuously perfect
	assert.InDelta(t, 1.0, ChordAccuracy(nil, nil), 1e-9)
}
