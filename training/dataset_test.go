package training

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDataset(t *testing.T) {
	path := writeDataset(t, `[
		{
			"name": "example",
			"true_key": "C Major",
			"key_signals": {"profile": [0.9, 0.1]},
			"true_chords": [
				{"chord": "C:maj", "start_time": 0, "end_time": 2},
				{"chord": "N", "start_time": 2, "end_time": 2.5}
			],
			"predicted_chords": [
				{"chord": "C:maj", "start_time": 0, "end_time": 2.5}
			],
			"chord_features": {"bass_emphasis": 0.8}
		}
	]`)

	samples, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	sample := samples[0]
	assert.Equal(t, "example", sample.Name)
	assert.Equal(t, "C Major", sample.TrueKey)
	assert.Equal(t, []float64{0.9, 0.1}, sample.KeySignals["profile"])
	require.Len(t, sample.TrueChords, 2)
	assert.Equal(t, "C:maj", sample.TrueChords[0].Chord.String())
	assert.True(t, sample.TrueChords[1].Chord.IsNone())
	assert.InDelta(t, 0.8, sample.ChordFeatures["bass_emphasis"], 1e-12)
}

func TestLoadDataset_Errors(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadDataset(writeDataset(t, `{"not": "an array"}`))
	assert.Error(t, err)

	_, err = LoadDataset(writeDataset(t, `[
		{"name": "bad", "true_chords": [{"chord": "X:maj", "start_time": 0, "end_time": 1}]}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}
