package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordscape/chordscape/algorithms/tonal"
)

func TestStore_RoundTrip(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	weights := DefaultWeights()
	weights.KeyWeights[tonal.KeySignalChords] = 0.42

	config := DefaultTrainingConfig()
	err = store.Save(weights, map[string]float64{"version": 2}, &config)
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, weights.KeyWeights, loaded.KeyWeights)
	assert.Equal(t, weights.ChordWeights, loaded.ChordWeights)
}

func TestStore_LoadEmpty(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_OverwriteKeepsLatest(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	first := DefaultWeights()
	require.NoError(t, store.Save(first, nil, nil))

	second := DefaultWeights()
	second.ChordWeights[ChordWeightClusterPenalty] = 0.05
	require.NoError(t, store.Save(second, nil, nil))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.InDelta(t, 0.05, loaded.ChordWeights[ChordWeightClusterPenalty], 1e-12)
}
