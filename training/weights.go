package training

import (
	"maps"
	"sync/atomic"

	"github.com/chordscape/chordscape/algorithms/tonal"
)

// Weights is an immutable snapshot of the linear combination weights used by
// the key estimator and classifier. Mutation happens by building a new
// snapshot and publishing it through a Registry, never in place.
type Weights struct {
	KeyWeights   map[string]float64 `json:"key_weights"`
	ChordWeights map[string]float64 `json:"chord_weights"`
}

// Chord weight names. Each one maps onto a detection parameter at analysis
// time: bass_emphasis is the root/fifth boost, harmonic_context the extra
// root boost above unity, and cluster_penalty the margin cluster shapes must
// clear above the ordinary detection threshold. They started life as
// hand-tuned constants and are carried as trainable weights.
const (
	ChordWeightBassEmphasis    = "bass_emphasis"
	ChordWeightHarmonicContext = "harmonic_context"
	ChordWeightClusterPenalty  = "cluster_penalty"
)

// DefaultWeights returns the hand-tuned starting snapshot
func DefaultWeights() *Weights {
	return &Weights{
		KeyWeights: map[string]float64{
			tonal.KeySignalProfile:  0.5,
			tonal.KeySignalChords:   0.3,
			tonal.KeySignalCoverage: 0.2,
		},
		ChordWeights: map[string]float64{
			ChordWeightBassEmphasis:    1.5,
			ChordWeightHarmonicContext: 0.2,
			ChordWeightClusterPenalty:  0.15,
		},
	}
}

// Clone returns a deep copy safe for a training pass to mutate
func (w *Weights) Clone() *Weights {
	clone := &Weights{
		KeyWeights:   make(map[string]float64, len(w.KeyWeights)),
		ChordWeights: make(map[string]float64, len(w.ChordWeights)),
	}
	maps.Copy(clone.KeyWeights, w.KeyWeights)
	maps.Copy(clone.ChordWeights, w.ChordWeights)
	return clone
}

// Registry holds the active weight snapshot. Readers get a consistent
// snapshot with a single atomic load; a concurrent training pass owns its
// private copy and publishes only after validation, so in-flight analyses
// never observe a partially updated set.
type Registry struct {
	current atomic.Pointer[Weights]
}

// NewRegistry creates a registry seeded with the default weights
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(DefaultWeights())
	return r
}

// Current returns the active snapshot. Callers must treat it as read-only.
func (r *Registry) Current() *Weights {
	return r.current.Load()
}

// Publish atomically replaces the active snapshot
func (r *Registry) Publish(w *Weights) {
	r.current.Store(w)
}
