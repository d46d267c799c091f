package training

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/chordscape/chordscape/logging"
)

// weightsKey is the single key the snapshot blob lives under
var weightsKey = []byte("weights")

// persistedWeights is the flat blob written wholesale to disk. The core only
// reads the two weight maps back; the configs ride along for inspection.
type persistedWeights struct {
	KeyWeights     map[string]float64 `json:"key_weights"`
	ChordWeights   map[string]float64 `json:"chord_weights"`
	Config         map[string]float64 `json:"config"`
	TrainingConfig *TrainingConfig    `json:"training_config"`
}

// Store persists weight snapshots in a badger database under one key, read
// and written wholesale. No partial updates, no schema versioning.
type Store struct {
	db     *badger.DB
	logger logging.Logger
}

// OpenStore opens (or creates) the weight store at dir
func OpenStore(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open weight store: %w", err)
	}
	return &Store{
		db: db,
		logger: logging.WithFields(logging.Fields{
			"component": "weight_store",
			"dir":       dir,
		}),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a snapshot together with the configs that produced it
func (s *Store) Save(weights *Weights, config map[string]float64, trainingConfig *TrainingConfig) error {
	blob, err := json.Marshal(persistedWeights{
		KeyWeights:     weights.KeyWeights,
		ChordWeights:   weights.ChordWeights,
		Config:         config,
		TrainingConfig: trainingConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(weightsKey, blob)
	})
	if err != nil {
		return fmt.Errorf("failed to persist weights: %w", err)
	}

	s.logger.Info("weights persisted", logging.Fields{
		"key_weights":   len(weights.KeyWeights),
		"chord_weights": len(weights.ChordWeights),
	})
	return nil
}

// Load reads the persisted snapshot. Returns (nil, nil) when nothing has
// been persisted yet.
func (s *Store) Load() (*Weights, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(weightsKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	if blob == nil {
		return nil, nil
	}

	var persisted persistedWeights
	if err := json.Unmarshal(blob, &persisted); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}

	return &Weights{
		KeyWeights:   persisted.KeyWeights,
		ChordWeights: persisted.ChordWeights,
	}, nil
}
