package training

import (
	"fmt"

	"github.com/chordscape/chordscape/algorithms/tonal"
	"github.com/chordscape/chordscape/logging"
)

// InsufficientDataError is returned when a training pass is requested with
// fewer samples than the configured minimum. Existing weights are untouched.
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: got %d samples, need at least %d", e.Got, e.Need)
}

// TrainingConfig contains the trainer hyperparameters
type TrainingConfig struct {
	LearningRate       float64 `json:"learning_rate"`        // Initial step size
	Decay              float64 `json:"decay"`                // Per-epoch learning rate decay
	BatchSize          int     `json:"batch_size"`           // Mini-batch size
	Epochs             int     `json:"epochs"`               // Full passes over the training split
	ValidationSplit    float64 `json:"validation_split"`     // Fraction held out for validation
	MinTrainingSamples int     `json:"min_training_samples"` // Below this, training refuses to run
}

// DefaultTrainingConfig returns the standard hyperparameters
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		LearningRate:       0.1,
		Decay:              0.95,
		BatchSize:          4,
		Epochs:             20,
		ValidationSplit:    0.2,
		MinTrainingSamples: 5,
	}
}

// LabeledChord is one ground-truth or predicted chord span of a sample
type LabeledChord struct {
	Chord     tonal.Chord `json:"-"`
	StartTime float64     `json:"start_time"`
	EndTime   float64     `json:"end_time"`
}

// Sample is one labeled training example: the true key and chord spans, the
// pipeline's predictions at current weights, plus the derived numeric
// features the linear weights combine.
type Sample struct {
	Name string

	// TrueKey is the ground-truth key label ("C Major")
	TrueKey string
	// KeySignals maps signal name to its per-key score vector, indexed in
	// tonal.AllKeys order
	KeySignals map[string][]float64

	TrueChords      []LabeledChord
	PredictedChords []LabeledChord
	// ChordFeatures are the per-sample numeric features the chord weights
	// scale (bass emphasis response, harmonic context, cluster penalty)
	ChordFeatures map[string]float64
}

// TrainResult reports the outcome of a training pass
type TrainResult struct {
	Weights            *Weights
	ValidationAccuracy float64
	Epochs             int
	// Improved is true when some epoch beat the starting weights on the
	// validation split; persistence is gated on it
	Improved bool
}

// Trainer adjusts the weight snapshot by mini-batch gradient descent over
// labeled samples. A pass owns a private copy of the weights; the best
// validated snapshot is returned and only then published by the caller.
type Trainer struct {
	config TrainingConfig
	logger logging.Logger
}

// NewTrainer creates a trainer with default hyperparameters
func NewTrainer() *Trainer {
	return NewTrainerWithConfig(DefaultTrainingConfig())
}

// NewTrainerWithConfig creates a trainer with custom hyperparameters
func NewTrainerWithConfig(config TrainingConfig) *Trainer {
	return &Trainer{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "trainer",
		}),
	}
}

// Train runs the full pass: split, epochs of mini-batch updates on the
// training split with a decaying learning rate, validation after each epoch,
// keeping the best-scoring snapshot (not necessarily the final one).
// onEpoch, when non-nil, is invoked after each epoch for progress reporting.
func (t *Trainer) Train(samples []Sample, start *Weights, onEpoch func(epoch int, accuracy float64)) (*TrainResult, error) {
	if len(samples) < t.config.MinTrainingSamples {
		return nil, &InsufficientDataError{Got: len(samples), Need: t.config.MinTrainingSamples}
	}

	valCount := int(float64(len(samples)) * t.config.ValidationSplit)
	if valCount < 1 {
		valCount = 1
	}
	trainSet := samples[:len(samples)-valCount]
	valSet := samples[len(samples)-valCount:]

	weights := start.Clone()
	best := weights.Clone()
	initialAccuracy := t.validate(best, valSet)
	bestAccuracy := initialAccuracy

	learningRate := t.config.LearningRate
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		for offset := 0; offset < len(trainSet); offset += t.config.BatchSize {
			end := offset + t.config.BatchSize
			if end > len(trainSet) {
				end = len(trainSet)
			}
			t.updateBatch(weights, trainSet[offset:end], learningRate)
		}

		accuracy := t.validate(weights, valSet)
		if accuracy > bestAccuracy {
			bestAccuracy = accuracy
			best = weights.Clone()
		}

		t.logger.Debug("epoch complete", logging.Fields{
			"epoch":         epoch + 1,
			"accuracy":      accuracy,
			"learning_rate": learningRate,
		})
		if onEpoch != nil {
			onEpoch(epoch+1, accuracy)
		}

		learningRate *= t.config.Decay
	}

	return &TrainResult{
		Weights:            best,
		ValidationAccuracy: bestAccuracy,
		Epochs:             t.config.Epochs,
		Improved:           bestAccuracy > initialAccuracy,
	}, nil
}

// updateBatch accumulates feature-weighted gradients for the misclassified
// samples of one mini-batch, averages them, and applies a single descent
// step. Samples predicted correctly contribute nothing.
func (t *Trainer) updateBatch(weights *Weights, batch []Sample, learningRate float64) {
	keyGrad := make(map[string]float64)
	chordGrad := make(map[string]float64)
	contributors := 0

	for i := range batch {
		sample := &batch[i]
		misclassified := false

		if len(sample.KeySignals) > 0 {
			predIdx := predictKeyIndex(weights.KeyWeights, sample.KeySignals)
			trueIdx := keyIndex(sample.TrueKey)
			if predIdx >= 0 && trueIdx >= 0 && predIdx != trueIdx {
				misclassified = true
				// Perceptron-style: push toward signals that favored
				// the true key over the predicted one
				for name, scores := range sample.KeySignals {
					if trueIdx < len(scores) && predIdx < len(scores) {
						keyGrad[name] += scores[trueIdx] - scores[predIdx]
					}
				}
			}
		}

		if len(sample.TrueChords) > 0 {
			score := ChordAccuracy(sample.PredictedChords, sample.TrueChords)
			if score < 1.0 {
				misclassified = true
				loss := 1.0 - score
				for name, value := range sample.ChordFeatures {
					chordGrad[name] += loss * value
				}
			}
		}

		if misclassified {
			contributors++
		}
	}

	if contributors == 0 {
		return
	}

	scale := learningRate / float64(contributors)
	for name, grad := range keyGrad {
		weights.KeyWeights[name] = clampNonNegative(weights.KeyWeights[name] + scale*grad)
	}
	for name, grad := range chordGrad {
		weights.ChordWeights[name] = clampNonNegative(weights.ChordWeights[name] - scale*grad)
	}
}

// validate scores a snapshot on the held-out split: key accuracy blended
// with chord partial credit where a sample carries chord ground truth
func (t *Trainer) validate(weights *Weights, valSet []Sample) float64 {
	if len(valSet) == 0 {
		return 0
	}

	total := 0.0
	for i := range valSet {
		sample := &valSet[i]

		keyScore := 0.0
		haveKey := len(sample.KeySignals) > 0
		if haveKey {
			predIdx := predictKeyIndex(weights.KeyWeights, sample.KeySignals)
			if predIdx >= 0 && predIdx == keyIndex(sample.TrueKey) {
				keyScore = 1.0
			}
		}

		if len(sample.TrueChords) > 0 {
			chordScore := ChordAccuracy(sample.PredictedChords, sample.TrueChords)
			if haveKey {
				total += 0.5*keyScore + 0.5*chordScore
			} else {
				total += chordScore
			}
		} else {
			total += keyScore
		}
	}

	return total / float64(len(valSet))
}

// predictKeyIndex returns the argmax key index under the given weights, or
// -1 when no signal produced scores
func predictKeyIndex(keyWeights map[string]float64, signals map[string][]float64) int {
	bestIdx := -1
	bestScore := 0.0
	for idx := 0; idx < len(tonal.AllKeys()); idx++ {
		score := 0.0
		for name, scores := range signals {
			if idx < len(scores) {
				score += keyWeights[name] * scores[idx]
			}
		}
		if bestIdx < 0 || score > bestScore {
			bestIdx = idx
			bestScore = score
		}
	}
	return bestIdx
}

// keyIndex maps a key label to its position in tonal.AllKeys order
func keyIndex(label string) int {
	for i, key := range tonal.AllKeys() {
		if key.String() == label {
			return i
		}
	}
	return -1
}

// ChordAccuracy scores predicted chord spans against ground truth with
// weighted partial credit: a matching root earns 70%, the exact quality on
// top of it the remaining 30%, each scaled by the temporal overlap in
// seconds. Exact alignment is not required, only overlap. Returns a value
// in [0, 1]; an empty ground truth scores 1.
func ChordAccuracy(predicted, truth []LabeledChord) float64 {
	totalDuration := 0.0
	for _, span := range truth {
		totalDuration += span.EndTime - span.StartTime
	}
	if totalDuration <= 0 {
		return 1.0
	}

	earned := 0.0
	for _, trueSpan := range truth {
		for _, predSpan := range predicted {
			overlap := overlapSeconds(predSpan, trueSpan)
			if overlap <= 0 {
				continue
			}
			credit := 0.0
			if predSpan.Chord.Root == trueSpan.Chord.Root {
				credit = 0.7
				if predSpan.Chord.Type == trueSpan.Chord.Type {
					credit += 0.3
				}
			}
			earned += credit * overlap
		}
	}

	accuracy := earned / totalDuration
	if accuracy > 1.0 {
		accuracy = 1.0
	}
	return accuracy
}

func overlapSeconds(a, b LabeledChord) float64 {
	start := a.StartTime
	if b.StartTime > start {
		start = b.StartTime
	}
	end := a.EndTime
	if b.EndTime < end {
		end = b.EndTime
	}
	return end - start
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
