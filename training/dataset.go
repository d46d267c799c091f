package training

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chordscape/chordscape/algorithms/tonal"
)

// datasetChord is the serialized form of a chord span in a dataset file
type datasetChord struct {
	Chord     string  `json:"chord"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// datasetSample is the serialized form of one labeled sample
type datasetSample struct {
	Name            string               `json:"name"`
	TrueKey         string               `json:"true_key"`
	KeySignals      map[string][]float64 `json:"key_signals"`
	TrueChords      []datasetChord       `json:"true_chords"`
	PredictedChords []datasetChord       `json:"predicted_chords"`
	ChordFeatures   map[string]float64   `json:"chord_features"`
}

// LoadDataset reads labeled training samples from a JSON file: a flat array
// of samples with serialized chord labels
func LoadDataset(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var raw []datasetSample
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	samples := make([]Sample, 0, len(raw))
	for i, entry := range raw {
		trueChords, err := parseChordSpans(entry.TrueChords)
		if err != nil {
			return nil, fmt.Errorf("sample %d (%s): %w", i, entry.Name, err)
		}
		predictedChords, err := parseChordSpans(entry.PredictedChords)
		if err != nil {
			return nil, fmt.Errorf("sample %d (%s): %w", i, entry.Name, err)
		}

		samples = append(samples, Sample{
			Name:            entry.Name,
			TrueKey:         entry.TrueKey,
			KeySignals:      entry.KeySignals,
			TrueChords:      trueChords,
			PredictedChords: predictedChords,
			ChordFeatures:   entry.ChordFeatures,
		})
	}

	return samples, nil
}

func parseChordSpans(spans []datasetChord) ([]LabeledChord, error) {
	out := make([]LabeledChord, 0, len(spans))
	for _, span := range spans {
		chord, err := tonal.ParseChord(span.Chord)
		if err != nil {
			return nil, err
		}
		out = append(out, LabeledChord{
			Chord:     chord,
			StartTime: span.StartTime,
			EndTime:   span.EndTime,
		})
	}
	return out, nil
}
