package tonal

import (
	"sort"
	"strings"

	"github.com/chordscape/chordscape/logging"
)

// Progression is a recurring ordered chord sequence mined from the segment
// list, tagged with a music-theory function name when one matches
type Progression struct {
	Pattern     []Chord `json:"-"`
	Count       int     `json:"count"`
	Length      int     `json:"length"`
	AvgDuration float64 `json:"avg_duration"`
	Function    string  `json:"function"`
}

// Labels returns the serialized chord names of the pattern
func (p *Progression) Labels() []string {
	labels := make([]string, len(p.Pattern))
	for i, chord := range p.Pattern {
		labels[i] = chord.String()
	}
	return labels
}

// MinerParams contains configuration for progression mining
type MinerParams struct {
	Lengths          []int   `json:"lengths"`            // Candidate pattern lengths
	Divisor          float64 `json:"divisor"`            // k in the occurrence floor len/(length*k)
	TopN             int     `json:"top_n"`              // Result truncation
	MinChordDuration float64 `json:"min_chord_duration"` // Segment floor in seconds
	MaxChordGap      float64 `json:"max_chord_gap"`      // Merge gap in seconds
	ClusterFloor     float64 `json:"cluster_floor"`      // Cluster chords below this are dropped
}

// DefaultMinerParams returns the mining settings for the extended variant
func DefaultMinerParams() MinerParams {
	return MinerParams{
		Lengths:          []int{2, 4, 8},
		Divisor:          4.0,
		TopN:             8,
		MinChordDuration: 0.5,
		MaxChordGap:      0.2,
		ClusterFloor:     1.0,
	}
}

// Miner finds recurring fixed-length chord subsequences across the segment
// list and ranks them by occurrence
type Miner struct {
	params MinerParams
	logger logging.Logger
}

// NewMiner creates a progression miner with default parameters
func NewMiner() *Miner {
	return NewMinerWithParams(DefaultMinerParams())
}

// NewMinerWithParams creates a progression miner with custom parameters
func NewMinerWithParams(params MinerParams) *Miner {
	return &Miner{
		params: params,
		logger: logging.WithFields(logging.Fields{
			"component": "progression_miner",
		}),
	}
}

// Mine returns the top progressions found in the segment list, ranked by
// occurrence count descending then pattern length ascending
func (m *Miner) Mine(segments []ChordSegment) []Progression {
	filtered := m.filterSegments(segments)

	var results []Progression
	for _, length := range m.params.Lengths {
		results = append(results, m.mineLength(filtered, length)...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Length < results[j].Length
	})

	if len(results) > m.params.TopN {
		results = results[:m.params.TopN]
	}

	m.logger.Debug("mining complete", logging.Fields{
		"segments":     len(segments),
		"progressions": len(results),
	})

	return results
}

// filterSegments drops progression-unworthy segments and merges adjacent
// duplicates separated by a small gap
func (m *Miner) filterSegments(segments []ChordSegment) []ChordSegment {
	kept := make([]ChordSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.Chord.IsNone() {
			continue
		}
		if seg.Duration < m.params.MinChordDuration {
			continue
		}
		if seg.Chord.IsCluster() && seg.Duration < m.params.ClusterFloor {
			continue
		}
		kept = append(kept, seg)
	}

	if len(kept) == 0 {
		return kept
	}

	merged := kept[:1]
	for _, seg := range kept[1:] {
		last := &merged[len(merged)-1]
		if seg.Chord == last.Chord && seg.StartTime-last.EndTime < m.params.MaxChordGap {
			last.EndTime = seg.EndTime
			last.Duration = last.EndTime - last.StartTime
			continue
		}
		merged = append(merged, seg)
	}

	return merged
}

// mineLength counts every exact label subsequence of one length and keeps
// those above the occurrence floor
func (m *Miner) mineLength(segments []ChordSegment, length int) []Progression {
	if length < 2 || len(segments) < length {
		return nil
	}

	type patternStats struct {
		pattern       []Chord
		count         int
		totalDuration float64
	}

	stats := make(map[string]*patternStats)
	order := make([]string, 0)

	for i := 0; i+length <= len(segments); i++ {
		window := segments[i : i+length]

		pattern := make([]Chord, length)
		duration := 0.0
		for j, seg := range window {
			pattern[j] = seg.Chord
			duration += seg.Duration
		}

		key := patternKey(pattern)
		entry, ok := stats[key]
		if !ok {
			entry = &patternStats{pattern: pattern}
			stats[key] = entry
			order = append(order, key)
		}
		entry.count++
		entry.totalDuration += duration
	}

	floor := float64(len(segments)) / (float64(length) * m.params.Divisor)
	minCount := 2
	if floor > float64(minCount) {
		minCount = int(floor)
	}

	var results []Progression
	for _, key := range order {
		entry := stats[key]
		if entry.count <= minCount {
			continue
		}
		results = append(results, Progression{
			Pattern:     entry.pattern,
			Count:       entry.count,
			Length:      length,
			AvgDuration: entry.totalDuration / float64(entry.count*length),
			Function:    classifyProgression(entry.pattern),
		})
	}

	return results
}

func patternKey(pattern []Chord) string {
	labels := make([]string, len(pattern))
	for i, chord := range pattern {
		labels[i] = chord.String()
	}
	return strings.Join(labels, "|")
}

// canonicalProgressions maps chord-quality sequences to their music-theory
// names. Checked in order; first contiguous match wins.
var canonicalProgressions = []struct {
	types []string
	name  string
}{
	{[]string{"maj", "maj", "min", "maj"}, "I-V-vi-IV (Pop progression)"},
	{[]string{"maj", "min", "maj", "maj"}, "I-ii-V-IV (Major key)"},
	{[]string{"maj", "min", "maj"}, "I-vi-IV (Major key)"},
	{[]string{"min", "maj", "maj"}, "vi-IV-V (Major key)"},
	{[]string{"maj", "maj", "maj", "maj"}, "I-V-vi-IV (Major key)"},
	{[]string{"maj", "min", "min", "maj"}, "I-vi-ii-V (Jazz turnaround)"},

	{[]string{"min", "dim", "maj", "min"}, "i-ii°-III-iv (Minor key)"},
	{[]string{"min", "maj", "min"}, "i-III-VII (Minor key)"},
	{[]string{"min", "min", "maj", "maj"}, "i-iv-III-VII (Minor key)"},
	{[]string{"min", "maj", "maj", "min"}, "i-III-VII-iv (Minor key)"},
	{[]string{"min", "maj", "min", "maj"}, "i-VII-vi-III (Minor key)"},

	{[]string{"7", "7", "7", "7"}, "I7-IV7-V7-IV7 (Blues)"},
	{[]string{"7", "7", "7"}, "I7-IV7-V7 (Blues)"},

	{[]string{"maj7", "min7", "7", "maj7"}, "IMaj7-iim7-V7-IMaj7 (Jazz)"},
	{[]string{"min7", "7", "maj7"}, "iim7-V7-IMaj7 (Jazz ii-V-I)"},
	{[]string{"min7", "hdim7", "7", "min7"}, "iim7-V7/V-V7-im7 (Jazz minor)"},
}

// classifyProgression attaches a functional name to a pattern by matching
// its chord qualities against the canonical table, falling back to cadence
// detection on the final two qualities
func classifyProgression(pattern []Chord) string {
	types := make([]string, 0, len(pattern))
	for _, chord := range pattern {
		if chord.IsNone() {
			return "Unknown"
		}
		types = append(types, chord.Type.String())
	}
	if len(types) == 0 {
		return "Unknown"
	}

	for _, canonical := range canonicalProgressions {
		if containsSubsequence(types, canonical.types) {
			return canonical.name
		}
	}

	if len(types) >= 2 {
		a, b := types[len(types)-2], types[len(types)-1]
		switch {
		case (a == "7" && b == "maj") || (a == "maj" && b == "maj"):
			return "Authentic Cadence"
		case (a == "maj" && b == "7") || (a == "7" && b == "7"):
			return "Half Cadence"
		case (a == "maj" && b == "min") || (a == "min" && b == "maj"):
			return "Deceptive Cadence"
		case (a == "maj" && b == "maj7") || (a == "7" && b == "maj7"):
			return "Jazz Cadence"
		}
	}

	return "Custom Progression"
}

// containsSubsequence reports whether needle occurs contiguously in haystack
func containsSubsequence(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
