package tonal

import "sort"

// MIDI range of the piano visualizer keyboard, A3..B5
const (
	MinVisualizerNote = 57
	MaxVisualizerNote = 83
)

// middleC is MIDI C4, the base octave chords are voiced in
const middleC = 60

// Notes returns the MIDI note numbers implied by the chord's interval list
// voiced from the root in the C4 octave. A pure lookup, independent of the
// detection pipeline. NoChord yields nil.
func (c Chord) Notes() []int {
	if c.IsNone() {
		return nil
	}
	intervals := c.Type.Intervals()
	notes := make([]int, len(intervals))
	for i, interval := range intervals {
		notes[i] = middleC + int(c.Root) + interval
	}
	return notes
}

// ClampToVisualizerRange folds MIDI notes by octaves into the visualizer's
// playable range, deduplicates, and returns them sorted. Returns nil when no
// note can be made playable.
func ClampToVisualizerRange(notes []int) []int {
	seen := make(map[int]bool, len(notes))
	clamped := make([]int, 0, len(notes))
	for _, note := range notes {
		for note < MinVisualizerNote {
			note += 12
		}
		for note > MaxVisualizerNote {
			note -= 12
		}
		if note < MinVisualizerNote || note > MaxVisualizerNote {
			continue
		}
		if !seen[note] {
			seen[note] = true
			clamped = append(clamped, note)
		}
	}
	if len(clamped) == 0 {
		return nil
	}
	sort.Ints(clamped)
	return clamped
}
