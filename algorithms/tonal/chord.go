package tonal

import (
	"fmt"
	"strings"
)

// Root is a pitch class 0..11, with 0 = C
type Root int

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// String returns the note name of the root (sharps, no flats)
func (r Root) String() string {
	if r < 0 || r > 11 {
		return "?"
	}
	return noteNames[r]
}

// ParseRoot parses a note name ("C", "F#") into a Root
func ParseRoot(name string) (Root, error) {
	for i, n := range noteNames {
		if n == name {
			return Root(i), nil
		}
	}
	return 0, fmt.Errorf("unknown note name: %q", name)
}

// ChordType identifies a chord quality from the static registry
type ChordType int

// chordTypeSpec describes one chord quality: its interval structure in
// semitones from the root, a complexity rank used for ambiguity tie-breaking
// (1 = plain triad, 5 = extended voicing), and whether it is a cluster shape
// built from adjacent semitones.
type chordTypeSpec struct {
	name       string
	intervals  []int
	complexity int
	cluster    bool
}

// The registry is built once and shared read-only. Order defines the
// ChordType values; the two cluster shapes come last.
var chordTypeRegistry = []chordTypeSpec{
	{"maj", []int{0, 4, 7}, 1, false},
	{"min", []int{0, 3, 7}, 1, false},
	{"dim", []int{0, 3, 6}, 2, false},
	{"aug", []int{0, 4, 8}, 2, false},
	{"sus2", []int{0, 2, 7}, 2, false},
	{"sus4", []int{0, 5, 7}, 2, false},
	{"7", []int{0, 4, 7, 10}, 3, false},
	{"maj7", []int{0, 4, 7, 11}, 3, false},
	{"min7", []int{0, 3, 7, 10}, 3, false},
	{"dim7", []int{0, 3, 6, 9}, 4, false},
	{"hdim7", []int{0, 3, 6, 10}, 4, false},
	{"minmaj7", []int{0, 3, 7, 11}, 4, false},
	{"aug7", []int{0, 4, 8, 10}, 4, false},
	{"add9", []int{0, 4, 7, 14}, 4, false},
	{"min9", []int{0, 3, 7, 10, 14}, 5, false},
	{"maj9", []int{0, 4, 7, 11, 14}, 5, false},
	{"9", []int{0, 4, 7, 10, 14}, 5, false},
	{"7sus4", []int{0, 5, 7, 10}, 4, false},
	{"maj6", []int{0, 4, 7, 9}, 3, false},
	{"min6", []int{0, 3, 7, 9}, 3, false},
	{"11", []int{0, 4, 7, 10, 14, 17}, 5, false},
	{"maj11", []int{0, 4, 7, 11, 14, 17}, 5, false},
	{"min11", []int{0, 3, 7, 10, 14, 17}, 5, false},
	{"clus3", []int{0, 1, 2}, 5, true},
	{"clus4", []int{0, 1, 2, 3}, 5, true},
}

// NumChordTypes returns the number of registered chord qualities
func NumChordTypes() int {
	return len(chordTypeRegistry)
}

// ChordTypes returns all registered chord type values in registry order
func ChordTypes() []ChordType {
	types := make([]ChordType, len(chordTypeRegistry))
	for i := range types {
		types[i] = ChordType(i)
	}
	return types
}

// String returns the short quality name ("maj", "min7", ...)
func (t ChordType) String() string {
	if t < 0 || int(t) >= len(chordTypeRegistry) {
		return "?"
	}
	return chordTypeRegistry[t].name
}

// Intervals returns the semitone offsets of the quality, root first.
// The returned slice is shared; callers must not modify it.
func (t ChordType) Intervals() []int {
	return chordTypeRegistry[t].intervals
}

// Complexity returns the ambiguity tie-break rank (lower is simpler)
func (t ChordType) Complexity() int {
	return chordTypeRegistry[t].complexity
}

// IsCluster reports whether the quality is a dense cluster shape, which is
// held to stricter thresholds throughout the pipeline
func (t ChordType) IsCluster() bool {
	return chordTypeRegistry[t].cluster
}

// ParseChordType looks up a quality by its short name
func ParseChordType(name string) (ChordType, error) {
	for i := range chordTypeRegistry {
		if chordTypeRegistry[i].name == name {
			return ChordType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown chord type: %q", name)
}

// Chord is a (root, quality) pair carried as a value through the pipeline.
// String formatting happens only at serialization boundaries.
type Chord struct {
	Root Root
	Type ChordType
}

// NoChord is the sentinel for frames and segments with no detected chord
var NoChord = Chord{Root: -1, Type: -1}

// IsNone reports whether the chord is the no-chord sentinel
func (c Chord) IsNone() bool {
	return c.Root < 0
}

// IsCluster reports whether the chord's quality is a cluster shape
func (c Chord) IsCluster() bool {
	return !c.IsNone() && c.Type.IsCluster()
}

// String renders the serialized form "root:type", or "N" for no chord
func (c Chord) String() string {
	if c.IsNone() {
		return "N"
	}
	return c.Root.String() + ":" + c.Type.String()
}

// ParseChord parses the serialized form "root:type" (or "N")
func ParseChord(s string) (Chord, error) {
	if s == "N" {
		return NoChord, nil
	}

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return NoChord, fmt.Errorf("malformed chord label: %q", s)
	}

	root, err := ParseRoot(parts[0])
	if err != nil {
		return NoChord, fmt.Errorf("malformed chord label %q: %w", s, err)
	}
	chordType, err := ParseChordType(parts[1])
	if err != nil {
		return NoChord, fmt.Errorf("malformed chord label %q: %w", s, err)
	}

	return Chord{Root: root, Type: chordType}, nil
}
