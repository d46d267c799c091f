package tonal

import (
	"math"
)

// Template is the reference pitch-class pattern for one chord: a 12-dim
// non-negative vector with nonzero entries at the chord's pitch classes,
// L2-normalized. Immutable after the bank is built.
type Template struct {
	Chord  Chord
	Vector []float64
}

// TemplateBank holds one template per (root, quality) pair. Built once at
// startup and shared read-only by every classification run.
type TemplateBank struct {
	templates []Template
}

// NewTemplateBank builds templates for all 12 roots and every registered
// chord quality
func NewTemplateBank() *TemplateBank {
	bank := &TemplateBank{
		templates: make([]Template, 0, 12*NumChordTypes()),
	}

	for root := range 12 {
		for _, chordType := range ChordTypes() {
			vector := make([]float64, 12)
			for _, interval := range chordType.Intervals() {
				vector[(root+interval)%12] = 1.0
			}
			normalizeL2(vector)

			bank.templates = append(bank.templates, Template{
				Chord:  Chord{Root: Root(root), Type: chordType},
				Vector: vector,
			})
		}
	}

	return bank
}

// Templates returns all templates in bank order. The slice and vectors are
// shared; callers must not modify them.
func (b *TemplateBank) Templates() []Template {
	return b.templates
}

// Lookup returns the template for a chord, or false if not present
func (b *TemplateBank) Lookup(chord Chord) (Template, bool) {
	if chord.IsNone() {
		return Template{}, false
	}
	idx := int(chord.Root)*NumChordTypes() + int(chord.Type)
	if idx < 0 || idx >= len(b.templates) {
		return Template{}, false
	}
	return b.templates[idx], true
}

// Size returns the number of templates in the bank
func (b *TemplateBank) Size() int {
	return len(b.templates)
}

// normalizeL2 scales a vector to unit Euclidean norm in place
func normalizeL2(vector []float64) {
	sumSquares := 0.0
	for _, v := range vector {
		sumSquares += v * v
	}
	if sumSquares <= 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] /= norm
	}
}
