package tonal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chromaForChord returns the chord's own template vector as a chroma frame
func chromaForChord(t *testing.T, bank *TemplateBank, label string) []float64 {
	t.Helper()
	chord, err := ParseChord(label)
	require.NoError(t, err)
	template, ok := bank.Lookup(chord)
	require.True(t, ok)
	frame := make([]float64, 12)
	copy(frame, template.Vector)
	return frame
}

func TestClassifier_MatchesOwnTemplate(t *testing.T) {
	bank := NewTemplateBank()
	classifier := NewClassifier(bank)

	for _, label := range []string{"C:maj", "A:min", "G:7", "D#:min7", "F:sus4"} {
		frame := chromaForChord(t, bank, label)
		got := classifier.ClassifyFrame(frame)
		require.False(t, got.IsNone(), "label %s", label)
		// Root must always be recovered; the quality may collapse to a
		// simpler chord sharing the same pitch classes
		expected, _ := ParseChord(label)
		assert.Equal(t, expected.Root, got.Root, "label %s got %s", label, got)
	}
}

func TestClassifier_ExactTriadLabel(t *testing.T) {
	bank := NewTemplateBank()
	classifier := NewClassifier(bank)

	frame := chromaForChord(t, bank, "C:maj")
	got := classifier.ClassifyFrame(frame)
	assert.Equal(t, "C:maj", got.String())
}

func TestClassifier_Deterministic(t *testing.T) {
	bank := NewTemplateBank()
	classifier := NewClassifier(bank)

	// A deliberately ambiguous frame: energy spread over six pitch classes
	frame := []float64{0.4, 0, 0.3, 0, 0.45, 0.2, 0, 0.5, 0, 0.35, 0, 0.1}

	first := classifier.ClassifyFrame(frame)
	for range 50 {
		assert.Equal(t, first, classifier.ClassifyFrame(frame))
	}
}

func TestClassifier_SilenceYieldsNoChord(t *testing.T) {
	bank := NewTemplateBank()
	classifier := NewClassifier(bank)

	assert.True(t, classifier.ClassifyFrame(make([]float64, 12)).IsNone())
}

func TestClassifier_RejectsWrongLength(t *testing.T) {
	bank := NewTemplateBank()
	classifier := NewClassifier(bank)

	assert.True(t, classifier.ClassifyFrame(nil).IsNone())
	assert.True(t, classifier.ClassifyFrame(make([]float64, 7)).IsNone())
}

func TestClassifier_AmbiguityPrefersSimpler(t *testing.T) {
	bank := NewTemplateBank()
	// Margin of 1.0 forces every multi-candidate frame down the
	// complexity tie-break path
	params := DefaultDetectionParams()
	params.SimilarityMargin = 1.0
	classifier := NewClassifierWithParams(bank, params)

	frame := chromaForChord(t, bank, "C:maj7")
	got := classifier.ClassifyFrame(frame)
	require.False(t, got.IsNone())
	// With the margin unattainable, the simpler of the top two wins
	assert.LessOrEqual(t, got.Type.Complexity(), 3)
}

func TestClassifier_ClassifyFrames(t *testing.T) {
	bank := NewTemplateBank()
	classifier := NewClassifier(bank)

	frames := [][]float64{
		chromaForChord(t, bank, "C:maj"),
		make([]float64, 12),
		chromaForChord(t, bank, "C:maj"),
	}
	labels := classifier.ClassifyFrames(frames)
	require.Len(t, labels, 3)
	assert.Equal(t, "C:maj", labels[0].String())
	assert.True(t, labels[1].IsNone())
	assert.Equal(t, labels[0], labels[2])
}
