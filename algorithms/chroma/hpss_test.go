package chroma

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHPSS_ShortSignalPassthrough(t *testing.T) {
	hpss := NewHPSS()

	signal := []float64{0.1, 0.2, 0.3, 0.4}
	out, err := hpss.Harmonic(signal, 22050)
	require.NoError(t, err)
	assert.Equal(t, signal, out)

	_, err = hpss.Harmonic(nil, 22050)
	assert.Error(t, err)
}

// A steady tone is harmonic by definition: separation should keep most of
// its energy while stripping a superimposed click
func TestHPSS_KeepsSteadyTone(t *testing.T) {
	sampleRate := 22050
	hpss := NewHPSS()

	length := sampleRate
	signal := make([]float64, length)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 440.0 * float64(i) / float64(sampleRate))
	}
	// Broadband click in the middle
	for i := length / 2; i < length/2+32; i++ {
		signal[i] += 4.0
	}

	out, err := hpss.Harmonic(signal, sampleRate)
	require.NoError(t, err)
	require.Len(t, out, length)

	energy := func(data []float64, from, to int) float64 {
		total := 0.0
		for i := from; i < to; i++ {
			total += data[i] * data[i]
		}
		return total
	}

	// Tone energy away from the click survives separation
	toneIn := energy(signal, length/4, length/4+2048)
	toneOut := energy(out, length/4, length/4+2048)
	assert.Greater(t, toneOut, toneIn*0.5)

	// The click region loses most of its excess energy
	clickIn := energy(signal, length/2, length/2+32)
	clickOut := energy(out, length/2, length/2+32)
	assert.Less(t, clickOut, clickIn*0.5)
}
