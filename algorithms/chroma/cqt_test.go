package chroma

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCQT_BinFrequencies(t *testing.T) {
	cqt := NewCQT(22050)
	freqs := cqt.BinFrequencies()

	params := DefaultCQTParams()
	require.Len(t, freqs, params.NumBins)
	assert.InDelta(t, params.MinFreq, freqs[0], 1e-9)

	// Semitone spacing: every 12 bins doubles the frequency
	for k := 0; k+12 < len(freqs); k++ {
		assert.InDelta(t, 2.0, freqs[k+12]/freqs[k], 1e-9, "bin %d", k)
	}
}

func TestCQT_PitchClass(t *testing.T) {
	cqt := NewCQT(22050)

	assert.Equal(t, 9, cqt.PitchClass(440.0))    // A4
	assert.Equal(t, 0, cqt.PitchClass(261.63))   // C4
	assert.Equal(t, 0, cqt.PitchClass(523.25))   // C5, same class
	assert.Equal(t, 7, cqt.PitchClass(392.0))    // G4
}

func TestCQT_SinePeaksAtExpectedBin(t *testing.T) {
	sampleRate := 22050
	cqt := NewCQT(sampleRate)

	signal := make([]float64, sampleRate)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 440.0 * float64(i) / float64(sampleRate))
	}

	spectrogram, err := cqt.Compute(signal, 512)
	require.NoError(t, err)
	require.NotEmpty(t, spectrogram)

	freqs := cqt.BinFrequencies()
	frame := spectrogram[len(spectrogram)/2]
	peak := 0
	for k := range frame {
		if frame[k] > frame[peak] {
			peak = k
		}
	}
	assert.InDelta(t, 440.0, freqs[peak], 440.0*0.03, "peak landed at %.1f Hz", freqs[peak])
}

func TestCQT_EmptySignal(t *testing.T) {
	cqt := NewCQT(22050)
	_, err := cqt.Compute(nil, 512)
	assert.Error(t, err)
}
