package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSignal(freq float64, sampleRate, length int) []float64 {
	signal := make([]float64, length)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return signal
}

func TestSTFT_Compute(t *testing.T) {
	stft := NewSTFT()
	signal := sineSignal(440, 22050, 4096)

	result, err := stft.Compute(signal, 1024, 256, 22050)
	require.NoError(t, err)

	assert.Equal(t, (4096-1024)/256+1, result.TimeFrames)
	assert.Equal(t, 513, result.FreqBins)
	assert.Equal(t, 4096, result.SignalLen)
	require.Len(t, result.Complex, result.TimeFrames)
	require.Len(t, result.Magnitude, result.TimeFrames)

	// The 440 Hz peak lands in bin round(440 * 1024 / 22050)
	expectedBin := int(math.Round(440.0 * 1024.0 / 22050.0))
	frame := result.Magnitude[result.TimeFrames/2]
	peakBin := 0
	for i, mag := range frame {
		if mag > frame[peakBin] {
			peakBin = i
		}
	}
	assert.InDelta(t, expectedBin, peakBin, 1)
}

func TestSTFT_ComputeValidation(t *testing.T) {
	stft := NewSTFT()

	_, err := stft.Compute(nil, 1024, 256, 22050)
	assert.Error(t, err)

	_, err = stft.Compute(make([]float64, 100), 1024, 256, 22050)
	assert.Error(t, err, "signal shorter than the window")

	_, err = stft.Compute(make([]float64, 4096), 0, 256, 22050)
	assert.Error(t, err)

	_, err = stft.Compute(make([]float64, 4096), 1024, 0, 22050)
	assert.Error(t, err)
}

// Analysis followed by unmasked resynthesis must reproduce the signal
// wherever frames overlap fully
func TestSTFT_RoundTrip(t *testing.T) {
	stft := NewSTFT()
	signal := sineSignal(523.25, 22050, 4096)

	result, err := stft.Compute(signal, 1024, 256, 22050)
	require.NoError(t, err)

	reconstructed := stft.Inverse(result.Complex, 1024, 256, result.SignalLen)
	require.Len(t, reconstructed, len(signal))

	for i := 1024; i < 3072; i++ {
		assert.InDelta(t, signal[i], reconstructed[i], 1e-6, "sample %d", i)
	}
}

func TestSTFT_InverseDegenerate(t *testing.T) {
	stft := NewSTFT()
	assert.Nil(t, stft.Inverse(nil, 1024, 256, 4096))
	assert.Nil(t, stft.Inverse([][]complex128{make([]complex128, 513)}, 0, 256, 4096))
}
