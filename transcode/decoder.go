package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/chordscape/chordscape/logging"
)

// AudioData represents decoded audio: mono PCM at the target sample rate
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"` // 0 = no limit
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"`
}

// DefaultDecoderConfig returns the decoder settings used for chord analysis.
// 22050 Hz mono gives enough bandwidth for pitch content at half the
// transform cost of CD rate.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		MaxDuration:      0,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          120 * time.Second,
	}
}

// Decoder converts audio files to mono float64 PCM via ffmpeg, with a
// pure-Go fallback for MP3 files when ffmpeg is not installed
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a decoder; nil config selects the defaults
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes an audio file into mono PCM at the target sample rate
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"filename":  filename,
	})

	data, err := d.decodeWithFFmpeg(ctx, filename)
	if err == nil {
		logger.Debug("decoded with ffmpeg", logging.Fields{
			"samples":  len(data.PCM),
			"duration": data.Duration.Seconds(),
		})
		return data, nil
	}

	if errors.Is(err, exec.ErrNotFound) && strings.EqualFold(filepath.Ext(filename), ".mp3") {
		logger.Warn("ffmpeg not found, falling back to pure-Go MP3 decode")
		return d.decodeMP3(filename)
	}

	return nil, err
}

// Probe returns the duration in seconds of an audio file via ffprobe
func (d *Decoder) Probe(ctx context.Context, filename string) (float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filename,
	}
	output, err := exec.CommandContext(probeCtx, d.config.FFprobePath, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	return duration, nil
}

// decodeWithFFmpeg pipes raw f64le mono samples out of ffmpeg
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, filename string) (*AudioData, error) {
	args := []string{
		"-v", "error",
		"-i", filename,
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}
	args = append(args,
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"pipe:1",
	)

	decodeCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		decodeCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(decodeCtx, d.config.FFmpegPath, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	return d.newAudioData(samples), nil
}

// decodeMP3 decodes an MP3 file with go-mp3 (16-bit stereo PCM out),
// downmixes to mono, and resamples to the target rate
func (d *Decoder) decodeMP3(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// 16-bit signed stereo, 4 bytes per sample pair
	numPairs := len(pcmData) / 4
	samples := make([]float64, numPairs)
	for i := range numPairs {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcmData[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	if decoder.SampleRate() != d.config.TargetSampleRate {
		samples = resampleLinear(samples, decoder.SampleRate(), d.config.TargetSampleRate)
	}
	if d.config.MaxDuration > 0 {
		maxSamples := int(d.config.MaxDuration.Seconds() * float64(d.config.TargetSampleRate))
		if len(samples) > maxSamples {
			samples = samples[:maxSamples]
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	return d.newAudioData(samples), nil
}

func (d *Decoder) newAudioData(samples []float64) *AudioData {
	duration := time.Duration(len(samples)) * time.Second / time.Duration(d.config.TargetSampleRate)
	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Duration:   duration,
	}
}

// bytesToFloat64 reinterprets little-endian float64 bytes as samples
func bytesToFloat64(data []byte) []float64 {
	numSamples := len(data) / 8
	samples := make([]float64, numSamples)
	for i := range numSamples {
		bits := binary.LittleEndian.Uint64(data[i*8:])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// resampleLinear converts a signal between sample rates by linear
// interpolation; adequate for the fallback path
func resampleLinear(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]float64, outLen)
	for i := range outLen {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx+1 >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
