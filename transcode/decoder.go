package transcode

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-vox/logging"
)

var (
	// ErrEmptyAudio is returned when the input or the decoded output holds
	// no samples
	ErrEmptyAudio = errors.New("transcode: empty audio")
	// ErrInvalidBase64 is returned for a payload that is not base64
	ErrInvalidBase64 = errors.New("transcode: invalid base64 payload")
)

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channels of the source, PCM is always mono
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
	Decoder    string        `json:"decoder"` // "wav" or "ffmpeg"
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	FFmpegPath       string        `json:"ffmpeg_path"`
	Timeout          time.Duration `json:"timeout"` // bound on a single ffmpeg run
}

// DefaultDecoderConfig returns 16 kHz output through ffmpeg on PATH
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 16000,
		FFmpegPath:       "ffmpeg",
		Timeout:          30 * time.Second,
	}
}

// Decoder turns encoded audio into mono float64 PCM at the target rate.
// RIFF/WAVE input is parsed natively; everything else is piped through
// ffmpeg.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeBase64 decodes a base64 payload and then the audio inside it.
// Surrounding whitespace and a data URI prefix are tolerated.
func (d *Decoder) DecodeBase64(ctx context.Context, payload, format string) (*AudioData, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return d.Decode(ctx, data, format)
}

// DecodeBase64 returns the bytes of a standard (padded or unpadded) base64
// payload
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, ErrEmptyAudio
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return data, nil
}

// DecodeFile reads and decodes an audio file. The format hint is taken from
// the extension.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	format := ""
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		format = strings.ToLower(filename[i+1:])
	}
	return d.Decode(ctx, data, format)
}

// Decode decodes audio bytes. format is a hint ("mp3", "wav", ...) and may
// be empty; WAV content is detected from its header regardless of the hint.
func (d *Decoder) Decode(ctx context.Context, data []byte, format string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function":  "Decode",
		"data_size": len(data),
		"format":    format,
	})

	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	var (
		audio *AudioData
		err   error
	)
	if IsWAV(data) {
		audio, err = d.decodeWAV(data)
	} else {
		audio, err = d.decodeWithFFmpeg(ctx, data, format)
	}
	if err != nil {
		logger.Debug("Audio decode failed", logging.Fields{"error": err})
		return nil, err
	}
	if len(audio.PCM) == 0 {
		return nil, ErrEmptyAudio
	}

	audio.Format = format
	audio.Duration = time.Duration(len(audio.PCM)) * time.Second / time.Duration(audio.SampleRate)

	logger.Debug("Audio decoded", logging.Fields{
		"decoder":  audio.Decoder,
		"samples":  len(audio.PCM),
		"channels": audio.Channels,
		"duration": audio.Duration.Seconds(),
	})
	return audio, nil
}

func (d *Decoder) decodeWAV(data []byte) (*AudioData, error) {
	wav, err := ParseWAV(data)
	if err != nil {
		return nil, err
	}

	mono := Downmix(wav.Samples, wav.Channels)
	pcm, err := Resample(mono, wav.SampleRate, d.config.TargetSampleRate)
	if err != nil {
		return nil, err
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: d.config.TargetSampleRate,
		Channels:   wav.Channels,
		Decoder:    "wav",
	}, nil
}

// decodeWithFFmpeg pipes data through ffmpeg, producing mono f64le at the
// target rate
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte, format string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "decodeWithFFmpeg",
	})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := d.buildFFmpegArgs(format)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(data)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	startTime := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg decode timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_bytes": len(output),
		"decode_time":  time.Since(startTime).Seconds(),
	})

	return &AudioData{
		PCM:        bytesToFloat64(output),
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Decoder:    "ffmpeg",
	}, nil
}

// buildFFmpegArgs reads from stdin and writes raw mono float64 to stdout
func (d *Decoder) buildFFmpegArgs(format string) []string {
	args := []string{"-v", "error"}
	if demuxer := inputDemuxer(format); demuxer != "" {
		args = append(args, "-f", demuxer)
	}
	return append(args,
		"-i", "pipe:0",
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
		"pipe:1",
	)
}

// inputDemuxer maps a format hint to an ffmpeg demuxer. Unknown hints are
// left to ffmpeg's probing.
func inputDemuxer(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return "mp3"
	case "ogg", "opus":
		return "ogg"
	case "flac":
		return "flac"
	case "webm":
		return "webm"
	default:
		return ""
	}
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a
// trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	if sampleCount == 0 {
		return nil
	}

	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}

// ValidateConfig validates the decoder configuration. ffmpeg availability
// is checked separately by CheckFFmpeg since WAV input does not need it.
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	return nil
}

// CheckFFmpeg reports whether the configured ffmpeg binary runs
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	return nil
}

// GetSupportedFormats returns the format hints accepted by Decode
func (d *Decoder) GetSupportedFormats() []string {
	return []string{"wav", "mp3", "ogg", "opus", "flac", "webm", "m4a", "aac"}
}
