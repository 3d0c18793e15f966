package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedWAV is returned for WAVE files using an encoding other than
// integer PCM or IEEE float
var ErrUnsupportedWAV = errors.New("transcode: unsupported wav encoding")

const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE
)

// WAV is a parsed RIFF/WAVE file with interleaved samples in [-1, 1]
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Float         bool
	Samples       []float64
}

// IsWAV reports whether data carries a readable RIFF/WAVE header
func IsWAV(data []byte) bool {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	return d.Err() == nil && d.NumChans > 0
}

// ParseWAV decodes 8/16/24/32-bit integer PCM and 32/64-bit float WAVE data.
// WAVE_FORMAT_EXTENSIBLE is read as integer PCM.
func ParseWAV(data []byte) (*WAV, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("transcode: not a RIFF/WAVE file: %w", err)
	}

	switch d.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible, wavFormatFloat:
	default:
		return nil, fmt.Errorf("%w: format 0x%04x with %d bits", ErrUnsupportedWAV, d.WavAudioFormat, d.BitDepth)
	}
	if !d.IsValidFile() {
		return nil, fmt.Errorf("transcode: invalid wav header (%d channels, %d bits, %d Hz)", d.NumChans, d.BitDepth, d.SampleRate)
	}

	w := &WAV{
		SampleRate:    int(d.SampleRate),
		Channels:      int(d.NumChans),
		BitsPerSample: int(d.BitDepth),
		Float:         d.WavAudioFormat == wavFormatFloat,
	}

	var err error
	if w.Float {
		w.Samples, err = readFloatPCM(d, w.BitsPerSample)
	} else {
		w.Samples, err = readIntPCM(d)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// readIntPCM scales integer samples by their source bit depth
func readIntPCM(d *wav.Decoder) ([]float64, error) {
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("transcode: failed to read wav data: %w", err)
	}

	samples := buf.AsFloatBuffer().Data
	switch bits := buf.SourceBitDepth; bits {
	case 8:
		// 8-bit wav is unsigned
		for i, v := range samples {
			samples[i] = (v - 128) / 128
		}
	case 16, 24, 32:
		scale := float64(int64(1) << (bits - 1))
		for i, v := range samples {
			samples[i] = v / scale
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit integer pcm", ErrUnsupportedWAV, bits)
	}
	return samples, nil
}

// readFloatPCM reads IEEE float samples straight from the data chunk, which
// the integer buffer path cannot represent
func readFloatPCM(d *wav.Decoder, bits int) ([]float64, error) {
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("transcode: failed to find wav data: %w", err)
	}
	if d.PCMChunk == nil {
		return nil, errors.New("transcode: missing data chunk")
	}
	raw, err := io.ReadAll(d.PCMChunk)
	if err != nil {
		return nil, fmt.Errorf("transcode: failed to read wav data: %w", err)
	}

	switch bits {
	case 32:
		samples := make([]float64, len(raw)/4)
		for i := range samples {
			samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
		return samples, nil
	case 64:
		return bytesToFloat64(raw), nil
	default:
		return nil, fmt.Errorf("%w: %d-bit float", ErrUnsupportedWAV, bits)
	}
}

// Downmix averages interleaved channels into mono
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for f := range frames {
		sum := 0.0
		for c := range channels {
			sum += interleaved[f*channels+c]
		}
		mono[f] = sum / float64(channels)
	}
	return mono
}

// EncodeWAV writes mono samples as 16-bit PCM. It is used to hand clips to
// tools that expect files and by tests.
func EncodeWAV(samples []float64, sampleRate int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(math.Round(s * 32767))
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav: %w", err)
	}
	return out.buf, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker for the wav encoder, which
// seeks back to patch chunk sizes on Close
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = len(m.buf)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	pos := base + int(offset)
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	m.pos = pos
	return int64(pos), nil
}
