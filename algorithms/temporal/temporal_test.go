package temporal

import (
	"math"
	"testing"
)

func padded(lead int, body []float64, trail int) []float64 {
	out := make([]float64, lead+len(body)+trail)
	copy(out[lead:], body)
	return out
}

func cosine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Cos(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestShortTimeEnergyCentered(t *testing.T) {
	e := NewEnergy(1024, 512, true)
	ones := make([]float64, 4096)
	for i := range ones {
		ones[i] = 1
	}
	rms := e.ComputeShortTimeEnergy(ones)
	if len(rms) != 1+4096/512 {
		t.Fatalf("got %d frames, want %d", len(rms), 1+4096/512)
	}
	// edge frames are half zero padding
	if math.Abs(rms[0]-math.Sqrt(0.5)) > 1e-12 {
		t.Fatalf("first frame rms = %v, want sqrt(0.5)", rms[0])
	}
	if math.Abs(rms[4]-1) > 1e-12 {
		t.Fatalf("interior frame rms = %v, want 1", rms[4])
	}
}

func TestVariation(t *testing.T) {
	if got := Variation([]float64{2, 2, 2}, 1e-8); got != 0 {
		t.Fatalf("constant contour variation = %v, want 0", got)
	}
	if got := Variation(nil, 1e-8); got != 0 {
		t.Fatalf("empty contour variation = %v, want 0", got)
	}
}

func TestTrimAmplitude(t *testing.T) {
	body := cosine(100, 16000, 16000)
	signal := padded(4000, body, 3000)

	trimmed := TrimAmplitude(signal, 0.1)
	if len(trimmed) > len(signal) {
		t.Fatal("trim grew the signal")
	}
	if len(trimmed) != len(body) {
		t.Fatalf("trimmed length %d, want %d", len(trimmed), len(body))
	}
	// idempotent when the kept edges are well above the new threshold
	again := TrimAmplitude(trimmed, 0.1)
	if len(again) != len(trimmed) {
		t.Fatalf("second trim changed length %d -> %d", len(trimmed), len(again))
	}
}

func TestTrimAmplitudeSilence(t *testing.T) {
	silence := make([]float64, 100)
	if got := TrimAmplitude(silence, 0.1); len(got) != len(silence) {
		t.Fatalf("all-zero input should come back unchanged, got len %d", len(got))
	}
	one := []float64{0.3}
	if got := TrimAmplitude(one, 0.1); len(got) != 1 {
		t.Fatalf("single sample trimmed to %d", len(got))
	}
}

func TestTrimDecibels(t *testing.T) {
	sd := NewSilenceDetection(2048, 512)
	body := cosine(200, 16000, 16000)
	signal := padded(8192, body, 8192)

	start, end, ok := sd.DecibelSpan(signal, 60)
	if !ok {
		t.Fatal("expected a non-silent span")
	}
	if start > 8192 || end < 8192+len(body) {
		t.Fatalf("span [%d,%d) cuts into the tone", start, end)
	}
	if start == 0 || end == len(signal) {
		t.Fatalf("span [%d,%d) kept the padding", start, end)
	}

	trimmed := sd.TrimDecibels(signal, 60)
	if len(trimmed) >= len(signal) || len(trimmed) < len(body) {
		t.Fatalf("trimmed length %d out of range", len(trimmed))
	}

	silence := make([]float64, 5000)
	if got := sd.TrimDecibels(silence, 60); len(got) != len(silence) {
		t.Fatalf("silence should come back unchanged, got %d", len(got))
	}
}

func TestSilenceRatio(t *testing.T) {
	if got := SilenceRatio(100, 75); got != 0.25 {
		t.Fatalf("got %v, want 0.25", got)
	}
	if got := SilenceRatio(0, 0); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}
