package windowing

import (
	"math"
	"testing"
)

func TestHannPeriodic(t *testing.T) {
	h := NewHann(8, false)
	c := h.coefficients
	if c[0] != 0 {
		t.Fatalf("first coefficient = %v, want 0", c[0])
	}
	if math.Abs(c[4]-1) > 1e-12 {
		t.Fatalf("center coefficient = %v, want 1", c[4])
	}
	// periodic window is not symmetric at the last sample
	if c[7] == 0 {
		t.Fatal("periodic window should not end at zero")
	}
}

func TestHannSymmetric(t *testing.T) {
	c := NewHann(9, true).coefficients
	for i := range c {
		if math.Abs(c[i]-c[len(c)-1-i]) > 1e-12 {
			t.Fatalf("coefficient %d not symmetric", i)
		}
	}
}

func TestHannApplyInPlaceSizeMismatch(t *testing.T) {
	h := NewHann(4, false)
	if err := h.ApplyInPlace(make([]float64, 3)); err == nil {
		t.Fatal("expected size mismatch error")
	}
	sig := []float64{1, 1, 1, 1}
	if err := h.ApplyInPlace(sig); err != nil {
		t.Fatal(err)
	}
	if sig[2] != 1 || sig[0] != 0 {
		t.Fatalf("unexpected windowed signal %v", sig)
	}
}
