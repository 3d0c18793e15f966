package spectral

import (
	"math"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
)

// ZeroCrossingRate calculates zero crossing rate. High ZCR indicates
// fricatives/unvoiced speech or broadband noise, low ZCR voiced speech.
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
	center    bool
	threshold float64 // |x| at or below this counts as zero
}

// NewZeroCrossingRate creates a calculator with 2048/512 centered framing
func NewZeroCrossingRate() *ZeroCrossingRate {
	return NewZeroCrossingRateWithParams(2048, 512, true)
}

// NewZeroCrossingRateWithParams creates calculator with custom parameters
func NewZeroCrossingRateWithParams(frameSize, hopSize int, center bool) *ZeroCrossingRate {
	return &ZeroCrossingRate{
		frameSize: frameSize,
		hopSize:   hopSize,
		center:    center,
		threshold: 1e-10,
	}
}

// Compute returns the fraction of samples in frame at which the sign bit
// flips relative to the previous sample, in [0, 1]
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	prev := zcr.negative(frame[0])
	for _, x := range frame[1:] {
		cur := zcr.negative(x)
		if cur != prev {
			crossings++
		}
		prev = cur
	}

	return float64(crossings) / float64(len(frame))
}

// ComputeFrames calculates ZCR over overlapping frames. Centered framing
// extends the signal by repeating its edge samples, so padding adds no
// spurious crossings.
func (zcr *ZeroCrossingRate) ComputeFrames(signal []float64) []float64 {
	if len(signal) == 0 {
		return []float64{}
	}

	src := signal
	if zcr.center {
		src = padEdge(signal, zcr.frameSize/2)
	}

	frames := common.Frames(src, zcr.frameSize, zcr.hopSize, false)
	rates := make([]float64, len(frames))
	for i, frame := range frames {
		rates[i] = zcr.Compute(frame)
	}
	return rates
}

func (zcr *ZeroCrossingRate) negative(x float64) bool {
	if math.Abs(x) <= zcr.threshold {
		return false
	}
	return x < 0
}

func padEdge(signal []float64, pad int) []float64 {
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)
	first, last := signal[0], signal[len(signal)-1]
	for i := range pad {
		padded[i] = first
		padded[len(padded)-1-i] = last
	}
	return padded
}

// SignChangeRate is the whole-signal rate sum(|Δ sign(x)|)/2 / max(1, n).
// A step through zero (e.g. 1, 0, -1) counts as one crossing.
func SignChangeRate(signal []float64) float64 {
	total := 0.0
	for i := 1; i < len(signal); i++ {
		total += math.Abs(common.Sign(signal[i]) - common.Sign(signal[i-1]))
	}
	return total / 2.0 / float64(max(1, len(signal)))
}
