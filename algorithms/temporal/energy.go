package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
)

// Energy computes frame-level energy contours
type Energy struct {
	frameSize int
	hopSize   int
	center    bool
}

// NewEnergy creates a new energy calculator. With center set, frames are
// centered on multiples of hopSize over a zero padded signal.
func NewEnergy(frameSize, hopSize int, center bool) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
		center:    center,
	}
}

// ComputeShortTimeEnergy calculates RMS energy for overlapping frames
func (e *Energy) ComputeShortTimeEnergy(signal []float64) []float64 {
	frames := common.Frames(signal, e.frameSize, e.hopSize, e.center)
	energies := make([]float64, len(frames))
	for i, frame := range frames {
		energies[i] = common.RMS(frame)
	}
	return energies
}

// ComputeMeanSquare calculates per-frame mean square energy
func (e *Energy) ComputeMeanSquare(signal []float64) []float64 {
	energies := e.ComputeShortTimeEnergy(signal)
	for i, rms := range energies {
		energies[i] = rms * rms
	}
	return energies
}

// AbsoluteEnvelope returns |x| per sample, the sample-level energy contour
func AbsoluteEnvelope(signal []float64) []float64 {
	envelope := make([]float64, len(signal))
	for i, x := range signal {
		envelope[i] = math.Abs(x)
	}
	return envelope
}

// Variation is the coefficient of variation std/(mean+eps) of an energy
// contour, the amplitude perturbation measure used for shimmer
func Variation(energies []float64, eps float64) float64 {
	return common.PopStdDev(energies) / (common.Mean(energies) + eps)
}
