package extractors

import (
	"github.com/RyanBlaney/sonido-vox/algorithms/common"
	"github.com/RyanBlaney/sonido-vox/algorithms/temporal"
)

// EnergyAnalyzer summarizes loudness variation
type EnergyAnalyzer interface {
	Analyze(signal []float64) (EnergyStats, error)
}

// SampleEnergy uses |x| per sample as the contour
type SampleEnergy struct{}

func (SampleEnergy) Analyze(signal []float64) (EnergyStats, error) {
	return contourStats(temporal.AbsoluteEnvelope(signal)), nil
}

// FramedEnergy uses RMS over full frames as the contour. Frames are not
// centered, so a steady tone gives a flat contour.
type FramedEnergy struct {
	energy *temporal.Energy
}

// NewFramedEnergy creates an analyzer with 1024/512 framing
func NewFramedEnergy() *FramedEnergy {
	return &FramedEnergy{energy: temporal.NewEnergy(1024, 512, false)}
}

func (e *FramedEnergy) Analyze(signal []float64) (EnergyStats, error) {
	return contourStats(e.energy.ComputeShortTimeEnergy(signal)), nil
}

func contourStats(frames []float64) EnergyStats {
	return EnergyStats{
		Mean:    common.Mean(frames),
		Std:     common.PopStdDev(frames),
		Shimmer: temporal.Variation(frames, 1e-8),
		Skew:    common.CentralMoment(frames, 3),
		Frames:  frames,
	}
}
