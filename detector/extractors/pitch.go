package extractors

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
	"github.com/RyanBlaney/sonido-vox/algorithms/tonal"
)

// PitchEstimator summarizes the fundamental frequency of a signal
type PitchEstimator interface {
	Estimate(signal []float64, sampleRate int) (PitchStats, error)
}

// AutocorrPitch reports a single whole-signal f0; spread and jitter are
// always 0
type AutocorrPitch struct{}

func (AutocorrPitch) Estimate(signal []float64, sampleRate int) (PitchStats, error) {
	return PitchStats{F0Mean: tonal.AutocorrelationPitch(signal, sampleRate)}, nil
}

// TrackedPitch decodes a frame-level f0 contour and summarizes it.
// Unvoiced frames count as 0 in every statistic.
type TrackedPitch struct {
	MinFreq float64
	MaxFreq float64
}

// NewTrackedPitch creates an estimator for the 50-500 Hz speech range
func NewTrackedPitch() *TrackedPitch {
	return &TrackedPitch{MinFreq: 50.0, MaxFreq: 500.0}
}

func (p *TrackedPitch) Estimate(signal []float64, sampleRate int) (stats PitchStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			stats, err = PitchStats{}, fmt.Errorf("pitch tracking panicked: %v", r)
		}
	}()

	params := tonal.DefaultPitchDetectionParams(sampleRate)
	params.MinFreq = p.MinFreq
	params.MaxFreq = p.MaxFreq

	detector, err := tonal.NewPitchDetectorWithParams(params)
	if err != nil {
		return PitchStats{}, fmt.Errorf("failed to create pitch detector: %w", err)
	}

	track, err := detector.Track(signal)
	if err != nil {
		return PitchStats{}, fmt.Errorf("failed to track pitch: %w", err)
	}

	f0 := make([]float64, len(track.F0))
	for i, f := range track.F0 {
		f0[i] = common.Finite(f)
	}

	return ContourStats(f0), nil
}

// ContourStats computes mean, population std and relative jitter
// mean(|Δf0|) / (mean + 1e-8) of an f0 contour
func ContourStats(f0 []float64) PitchStats {
	mean := common.Mean(f0)

	jitter := 0.0
	if len(f0) > 1 {
		sum := 0.0
		for i := 1; i < len(f0); i++ {
			sum += math.Abs(f0[i] - f0[i-1])
		}
		jitter = sum / float64(len(f0)-1) / (mean + 1e-8)
	}

	return PitchStats{
		F0Mean: mean,
		F0Std:  common.PopStdDev(f0),
		Jitter: jitter,
	}
}
