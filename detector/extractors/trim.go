package extractors

import (
	"github.com/RyanBlaney/sonido-vox/algorithms/temporal"
)

// Trimmer removes leading and trailing silence. Implementations never
// return an empty slice for non-empty input.
type Trimmer interface {
	Trim(signal []float64) []float64
}

// ThresholdTrimmer keeps the span between the first and last sample louder
// than Ratio times the mean absolute amplitude
type ThresholdTrimmer struct {
	Ratio float64
}

// NewThresholdTrimmer creates a trimmer with the 10% ratio
func NewThresholdTrimmer() *ThresholdTrimmer {
	return &ThresholdTrimmer{Ratio: 0.1}
}

func (t *ThresholdTrimmer) Trim(signal []float64) []float64 {
	return temporal.TrimAmplitude(signal, t.Ratio)
}

// DecibelTrimmer keeps the frames within TopDB of the loudest RMS frame
type DecibelTrimmer struct {
	TopDB    float64
	detector *temporal.SilenceDetection
}

// NewDecibelTrimmer creates a trimmer with 2048/512 framing and a 60 dB floor
func NewDecibelTrimmer() *DecibelTrimmer {
	return &DecibelTrimmer{
		TopDB:    60.0,
		detector: temporal.NewSilenceDetection(2048, 512),
	}
}

func (t *DecibelTrimmer) Trim(signal []float64) []float64 {
	return t.detector.TrimDecibels(signal, t.TopDB)
}
