package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
)

// SilenceDetection locates the leading and trailing silence of a clip so it
// can be trimmed before analysis
type SilenceDetection struct {
	energy *Energy
	hop    int
}

// NewSilenceDetection creates a detector that measures loudness with
// centered RMS frames
func NewSilenceDetection(frameSize, hopSize int) *SilenceDetection {
	return &SilenceDetection{
		energy: NewEnergy(frameSize, hopSize, true),
		hop:    hopSize,
	}
}

// AmplitudeSpan returns the half-open span [start, end) from the first to the
// last sample whose magnitude exceeds ratio times the mean magnitude of the
// whole signal. ok is false when no sample exceeds it.
func AmplitudeSpan(signal []float64, ratio float64) (start, end int, ok bool) {
	threshold := ratio * common.MeanAbs(signal)

	start = -1
	for i, x := range signal {
		if math.Abs(x) > threshold {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// TrimAmplitude trims the signal to its AmplitudeSpan, returning the input
// unchanged when nothing exceeds the threshold
func TrimAmplitude(signal []float64, ratio float64) []float64 {
	start, end, ok := AmplitudeSpan(signal, ratio)
	if !ok {
		return signal
	}
	return signal[start:end]
}

// DecibelSpan returns the sample span covered by the frames whose mean
// square energy is within topDB of the loudest frame. ok is false when no
// frame qualifies.
func (sd *SilenceDetection) DecibelSpan(signal []float64, topDB float64) (start, end int, ok bool) {
	const amin = 1e-10

	power := sd.energy.ComputeMeanSquare(signal)
	if len(power) == 0 {
		return 0, 0, false
	}

	ref := 10.0 * math.Log10(math.Max(amin, power[common.ArgMax(power)]))

	first, last := -1, -1
	for i, p := range power {
		if 10.0*math.Log10(math.Max(amin, p))-ref > -topDB {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, false
	}

	start = first * sd.hop
	end = min(len(signal), (last+1)*sd.hop)
	if start >= end {
		return 0, 0, false
	}
	return start, end, true
}

// TrimDecibels trims the signal to its DecibelSpan, returning the input
// unchanged when no frame qualifies
func (sd *SilenceDetection) TrimDecibels(signal []float64, topDB float64) []float64 {
	start, end, ok := sd.DecibelSpan(signal, topDB)
	if !ok {
		return signal
	}
	return signal[start:end]
}

// SilenceRatio returns the fraction of samples trimming would remove
func SilenceRatio(total, kept int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(total-kept) / float64(total)
}
