package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy), the ratio
// of the geometric to the arithmetic mean of a spectrum. Synthetic speech
// with buzzy, evenly filled spectra tends to score higher than natural voice.
type SpectralFlatness struct {
	minThreshold float64 // Floor applied before the log
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// Compute calculates flatness of one power spectrum. Every bin is floored
// at the threshold, so silence yields 1 rather than NaN.
func (sf *SpectralFlatness) Compute(powerSpectrum []float64) float64 {
	if len(powerSpectrum) == 0 {
		return 0.0
	}

	logSum := 0.0
	sum := 0.0
	for _, p := range powerSpectrum {
		p = math.Max(sf.minThreshold, p)
		logSum += math.Log(p)
		sum += p
	}

	n := float64(len(powerSpectrum))
	geometricMean := math.Exp(logSum / n)
	arithmeticMean := sum / n

	return geometricMean / arithmeticMean
}

// ComputeFrames processes multiple frames of a power spectrogram
func (sf *SpectralFlatness) ComputeFrames(powerSpectrogram [][]float64) []float64 {
	flatness := make([]float64, len(powerSpectrogram))
	for t, power := range powerSpectrogram {
		flatness[t] = sf.Compute(power)
	}
	return flatness
}

// ComputeOffset calculates flatness of a magnitude spectrum with eps added
// to every bin and to the denominator: exp(mean(log S)) / (mean(S) + eps)
// where S = magnitude + eps
func (sf *SpectralFlatness) ComputeOffset(magnitudeSpectrum []float64, eps float64) float64 {
	if len(magnitudeSpectrum) == 0 {
		return 0.0
	}

	logSum := 0.0
	sum := 0.0
	for _, mag := range magnitudeSpectrum {
		s := mag + eps
		logSum += math.Log(s)
		sum += s
	}

	n := float64(len(magnitudeSpectrum))
	return math.Exp(logSum/n) / (sum/n + eps)
}
