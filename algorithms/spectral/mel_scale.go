package spectral

import (
	"math"
)

// MelScale converts between Hz and the Slaney mel scale (linear below
// 1 kHz, logarithmic above) and builds area-normalized filter banks
type MelScale struct {
	minLogHz  float64
	minLogMel float64
	linStep   float64
	logStep   float64
}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{
		minLogHz:  1000.0,
		minLogMel: 15.0,
		linStep:   200.0 / 3.0,
		logStep:   math.Log(6.4) / 27.0,
	}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if hz >= ms.minLogHz {
		return ms.minLogMel + math.Log(hz/ms.minLogHz)/ms.logStep
	}
	return hz / ms.linStep
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if mel >= ms.minLogMel {
		return ms.minLogHz * math.Exp(ms.logStep*(mel-ms.minLogMel))
	}
	return mel * ms.linStep
}

// CreateMelFilterBank creates numFilters triangular filters over the
// fftSize/2+1 one-sided bins, spaced evenly in mel between lowFreq and
// highFreq. Each filter is scaled by 2/(bandwidth in Hz) so filters carry
// equal area.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	bins := fftSize/2 + 1
	binFreqs := make([]float64, bins)
	for k := range bins {
		binFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	// Equally spaced mel points, converted back to Hz
	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)
	hzPoints := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range hzPoints {
		hzPoints[i] = ms.MelToHz(lowMel + float64(i)*melStep)
	}

	filterBank := make([][]float64, numFilters)
	for m := range numFilters {
		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]
		norm := 2.0 / (right - left)

		filter := make([]float64, bins)
		for k, f := range binFreqs {
			rising := (f - left) / (center - left)
			falling := (right - f) / (right - center)
			filter[k] = math.Max(0, math.Min(rising, falling)) * norm
		}
		filterBank[m] = filter
	}

	return filterBank
}

// ApplyFilterBank applies mel filter bank to power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))

	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}

// ComputeMelSpectrogramFrames maps a power spectrogram (time x bins) onto
// the filter bank
func (ms *MelScale) ComputeMelSpectrogramFrames(powerSpectrogram [][]float64, filterBank [][]float64) [][]float64 {
	melSpectrogram := make([][]float64, len(powerSpectrogram))
	for t, power := range powerSpectrogram {
		melSpectrogram[t] = ms.ApplyFilterBank(power, filterBank)
	}
	return melSpectrogram
}

// PowerToDB converts a power spectrogram to decibels in place relative to a
// reference of 1, flooring power at amin and clipping everything more than
// topDB below the global peak. topDB <= 0 disables clipping.
func PowerToDB(spectrogram [][]float64, amin, topDB float64) {
	peak := math.Inf(-1)
	for _, frame := range spectrogram {
		for i, p := range frame {
			db := 10.0 * math.Log10(math.Max(amin, p))
			frame[i] = db
			peak = math.Max(peak, db)
		}
	}

	if topDB <= 0 || math.IsInf(peak, -1) {
		return
	}

	floor := peak - topDB
	for _, frame := range spectrogram {
		for i, db := range frame {
			frame[i] = math.Max(db, floor)
		}
	}
}
