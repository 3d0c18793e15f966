package extractors

import (
	"fmt"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
	"github.com/RyanBlaney/sonido-vox/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vox/algorithms/windowing"
)

// SpectralAnalyzer summarizes cepstral and spectral shape
type SpectralAnalyzer interface {
	Analyze(signal []float64, sampleRate int) (SpectralStats, error)
}

// WholeSpectrum works on a single FFT of the entire signal
type WholeSpectrum struct {
	fft      *spectral.FFT
	flatness *spectral.SpectralFlatness
}

// NewWholeSpectrum creates a whole-signal analyzer
func NewWholeSpectrum() *WholeSpectrum {
	return &WholeSpectrum{
		fft:      spectral.NewFFT(),
		flatness: spectral.NewSpectralFlatness(),
	}
}

func (w *WholeSpectrum) Analyze(signal []float64, sampleRate int) (SpectralStats, error) {
	magnitude := w.fft.RealMagnitude(signal)
	bands := spectral.LogBandMeans(magnitude, 13, 1e-8)

	return SpectralStats{
		MFCCMean0:    bands[0],
		MFCCStd0:     common.PopStdDev(bands),
		FlatnessMean: w.flatness.ComputeOffset(magnitude, 1e-12),
		ZCRMean:      spectral.SignChangeRate(signal),
	}, nil
}

// FramedSpectrum works on a Hann-windowed STFT
type FramedSpectrum struct {
	windowSize      int
	hopSize         int
	numCoefficients int

	stft     *spectral.STFT
	window   *windowing.Hann
	flatness *spectral.SpectralFlatness
	zcr      *spectral.ZeroCrossingRate
}

// NewFramedSpectrum creates an analyzer with a 2048 point FFT, hop 512 and
// 13 cepstral coefficients
func NewFramedSpectrum() *FramedSpectrum {
	return &FramedSpectrum{
		windowSize:      2048,
		hopSize:         512,
		numCoefficients: 13,
		stft:            spectral.NewSTFT(),
		window:          windowing.NewHann(2048, false),
		flatness:        spectral.NewSpectralFlatness(),
		zcr:             spectral.NewZeroCrossingRateWithParams(2048, 512, true),
	}
}

func (f *FramedSpectrum) Analyze(signal []float64, sampleRate int) (SpectralStats, error) {
	stft, err := f.stft.ComputeWithWindow(signal, f.windowSize, f.hopSize, sampleRate, f.window, true)
	if err != nil {
		return SpectralStats{}, fmt.Errorf("failed to compute STFT: %w", err)
	}
	power := stft.Power()

	mfccFrames, err := spectral.NewMFCC(sampleRate, f.numCoefficients).ComputeFrames(power)
	if err != nil {
		return SpectralStats{}, fmt.Errorf("failed to compute MFCC: %w", err)
	}
	c0 := spectral.Coefficient(mfccFrames, 0)

	return SpectralStats{
		MFCCMean0:    common.Mean(c0),
		MFCCStd0:     common.PopStdDev(c0),
		FlatnessMean: common.Mean(f.flatness.ComputeFrames(power)),
		ZCRMean:      common.Mean(f.zcr.ComputeFrames(signal)),
	}, nil
}
