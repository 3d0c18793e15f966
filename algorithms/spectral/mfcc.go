package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-vox/algorithms/common"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from a power
// spectrogram: mel filter bank, conversion to dB clipped at TopDB below the
// peak, then an orthonormal DCT-II over the mel axis
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	lowFreq         float64
	highFreq        float64
	topDB           float64

	// Internal components
	melScale   *MelScale
	filterBank [][]float64
	dctMatrix  [][]float64
	fftSize    int
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients (default: 13)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 40)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	TopDB           float64 `json:"top_db"`           // Dynamic range kept below the peak (default: 80)
}

// DefaultMFCCParams returns the speech analysis defaults
func DefaultMFCCParams(sampleRate int) MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   40,
		LowFreq:         0.0,
		HighFreq:        float64(sampleRate) / 2.0,
		TopDB:           80.0,
	}
}

// NewMFCC creates a new MFCC computer with default parameters
func NewMFCC(sampleRate, numCoefficients int) *MFCC {
	params := DefaultMFCCParams(sampleRate)
	params.NumCoefficients = numCoefficients
	return NewMFCCWithParams(sampleRate, params)
}

// NewMFCCWithParams creates a new MFCC computer with custom parameters
func NewMFCCWithParams(sampleRate int, params MFCCParams) *MFCC {
	defaults := DefaultMFCCParams(sampleRate)
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = defaults.NumCoefficients
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = defaults.NumMelFilters
	}
	if params.HighFreq <= 0 {
		params.HighFreq = defaults.HighFreq
	}

	return &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		topDB:           params.TopDB,
		melScale:        NewMelScale(),
	}
}

// Initialize prepares the filter bank and DCT matrix for the given FFT size
func (mfcc *MFCC) Initialize(fftSize int) error {
	if fftSize <= 0 {
		return fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if mfcc.numCoefficients > mfcc.numMelFilters {
		return fmt.Errorf("%d coefficients requested from %d mel filters", mfcc.numCoefficients, mfcc.numMelFilters)
	}

	mfcc.filterBank = mfcc.melScale.CreateMelFilterBank(
		mfcc.numMelFilters,
		fftSize,
		mfcc.sampleRate,
		mfcc.lowFreq,
		mfcc.highFreq,
	)
	if len(mfcc.filterBank) == 0 {
		return fmt.Errorf("failed to create mel filter bank")
	}

	mfcc.createDCTMatrix()
	mfcc.fftSize = fftSize
	return nil
}

// ComputeFrames returns one coefficient vector per frame of a power
// spectrogram (time x bins). The dB clipping is relative to the peak of the
// whole spectrogram, so frames are not independent.
func (mfcc *MFCC) ComputeFrames(powerSpectrogram [][]float64) ([][]float64, error) {
	if len(powerSpectrogram) == 0 {
		return [][]float64{}, nil
	}

	fftSize := (len(powerSpectrogram[0]) - 1) * 2
	if mfcc.fftSize != fftSize {
		if err := mfcc.Initialize(fftSize); err != nil {
			return nil, fmt.Errorf("failed to initialize MFCC: %w", err)
		}
	}

	melSpectrogram := mfcc.melScale.ComputeMelSpectrogramFrames(powerSpectrogram, mfcc.filterBank)
	PowerToDB(melSpectrogram, 1e-10, mfcc.topDB)

	mfccFrames := make([][]float64, len(melSpectrogram))
	for t, logMel := range melSpectrogram {
		mfccFrames[t] = mfcc.applyDCT(logMel)
	}

	return mfccFrames, nil
}

// Coefficient extracts the trajectory of coefficient k over time
func Coefficient(mfccFrames [][]float64, k int) []float64 {
	track := make([]float64, 0, len(mfccFrames))
	for _, frame := range mfccFrames {
		if k < len(frame) {
			track = append(track, frame[k])
		}
	}
	return track
}

// createDCTMatrix creates the orthonormal DCT-II matrix
func (mfcc *MFCC) createDCTMatrix() {
	n := float64(mfcc.numMelFilters)
	mfcc.dctMatrix = make([][]float64, mfcc.numCoefficients)

	for k := range mfcc.numCoefficients {
		mfcc.dctMatrix[k] = make([]float64, mfcc.numMelFilters)

		scale := math.Sqrt(2.0 / n)
		if k == 0 {
			scale = math.Sqrt(1.0 / n)
		}
		for i := range mfcc.numMelFilters {
			mfcc.dctMatrix[k][i] = scale * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
		}
	}
}

func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	mfccCoeffs := make([]float64, mfcc.numCoefficients)

	for k, row := range mfcc.dctMatrix {
		sum := 0.0
		for n := 0; n < len(logMelSpectrum) && n < len(row); n++ {
			sum += logMelSpectrum[n] * row[n]
		}
		mfccCoeffs[k] = sum
	}

	return mfccCoeffs
}

// LogBandMeans is a coarse cepstral summary of a whole-signal magnitude
// spectrum: log(magnitude + eps) split into numBands contiguous bands, one
// mean per band. Empty bands contribute 0.
func LogBandMeans(magnitudeSpectrum []float64, numBands int, eps float64) []float64 {
	logSpectrum := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		logSpectrum[i] = math.Log(mag + eps)
	}

	bands := common.ArraySplit(logSpectrum, numBands)
	means := make([]float64, len(bands))
	for i, band := range bands {
		means[i] = common.Mean(band)
	}
	return means
}
