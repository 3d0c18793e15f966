package extractors

import (
	"github.com/RyanBlaney/sonido-vox/algorithms/common"
)

// Canonical feature names. The order of FeatureNames is the column order
// every trained model depends on and must never change.
const (
	FeatureF0Mean       = "f0_mean"
	FeatureF0Std        = "f0_std"
	FeatureJitter       = "jitter"
	FeatureShimmer      = "shimmer"
	FeatureEnergyMean   = "energy_mean"
	FeatureEnergyStd    = "energy_std"
	FeatureMFCCMean0    = "mfcc_mean_0"
	FeatureMFCCStd0     = "mfcc_std_0"
	FeatureSpecFlatMean = "spec_flat_mean"
	FeatureZCRMean      = "zcr_mean"
	FeatureDuration     = "duration"
	FeatureEnergySkew   = "energy_skew"
)

// FeatureNames lists the feature vector columns in order
var FeatureNames = []string{
	FeatureF0Mean,
	FeatureF0Std,
	FeatureJitter,
	FeatureShimmer,
	FeatureEnergyMean,
	FeatureEnergyStd,
	FeatureMFCCMean0,
	FeatureMFCCStd0,
	FeatureSpecFlatMean,
	FeatureZCRMean,
	FeatureDuration,
	FeatureEnergySkew,
}

// FeatureCount is the length of every FeatureVector
const FeatureCount = 12

// FeatureSet maps canonical names to values
type FeatureSet map[string]float64

// FeatureVector holds the features in FeatureNames order
type FeatureVector []float64

// PitchStats summarizes the f0 contour
type PitchStats struct {
	F0Mean float64 `json:"f0_mean"`
	F0Std  float64 `json:"f0_std"`
	Jitter float64 `json:"jitter"`
}

// EnergyStats summarizes an energy contour. Frames is the contour itself,
// per sample or per frame depending on the analyzer.
type EnergyStats struct {
	Mean    float64   `json:"energy_mean"`
	Std     float64   `json:"energy_std"`
	Shimmer float64   `json:"shimmer"`
	Skew    float64   `json:"energy_skew"`
	Frames  []float64 `json:"-"`
}

// SpectralStats summarizes cepstral and spectral shape
type SpectralStats struct {
	MFCCMean0    float64 `json:"mfcc_mean_0"`
	MFCCStd0     float64 `json:"mfcc_std_0"`
	FlatnessMean float64 `json:"spec_flat_mean"`
	ZCRMean      float64 `json:"zcr_mean"`
}

// Vector returns the set's values in FeatureNames order. Missing names
// read as 0.
func (fs FeatureSet) Vector() FeatureVector {
	v := make(FeatureVector, len(FeatureNames))
	for i, name := range FeatureNames {
		v[i] = fs[name]
	}
	return v
}

// Set maps a vector in FeatureNames order back onto names
func (v FeatureVector) Set() FeatureSet {
	fs := make(FeatureSet, len(FeatureNames))
	for i, name := range FeatureNames {
		if i < len(v) {
			fs[name] = v[i]
		} else {
			fs[name] = 0
		}
	}
	return fs
}

func assemble(pitch PitchStats, energy EnergyStats, spec SpectralStats, duration float64) FeatureSet {
	fs := FeatureSet{
		FeatureF0Mean:       pitch.F0Mean,
		FeatureF0Std:        pitch.F0Std,
		FeatureJitter:       pitch.Jitter,
		FeatureShimmer:      energy.Shimmer,
		FeatureEnergyMean:   energy.Mean,
		FeatureEnergyStd:    energy.Std,
		FeatureMFCCMean0:    spec.MFCCMean0,
		FeatureMFCCStd0:     spec.MFCCStd0,
		FeatureSpecFlatMean: spec.FlatnessMean,
		FeatureZCRMean:      spec.ZCRMean,
		FeatureDuration:     duration,
		FeatureEnergySkew:   energy.Skew,
	}
	for name, value := range fs {
		fs[name] = common.Finite(value)
	}
	return fs
}
