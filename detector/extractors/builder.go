package extractors

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-vox/algorithms/temporal"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/logging"
)

var (
	// ErrEmptySignal is returned when there is nothing to analyze
	ErrEmptySignal = errors.New("extractors: empty signal")
	// ErrInvalidSampleRate is returned for a non-positive sample rate
	ErrInvalidSampleRate = errors.New("extractors: invalid sample rate")
)

// Builder turns a waveform into the fixed feature vector. It trims once and
// runs each analyzer on the trimmed signal; an analyzer that fails or
// panics contributes zeros instead of failing the whole build.
type Builder struct {
	trimmer  Trimmer
	pitch    PitchEstimator
	energy   EnergyAnalyzer
	spectral SpectralAnalyzer
	mode     config.Mode
	logger   logging.Logger
}

// NewBuilder creates a builder wired for the given mode
func NewBuilder(mode config.Mode) (*Builder, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "feature_builder",
		"mode":      mode,
	})

	var b *Builder
	switch mode {
	case config.ModeRich:
		b = NewBuilderWith(NewDecibelTrimmer(), NewTrackedPitch(), NewFramedEnergy(), NewFramedSpectrum())
	case config.ModeFallback:
		b = NewBuilderWith(NewThresholdTrimmer(), AutocorrPitch{}, SampleEnergy{}, NewWholeSpectrum())
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}

	logger.Debug("Created feature builder")
	b.mode = mode
	b.logger = logger
	return b, nil
}

// NewBuilderWith creates a builder from explicit components
func NewBuilderWith(trimmer Trimmer, pitch PitchEstimator, energy EnergyAnalyzer, spectral SpectralAnalyzer) *Builder {
	return &Builder{
		trimmer:  trimmer,
		pitch:    pitch,
		energy:   energy,
		spectral: spectral,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_builder",
		}),
	}
}

// Mode reports the mode the builder was created for, empty for custom wiring
func (b *Builder) Mode() config.Mode {
	return b.mode
}

// Build extracts the 12 features of signal. Every returned value is finite.
func (b *Builder) Build(signal []float64, sampleRate int) (FeatureVector, FeatureSet, error) {
	if len(signal) == 0 {
		return nil, nil, ErrEmptySignal
	}
	if sampleRate <= 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}

	logger := b.logger.WithFields(logging.Fields{
		"function": "Build",
		"samples":  len(signal),
	})

	trimmed := b.trimmer.Trim(signal)
	if len(trimmed) == 0 {
		trimmed = signal
	}
	logger.Debug("Trimmed silence", logging.Fields{
		"kept":          len(trimmed),
		"silence_ratio": temporal.SilenceRatio(len(signal), len(trimmed)),
	})

	pitch := guard(logger, "pitch", func() (PitchStats, error) {
		return b.pitch.Estimate(trimmed, sampleRate)
	})
	energy := guard(logger, "energy", func() (EnergyStats, error) {
		return b.energy.Analyze(trimmed)
	})
	spec := guard(logger, "spectral", func() (SpectralStats, error) {
		return b.spectral.Analyze(trimmed, sampleRate)
	})

	duration := float64(len(trimmed)) / float64(sampleRate)
	set := assemble(pitch, energy, spec, duration)

	logger.Debug("Feature extraction completed", logging.Fields{
		"duration": duration,
		"f0_mean":  set[FeatureF0Mean],
	})

	return set.Vector(), set, nil
}

// guard runs one analyzer, turning an error or panic into its zero value
func guard[T any](logger logging.Logger, analyzer string, fn func() (T, error)) (result T) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			logger.Error(fmt.Errorf("panic: %v", r), "Analyzer panicked, using zeros", logging.Fields{"analyzer": analyzer})
		}
	}()

	result, err := fn()
	if err != nil {
		var zero T
		logger.Warn("Analyzer failed, using zeros", logging.Fields{"analyzer": analyzer, "error": err})
		return zero
	}
	return result
}
