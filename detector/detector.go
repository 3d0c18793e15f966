// Package detector classifies speech clips as AI-generated or human. It
// wires decoding, feature extraction, the shared model and the explainer
// into a single request pipeline.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-vox/detector/classifier"
	"github.com/RyanBlaney/sonido-vox/detector/explain"
	"github.com/RyanBlaney/sonido-vox/detector/extractors"
	"github.com/RyanBlaney/sonido-vox/logging"
	"github.com/RyanBlaney/sonido-vox/transcode"
)

var (
	// ErrInputDecode marks audio that could not be decoded or is empty.
	// Only the offending request fails.
	ErrInputDecode = errors.New("detector: invalid or undecodable audio")
	// ErrClassifierUnavailable means no model could be loaded or trained
	ErrClassifierUnavailable = errors.New("detector: classifier unavailable")
	// ErrInference marks an unexpected failure while predicting
	ErrInference = errors.New("detector: inference failed")
)

// AudioDecoder turns encoded audio into mono PCM
type AudioDecoder interface {
	Decode(ctx context.Context, data []byte, format string) (*transcode.AudioData, error)
	DecodeBase64(ctx context.Context, payload, format string) (*transcode.AudioData, error)
	DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error)
	GetSupportedFormats() []string
}

// Result is the outcome of one analysis
type Result struct {
	Classification classifier.Label             `json:"classification"`
	Confidence     float64                      `json:"confidence"`
	Explanation    string                       `json:"explanation"`
	Probabilities  map[classifier.Label]float64 `json:"probabilities"`
	Features       extractors.FeatureSet        `json:"features"`
	ModelKind      string                       `json:"model_kind"`
	Elapsed        time.Duration                `json:"elapsed"`
}

// Detector runs the trim, analyze, classify and explain pipeline. It is
// safe for concurrent use; the only shared state is the read-only model
// held by the provider.
type Detector struct {
	builder  *extractors.Builder
	provider *classifier.Provider
	decoder  AudioDecoder
	closer   func() error
	logger   logging.Logger
}

// New creates a detector from its parts. decoder may be nil when only
// Analyze is used.
func New(builder *extractors.Builder, provider *classifier.Provider, decoder AudioDecoder) *Detector {
	return &Detector{
		builder:  builder,
		provider: provider,
		decoder:  decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "detector",
		}),
	}
}

// Warmup loads or trains the model ahead of the first request
func (d *Detector) Warmup(ctx context.Context) error {
	if _, err := d.provider.Get(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return nil
}

// Ready reports whether the model is loaded
func (d *Detector) Ready() bool {
	return d.provider.Ready()
}

// Close releases the model store
func (d *Detector) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

var errNoDecoder = errors.New("detector: no audio decoder configured")

// SupportedFormats returns the format hints the decoder accepts
func (d *Detector) SupportedFormats() []string {
	if d.decoder == nil {
		return nil
	}
	return d.decoder.GetSupportedFormats()
}

// AnalyzeAudio decodes data and analyzes it
func (d *Detector) AnalyzeAudio(ctx context.Context, data []byte, format string) (*Result, error) {
	if d.decoder == nil {
		return nil, errNoDecoder
	}
	audio, err := d.decoder.Decode(ctx, data, format)
	return d.analyzeDecoded(ctx, audio, err)
}

// AnalyzeBase64 decodes a base64 payload and analyzes it
func (d *Detector) AnalyzeBase64(ctx context.Context, payload, format string) (*Result, error) {
	if d.decoder == nil {
		return nil, errNoDecoder
	}
	audio, err := d.decoder.DecodeBase64(ctx, payload, format)
	return d.analyzeDecoded(ctx, audio, err)
}

// AnalyzeFile decodes an audio file, taking the format from its extension
func (d *Detector) AnalyzeFile(ctx context.Context, filename string) (*Result, error) {
	if d.decoder == nil {
		return nil, errNoDecoder
	}
	audio, err := d.decoder.DecodeFile(ctx, filename)
	return d.analyzeDecoded(ctx, audio, err)
}

func (d *Detector) analyzeDecoded(ctx context.Context, audio *transcode.AudioData, err error) (*Result, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDecode, err)
	}
	return d.Analyze(ctx, audio.PCM, audio.SampleRate)
}

// Analyze classifies a mono waveform
func (d *Detector) Analyze(ctx context.Context, signal []float64, sampleRate int) (*Result, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function":    "Analyze",
		"samples":     len(signal),
		"sample_rate": sampleRate,
	})
	start := time.Now()

	vector, features, err := d.builder.Build(signal, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputDecode, err)
	}

	model, err := d.provider.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	prediction, err := predict(model, vector)
	if err != nil {
		logger.Error(err, "Prediction failed")
		return nil, err
	}

	result := &Result{
		Classification: prediction.Label,
		Confidence:     prediction.Confidence,
		Explanation:    explain.Explain(features, prediction.Label),
		Probabilities:  prediction.Probabilities,
		Features:       features,
		ModelKind:      model.Kind(),
		Elapsed:        time.Since(start),
	}

	logger.Debug("Analysis completed", logging.Fields{
		"classification": result.Classification,
		"confidence":     result.Confidence,
		"elapsed":        result.Elapsed.Seconds(),
	})
	return result, nil
}

// predict runs the classifier, converting errors and panics into
// ErrInference
func predict(model classifier.Classifier, vector extractors.FeatureVector) (p classifier.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInference, r)
		}
	}()

	p, err = classifier.Predict(model, vector)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return p, nil
}
