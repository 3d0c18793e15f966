package detector

import (
	"fmt"

	"github.com/RyanBlaney/sonido-vox/detector/classifier"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/detector/extractors"
	"github.com/RyanBlaney/sonido-vox/detector/trainset"
	"github.com/RyanBlaney/sonido-vox/logging"
	"github.com/RyanBlaney/sonido-vox/transcode"
)

// OpenStore opens the configured model store. The returned close function
// is never nil.
func OpenStore(cfg *config.Config) (classifier.Store, func() error, error) {
	switch cfg.Model.Store {
	case config.StoreFile:
		return classifier.NewFileStore(cfg.Model.Path), func() error { return nil }, nil
	case config.StoreBadger:
		store, err := classifier.NewBadgerStore(classifier.BadgerOptions{
			Dir:  cfg.Model.BadgerDir,
			Name: cfg.Model.Name,
			Logger: logging.WithFields(logging.Fields{
				"component": "badger",
			}),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown model store %q", cfg.Model.Store)
	}
}

// NewFromConfig builds a detector with the configured mode, store, learner
// and decoder. The model is loaded lazily; call Warmup to load it eagerly.
func NewFromConfig(cfg *config.Config) (*Detector, error) {
	builder, err := extractors.NewBuilder(cfg.Mode)
	if err != nil {
		return nil, err
	}

	store, closer, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	decoder, err := NewDecoder(cfg)
	if err != nil {
		_ = closer()
		return nil, err
	}

	provider := classifier.NewProvider(store, trainset.Trainer(cfg, builder))
	d := New(builder, provider, decoder)
	d.closer = closer
	return d, nil
}

// NewDecoder creates the audio decoder for the configured analysis rate
func NewDecoder(cfg *config.Config) (*transcode.Decoder, error) {
	decoder := transcode.NewDecoder(&transcode.DecoderConfig{
		TargetSampleRate: cfg.SampleRate,
		FFmpegPath:       cfg.Decoder.FFmpegPath,
		Timeout:          cfg.Decoder.Timeout,
	})
	if err := decoder.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}
	return decoder, nil
}
