package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-vox/logging"
)

// TrainFunc fits a fresh classifier when no persisted one is available
type TrainFunc func(ctx context.Context) (Classifier, error)

// Provider owns the process-wide model. The first Get loads it from the
// store or trains and persists a new one; every later call, concurrent or
// not, observes the same result. The model is read-only once published.
type Provider struct {
	store Store
	train TrainFunc

	once  sync.Once
	model Classifier
	err   error
	ready atomic.Bool

	logger logging.Logger
}

// NewProvider creates a provider. store may be nil, in which case the model
// is trained on first use and kept in memory only.
func NewProvider(store Store, train TrainFunc) *Provider {
	return &Provider{
		store: store,
		train: train,
		logger: logging.WithFields(logging.Fields{
			"component": "model_provider",
		}),
	}
}

// NewStaticProvider wraps an already fitted classifier
func NewStaticProvider(c Classifier) *Provider {
	p := NewProvider(nil, nil)
	p.once.Do(func() { p.model = c })
	p.ready.Store(true)
	return p
}

// Get returns the model, initializing it on first use. Initialization
// ignores cancellation of ctx; concurrent callers wait for it.
func (p *Provider) Get(ctx context.Context) (Classifier, error) {
	p.once.Do(func() {
		p.model, p.err = p.initialize(context.WithoutCancel(ctx))
		p.ready.Store(p.err == nil)
	})
	return p.model, p.err
}

// Ready reports whether a model has been published
func (p *Provider) Ready() bool {
	return p.ready.Load()
}

func (p *Provider) initialize(ctx context.Context) (Classifier, error) {
	logger := p.logger.WithFields(logging.Fields{"function": "initialize"})

	if p.store != nil {
		model, err := p.store.Load(ctx)
		switch {
		case err == nil:
			logger.Info("Loaded persisted model", logging.Fields{"kind": model.Kind()})
			return model, nil
		case errors.Is(err, ErrModelNotFound):
			logger.Info("No persisted model, training a new one")
		default:
			logger.Warn("Persisted model unreadable, training a new one", logging.Fields{"error": err})
		}
	}

	if p.train == nil {
		return nil, errors.New("classifier: no persisted model and no trainer configured")
	}

	model, err := p.Fit(ctx)
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Fit trains a new model and persists it when a store is configured. It
// does not replace the model already published by Get. A failed save is
// logged; the fitted model is still returned.
func (p *Provider) Fit(ctx context.Context) (Classifier, error) {
	if p.train == nil {
		return nil, errors.New("classifier: no trainer configured")
	}

	start := time.Now()
	model, err := p.train(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	p.logger.Info("Trained model", logging.Fields{
		"kind":    model.Kind(),
		"elapsed": time.Since(start).String(),
	})

	if p.store != nil {
		if err := p.store.Save(ctx, model); err != nil {
			p.logger.Error(err, "Failed to persist model")
		}
	}
	return model, nil
}
