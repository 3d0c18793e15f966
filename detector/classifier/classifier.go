// Package classifier maps feature vectors to AI_GENERATED / HUMAN
// probabilities and manages the lifecycle of the fitted model.
package classifier

import (
	"errors"
	"fmt"
	"slices"
)

// Label is a classification outcome
type Label string

const (
	LabelAIGenerated Label = "AI_GENERATED"
	LabelHuman       Label = "HUMAN"
)

// Kinds of classifier, used as the persisted discriminator
const (
	KindForest   = "forest"
	KindLogistic = "logistic"
)

var (
	// ErrNotFitted is returned when predicting with an untrained model
	ErrNotFitted = errors.New("classifier: model not fitted")
	// ErrDimension is returned when a vector has the wrong length
	ErrDimension = errors.New("classifier: feature dimension mismatch")
)

// Classifier is a trainable probabilistic binary classifier
type Classifier interface {
	// Fit trains on rows of X with labels y
	Fit(X [][]float64, y []Label) error
	// PredictProba returns one probability per entry of Classes
	PredictProba(x []float64) ([]float64, error)
	// Classes returns the column order of PredictProba
	Classes() []Label
	// Kind identifies the implementation
	Kind() string
}

// Prediction is the outcome for a single vector
type Prediction struct {
	Label         Label             `json:"label"`
	Confidence    float64           `json:"confidence"`
	Probabilities map[Label]float64 `json:"probabilities"`
}

// Predict classifies x, picking the most probable class. Ties go to the
// class listed first in Classes.
func Predict(c Classifier, x []float64) (Prediction, error) {
	probs, err := c.PredictProba(x)
	if err != nil {
		return Prediction{}, err
	}

	classes := c.Classes()
	if len(probs) != len(classes) || len(probs) == 0 {
		return Prediction{}, fmt.Errorf("classifier returned %d probabilities for %d classes", len(probs), len(classes))
	}

	best := 0
	byLabel := make(map[Label]float64, len(classes))
	for i, p := range probs {
		byLabel[classes[i]] = p
		if p > probs[best] {
			best = i
		}
	}

	return Prediction{
		Label:         classes[best],
		Confidence:    probs[best],
		Probabilities: byLabel,
	}, nil
}

// New creates an unfitted classifier of the given kind
func New(kind string, opts Options) (Classifier, error) {
	switch kind {
	case KindForest:
		return NewForest(opts.Forest), nil
	case KindLogistic:
		return NewLogistic(opts.Logistic), nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", kind)
	}
}

// Options bundles hyperparameters for every kind
type Options struct {
	Forest   ForestParams
	Logistic LogisticParams
}

func validateTraining(X [][]float64, y []Label) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("classifier: empty training set")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("classifier: %d rows but %d labels", len(X), len(y))
	}
	dim := len(X[0])
	if dim == 0 {
		return 0, errors.New("classifier: zero-width feature rows")
	}
	for i, row := range X {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), dim)
		}
	}
	return dim, nil
}

// sortedLabels returns the distinct labels of y in ascending order
func sortedLabels(y []Label) []Label {
	labels := slices.Clone(y)
	slices.Sort(labels)
	return slices.Compact(labels)
}
