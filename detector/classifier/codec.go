package classifier

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// blob is the persisted form of a fitted classifier. Exactly one of the
// model sections is set, matching Kind.
type blob struct {
	Kind     string         `msgpack:"kind"`
	Logistic *logisticState `msgpack:"logistic,omitempty"`
	Forest   *forestState   `msgpack:"forest,omitempty"`
}

type logisticState struct {
	Params  LogisticParams `msgpack:"params"`
	Weights []float64      `msgpack:"weights"`
	Bias    float64        `msgpack:"bias"`
}

type forestState struct {
	Params  ForestParams `msgpack:"params"`
	Classes []Label      `msgpack:"classes"`
	Dim     int          `msgpack:"dim"`
	Trees   []tree       `msgpack:"trees"`
}

// Marshal encodes a fitted classifier with msgpack
func Marshal(c Classifier) ([]byte, error) {
	var b blob
	switch m := c.(type) {
	case *Logistic:
		if m.weights == nil {
			return nil, ErrNotFitted
		}
		b = blob{Kind: KindLogistic, Logistic: &logisticState{
			Params:  m.params,
			Weights: m.weights,
			Bias:    m.bias,
		}}
	case *Forest:
		if len(m.trees) == 0 {
			return nil, ErrNotFitted
		}
		b = blob{Kind: KindForest, Forest: &forestState{
			Params:  m.params,
			Classes: m.classes,
			Dim:     m.dim,
			Trees:   m.trees,
		}}
	default:
		return nil, fmt.Errorf("cannot persist classifier of type %T", c)
	}

	data, err := msgpack.Marshal(&b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s model: %w", b.Kind, err)
	}
	return data, nil
}

// Unmarshal decodes a classifier written by Marshal
func Unmarshal(data []byte) (Classifier, error) {
	var b blob
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	switch b.Kind {
	case KindLogistic:
		if b.Logistic == nil || len(b.Logistic.Weights) == 0 {
			return nil, fmt.Errorf("logistic model has no weights")
		}
		return &Logistic{
			params:  b.Logistic.Params,
			weights: b.Logistic.Weights,
			bias:    b.Logistic.Bias,
		}, nil
	case KindForest:
		if b.Forest == nil || len(b.Forest.Trees) == 0 {
			return nil, fmt.Errorf("forest model has no trees")
		}
		if err := b.Forest.validate(); err != nil {
			return nil, err
		}
		return &Forest{
			params:  b.Forest.Params,
			classes: b.Forest.Classes,
			dim:     b.Forest.Dim,
			trees:   b.Forest.Trees,
		}, nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", b.Kind)
	}
}

// validate rejects node references that would index out of range
func (s *forestState) validate() error {
	for ti, t := range s.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				if len(n.Dist) != len(s.Classes) {
					return fmt.Errorf("tree %d leaf %d has %d classes, want %d", ti, ni, len(n.Dist), len(s.Classes))
				}
				continue
			}
			if n.Feature >= s.Dim || n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}
