package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticParams configures gradient descent
type LogisticParams struct {
	LearningRate float64 `msgpack:"lr"`
	Iterations   int     `msgpack:"iterations"`
}

// DefaultLogisticParams returns lr 0.5 over 2000 iterations
func DefaultLogisticParams() LogisticParams {
	return LogisticParams{LearningRate: 0.5, Iterations: 2000}
}

// Logistic is a binary logistic regression trained with full-batch
// gradient descent from zero weights. It models P(AI_GENERATED); the class
// order is fixed to [AI_GENERATED, HUMAN] regardless of the training data.
type Logistic struct {
	params  LogisticParams
	weights []float64
	bias    float64
}

// NewLogistic creates an unfitted model. Non-positive params take defaults.
func NewLogistic(params LogisticParams) *Logistic {
	defaults := DefaultLogisticParams()
	if params.LearningRate <= 0 {
		params.LearningRate = defaults.LearningRate
	}
	if params.Iterations <= 0 {
		params.Iterations = defaults.Iterations
	}
	return &Logistic{params: params}
}

func (l *Logistic) Kind() string { return KindLogistic }

func (l *Logistic) Classes() []Label {
	return []Label{LabelAIGenerated, LabelHuman}
}

// Fit runs Iterations steps of w -= lr * Xᵀ(σ(Xw+b) - y)/n and
// b -= lr * mean(σ(Xw+b) - y), with y = 1 for AI_GENERATED
func (l *Logistic) Fit(X [][]float64, y []Label) error {
	dim, err := validateTraining(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	data := mat.NewDense(n, dim, nil)
	target := mat.NewVecDense(n, nil)
	for i, row := range X {
		data.SetRow(i, row)
		if y[i] == LabelAIGenerated {
			target.SetVec(i, 1)
		}
	}

	w := mat.NewVecDense(dim, nil)
	b := 0.0
	logits := mat.NewVecDense(n, nil)
	residual := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(dim, nil)

	for range l.params.Iterations {
		logits.MulVec(data, w)
		for i := range n {
			residual.SetVec(i, sigmoid(logits.AtVec(i)+b)-target.AtVec(i))
		}

		grad.MulVec(data.T(), residual)
		w.AddScaledVec(w, -l.params.LearningRate/float64(n), grad)
		b -= l.params.LearningRate * floats.Sum(residual.RawVector().Data) / float64(n)
	}

	l.weights = make([]float64, dim)
	copy(l.weights, w.RawVector().Data)
	l.bias = b
	return nil
}

// PredictProba returns [P(AI_GENERATED), P(HUMAN)]
func (l *Logistic) PredictProba(x []float64) ([]float64, error) {
	if l.weights == nil {
		return nil, ErrNotFitted
	}
	if len(x) != len(l.weights) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), len(l.weights))
	}

	pAI := sigmoid(floats.Dot(l.weights, x) + l.bias)
	return []float64{pAI, 1 - pAI}, nil
}

// sigmoid is evaluated in the numerically safe branch for each sign. An
// overflowing exp saturates to 0 or 1 rather than producing NaN.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}
