package ml

import (
	"errors"
	"fmt"
	"math"
)

// LogisticRegression is the baseline linear strategy: full-batch
// gradient descent on log loss with balanced class weights and L2
// regularisation. Inputs are expected preprocessed (imputed + scaled).
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	L2           float64 `json:"l2"`
}

// NewLogisticRegression returns an untrained model with default
// hyperparameters.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.1,
		Epochs:       500,
		L2:           1e-4,
	}
}

func (lr *LogisticRegression) Name() string { return ModelLogisticRegression }

// Fit trains with deterministic zero-initialised weights. Class weights
// are balanced so the minority class is not drowned out.
func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("logistic regression: empty training set")
	}
	n := len(X)
	dims := len(X[0])
	lr.Weights = make([]float64, dims)
	lr.Bias = 0

	nPos := 0
	for _, label := range y {
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return fmt.Errorf("logistic regression: training set has a single class (%d positive of %d)", nPos, n)
	}
	// balanced: w_c = n / (2 * n_c)
	wPos := float64(n) / (2 * float64(nPos))
	wNeg := float64(n) / (2 * float64(nNeg))

	gradW := make([]float64, dims)
	for epoch := 0; epoch < lr.Epochs; epoch++ {
		for d := range gradW {
			gradW[d] = 0
		}
		gradB := 0.0
		for i, row := range X {
			p := sigmoid(dot(lr.Weights, row) + lr.Bias)
			sampleWeight := wNeg
			target := 0.0
			if y[i] == 1 {
				sampleWeight = wPos
				target = 1.0
			}
			diff := (p - target) * sampleWeight
			for d, v := range row {
				gradW[d] += diff * v
			}
			gradB += diff
		}
		scale := lr.LearningRate / float64(n)
		for d := range lr.Weights {
			lr.Weights[d] -= scale * (gradW[d] + lr.L2*lr.Weights[d])
		}
		lr.Bias -= scale * gradB
	}
	return nil
}

// PredictProba returns P(risky) for one preprocessed row.
func (lr *LogisticRegression) PredictProba(x []float64) (float64, error) {
	if lr.Weights == nil {
		return 0, errors.New("logistic regression: not fitted")
	}
	if len(x) != len(lr.Weights) {
		return 0, fmt.Errorf("logistic regression: expected %d features, got %d", len(lr.Weights), len(x))
	}
	return sigmoid(dot(lr.Weights, x) + lr.Bias), nil
}

func (lr *LogisticRegression) Predict(x []float64) (int, error) {
	p, err := lr.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i, v := range a {
		sum += v * b[i]
	}
	return sum
}
