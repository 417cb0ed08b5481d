package ml

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Classifier is a binary classification strategy. The concrete algorithm
// is pluggable; the engine only depends on this contract.
type Classifier interface {
	// Name returns the canonical strategy name stored in bundles.
	Name() string
	// Fit trains on a preprocessed matrix and 0/1 labels.
	Fit(X [][]float64, y []int) error
	// Predict returns the 0/1 label for one preprocessed row.
	Predict(x []float64) (int, error)
}

// ProbabilityClassifier is implemented by strategies that can emit a
// calibrated risk probability. Evaluation degrades ROC-AUC to a safe
// default for classifiers without it.
type ProbabilityClassifier interface {
	// PredictProba returns P(label=1) for one preprocessed row.
	PredictProba(x []float64) (float64, error)
}

const (
	ModelLogisticRegression = "logistic_regression"
	ModelGradientBoosting   = "gradient_boosting"
	ModelRandomForest       = "random_forest"
)

// builders maps model type names (and short aliases) to constructors.
var builders = map[string]func() Classifier{
	ModelLogisticRegression: func() Classifier { return NewLogisticRegression() },
	"lr":                    func() Classifier { return NewLogisticRegression() },
	ModelGradientBoosting:   func() Classifier { return NewGradientBoosting() },
	"gb":                    func() Classifier { return NewGradientBoosting() },
	ModelRandomForest:       func() Classifier { return NewRandomForest() },
	"rf":                    func() Classifier { return NewRandomForest() },
}

// NewClassifier builds a classifier by model type name.
func NewClassifier(modelType string) (Classifier, error) {
	builder, ok := builders[modelType]
	if !ok {
		return nil, fmt.Errorf("unknown model type %q, available: %v", modelType, ModelTypes())
	}
	return builder(), nil
}

// ModelTypes lists the accepted model type names, sorted.
func ModelTypes() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// marshalClassifier serialises a fitted classifier to its JSON parameter
// block for bundle persistence.
func marshalClassifier(c Classifier) (json.RawMessage, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal classifier %s: %w", c.Name(), err)
	}
	return b, nil
}

// unmarshalClassifier rebuilds a classifier from its canonical name and
// stored parameter block.
func unmarshalClassifier(name string, params json.RawMessage) (Classifier, error) {
	c, err := NewClassifier(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, c); err != nil {
		return nil, fmt.Errorf("unmarshal classifier %s: %w", name, err)
	}
	return c, nil
}
