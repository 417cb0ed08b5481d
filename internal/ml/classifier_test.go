package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableData returns a linearly separable 1-D problem: negatives
// cluster around -1, positives around +1.
func separableData() ([][]float64, []int) {
	X := [][]float64{
		{-1.2}, {-0.9}, {-1.1}, {-0.8}, {-1.0}, {-1.3},
		{1.2}, {0.9}, {1.1}, {0.8}, {1.0}, {1.3},
	}
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	return X, y
}

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		modelType string
		wantName  string
	}{
		{"logistic_regression", ModelLogisticRegression},
		{"lr", ModelLogisticRegression},
		{"gradient_boosting", ModelGradientBoosting},
		{"gb", ModelGradientBoosting},
		{"random_forest", ModelRandomForest},
		{"rf", ModelRandomForest},
	}

	for _, tt := range tests {
		c, err := NewClassifier(tt.modelType)
		require.NoError(t, err, tt.modelType)
		assert.Equal(t, tt.wantName, c.Name())
	}

	_, err := NewClassifier("svm")
	assert.Error(t, err)
}

func TestLogisticRegressionSeparable(t *testing.T) {
	X, y := separableData()
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	for i, row := range X {
		pred, err := lr.Predict(row)
		require.NoError(t, err)
		if pred != y[i] {
			t.Errorf("Predict(%v) = %d, expected %d", row, pred, y[i])
		}
	}

	pHigh, err := lr.PredictProba([]float64{2.0})
	require.NoError(t, err)
	pLow, err := lr.PredictProba([]float64{-2.0})
	require.NoError(t, err)
	assert.Greater(t, pHigh, 0.5)
	assert.Less(t, pLow, 0.5)
}

func TestLogisticRegressionSingleClass(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []int{1, 1, 1}

	lr := NewLogisticRegression()
	assert.Error(t, lr.Fit(X, y))
}

func TestLogisticRegressionNotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	_, err := lr.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestLogisticRegressionDimensionMismatch(t *testing.T) {
	X, y := separableData()
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	_, err := lr.Predict([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestGradientBoostingSeparable(t *testing.T) {
	X, y := separableData()
	gb := NewGradientBoosting()
	require.NoError(t, gb.Fit(X, y))

	for i, row := range X {
		pred, err := gb.Predict(row)
		require.NoError(t, err)
		if pred != y[i] {
			t.Errorf("Predict(%v) = %d, expected %d", row, pred, y[i])
		}
	}
}

func TestRandomForestSeparable(t *testing.T) {
	X, y := separableData()
	rf := NewRandomForest()
	require.NoError(t, rf.Fit(X, y))

	for i, row := range X {
		pred, err := rf.Predict(row)
		require.NoError(t, err)
		if pred != y[i] {
			t.Errorf("Predict(%v) = %d, expected %d", row, pred, y[i])
		}
	}

	pHigh, err := rf.PredictProba([]float64{2.0})
	require.NoError(t, err)
	pLow, err := rf.PredictProba([]float64{-2.0})
	require.NoError(t, err)
	assert.Greater(t, pHigh, 0.5)
	assert.Less(t, pLow, 0.5)
}

func TestRandomForestSingleClass(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []int{0, 0, 0}

	rf := NewRandomForest()
	assert.Error(t, rf.Fit(X, y))
}

func TestRandomForestNotFitted(t *testing.T) {
	rf := NewRandomForest()
	_, err := rf.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestRandomForestDeterministicBySeed(t *testing.T) {
	X, y := separableData()

	first := NewRandomForest()
	second := NewRandomForest()
	require.NoError(t, first.Fit(X, y))
	require.NoError(t, second.Fit(X, y))

	inputs := [][]float64{{-0.5}, {0.0}, {0.5}, {1.5}}
	for _, row := range inputs {
		a, err := first.PredictProba(row)
		require.NoError(t, err)
		b, err := second.PredictProba(row)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestClassifierMarshalRoundTrip(t *testing.T) {
	X, y := separableData()

	for _, modelType := range []string{ModelLogisticRegression, ModelGradientBoosting, ModelRandomForest} {
		t.Run(modelType, func(t *testing.T) {
			c, err := NewClassifier(modelType)
			require.NoError(t, err)
			require.NoError(t, c.Fit(X, y))

			params, err := marshalClassifier(c)
			require.NoError(t, err)

			restored, err := unmarshalClassifier(modelType, params)
			require.NoError(t, err)

			for _, row := range X {
				want, err := c.Predict(row)
				require.NoError(t, err)
				got, err := restored.Predict(row)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

// thresholdStub predicts positive above zero with a fixed margin-based
// probability, giving Evaluate a known-perfect input.
type thresholdStub struct{}

func (thresholdStub) Name() string { return "stub" }

func (thresholdStub) Fit(X [][]float64, y []int) error { return nil }

func (thresholdStub) Predict(x []float64) (int, error) {
	if x[0] > 0 {
		return 1, nil
	}
	return 0, nil
}

func (thresholdStub) PredictProba(x []float64) (float64, error) {
	return sigmoid(x[0]), nil
}

func TestEvaluatePerfectClassifier(t *testing.T) {
	X, y := separableData()
	m, err := Evaluate(thresholdStub{}, X, y)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1Score)
	assert.Equal(t, 1.0, m.ROCAUC)
}

func TestEvaluateEmptySet(t *testing.T) {
	m, err := Evaluate(thresholdStub{}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, m.Accuracy)
}

func TestEvaluateMixedPredictions(t *testing.T) {
	// One false positive and one false negative out of six.
	X := [][]float64{{-1}, {-1}, {1}, {1}, {-1}, {1}}
	y := []int{0, 0, 1, 1, 1, 0}

	m, err := Evaluate(thresholdStub{}, X, y)
	require.NoError(t, err)

	// tp=2 fp=1 tn=2 fn=1
	assert.InDelta(t, 0.6667, m.Accuracy, 1e-4)
	assert.InDelta(t, 0.6667, m.Precision, 1e-4)
	assert.InDelta(t, 0.6667, m.Recall, 1e-4)
	assert.InDelta(t, 0.6667, m.F1Score, 1e-4)
}

func TestROCAUCRandomScoresWithTies(t *testing.T) {
	// All scores equal: AUC degenerates to 0.5 under tie averaging.
	scores := []float64{0.5, 0.5, 0.5, 0.5}
	y := []int{1, 0, 1, 0}
	assert.InDelta(t, 0.5, rocAUC(scores, y), 1e-9)
}
