package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Stump is a depth-1 regression tree: one feature, one threshold, two
// leaf values.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`  // value when x[feature] <= threshold
	Right     float64 `json:"right"` // value when x[feature] > threshold
}

func (s Stump) eval(x []float64) float64 {
	if x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// GradientBoosting is the boosted-tree strategy: additive depth-1 stumps
// fitted to log-loss gradients with shrinkage.
type GradientBoosting struct {
	Stumps   []Stump `json:"stumps"`
	BaseLine float64 `json:"baseline"` // initial log-odds

	Estimators   int     `json:"estimators"`
	LearningRate float64 `json:"learning_rate"`
}

// NewGradientBoosting returns an untrained model with default
// hyperparameters.
func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{
		Estimators:   100,
		LearningRate: 0.1,
	}
}

func (gb *GradientBoosting) Name() string { return ModelGradientBoosting }

// Fit builds the stump ensemble on residuals of the running prediction.
func (gb *GradientBoosting) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("gradient boosting: empty training set")
	}
	n := len(X)
	nPos := 0
	for _, label := range y {
		if label == 1 {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		return fmt.Errorf("gradient boosting: training set has a single class (%d positive of %d)", nPos, n)
	}

	// Start from the prior log-odds
	prior := float64(nPos) / float64(n)
	gb.BaseLine = math.Log(prior / (1 - prior))
	gb.Stumps = gb.Stumps[:0]

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = gb.BaseLine
	}

	residuals := make([]float64, n)
	for m := 0; m < gb.Estimators; m++ {
		for i := range residuals {
			residuals[i] = float64(y[i]) - sigmoid(scores[i])
		}
		stump, ok := fitStump(X, residuals)
		if !ok {
			break // no split improves the fit
		}
		stump.Left *= gb.LearningRate
		stump.Right *= gb.LearningRate
		gb.Stumps = append(gb.Stumps, stump)
		for i, row := range X {
			scores[i] += stump.eval(row)
		}
	}
	return nil
}

// fitStump finds the feature/threshold split minimising squared error
// against the residuals, with leaf values set to the residual means.
func fitStump(X [][]float64, residuals []float64) (Stump, bool) {
	n := len(X)
	dims := len(X[0])

	total := 0.0
	for _, r := range residuals {
		total += r
	}

	best := Stump{}
	bestGain := 0.0
	found := false

	idx := make([]int, n)
	for d := 0; d < dims; d++ {
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return X[idx[a]][d] < X[idx[b]][d] })

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			i := idx[k]
			leftSum += residuals[i]
			// Only split between distinct values
			if X[idx[k]][d] == X[idx[k+1]][d] {
				continue
			}
			nLeft := float64(k + 1)
			nRight := float64(n - k - 1)
			rightSum := total - leftSum
			// Variance-reduction gain of the candidate split
			gain := leftSum*leftSum/nLeft + rightSum*rightSum/nRight - total*total/float64(n)
			if gain > bestGain+1e-12 {
				bestGain = gain
				best = Stump{
					Feature:   d,
					Threshold: (X[idx[k]][d] + X[idx[k+1]][d]) / 2,
					Left:      leftSum / nLeft,
					Right:     rightSum / nRight,
				}
				found = true
			}
		}
	}
	return best, found
}

// PredictProba returns P(risky) via the sigmoid of the additive score.
func (gb *GradientBoosting) PredictProba(x []float64) (float64, error) {
	if len(gb.Stumps) == 0 {
		return 0, errors.New("gradient boosting: not fitted")
	}
	for _, s := range gb.Stumps {
		if s.Feature >= len(x) {
			return 0, fmt.Errorf("gradient boosting: stump feature %d out of range for %d features", s.Feature, len(x))
		}
	}
	score := gb.BaseLine
	for _, s := range gb.Stumps {
		score += s.eval(x)
	}
	return sigmoid(score), nil
}

func (gb *GradientBoosting) Predict(x []float64) (int, error) {
	p, err := gb.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}
