package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a depth-limited classification tree. Internal
// nodes route on feature/threshold; leaves carry the positive-class
// fraction of the training rows that reached them.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value"` // P(risky) at a leaf
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

func (n *TreeNode) eval(x []float64) (float64, error) {
	for !n.Leaf {
		if n.Feature >= len(x) {
			return 0, fmt.Errorf("random forest: node feature %d out of range for %d features", n.Feature, len(x))
		}
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value, nil
}

// RandomForest is the bagged-tree strategy: each tree fits a bootstrap
// sample with a random feature subset per split, and the forest
// probability is the mean of the leaf fractions. The fixed seed keeps
// training deterministic and bundle round-trips exact.
type RandomForest struct {
	Trees []*TreeNode `json:"trees"`

	Estimators int   `json:"estimators"`
	MaxDepth   int   `json:"max_depth"`
	MinLeaf    int   `json:"min_leaf"`
	Seed       int64 `json:"seed"`
}

// NewRandomForest returns an untrained forest with default
// hyperparameters.
func NewRandomForest() *RandomForest {
	return &RandomForest{
		Estimators: 100,
		MaxDepth:   5,
		MinLeaf:    2,
		Seed:       42,
	}
}

func (rf *RandomForest) Name() string { return ModelRandomForest }

// Fit grows the ensemble on bootstrap resamples of the training matrix.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("random forest: empty training set")
	}
	n := len(X)
	nPos := 0
	for _, label := range y {
		if label == 1 {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		return fmt.Errorf("random forest: training set has a single class (%d positive of %d)", nPos, n)
	}

	dims := len(X[0])
	mtry := int(math.Sqrt(float64(dims)))
	if mtry < 1 {
		mtry = 1
	}

	target := make([]float64, n)
	for i, label := range y {
		target[i] = float64(label)
	}

	rng := rand.New(rand.NewSource(rf.Seed))
	rf.Trees = rf.Trees[:0]
	for m := 0; m < rf.Estimators; m++ {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		rf.Trees = append(rf.Trees, rf.grow(X, target, rows, rf.MaxDepth, mtry, rng))
	}
	return nil
}

// grow recursively builds one tree over the given row multiset.
func (rf *RandomForest) grow(X [][]float64, target []float64, rows []int, depth, mtry int, rng *rand.Rand) *TreeNode {
	sum := 0.0
	for _, i := range rows {
		sum += target[i]
	}
	mean := sum / float64(len(rows))

	if depth == 0 || len(rows) < 2*rf.MinLeaf || mean == 0 || mean == 1 {
		return &TreeNode{Leaf: true, Value: mean}
	}

	feature, threshold, ok := rf.bestSplit(X, target, rows, mtry, rng)
	if !ok {
		return &TreeNode{Leaf: true, Value: mean}
	}

	var left, right []int
	for _, i := range rows {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      rf.grow(X, target, left, depth-1, mtry, rng),
		Right:     rf.grow(X, target, right, depth-1, mtry, rng),
	}
}

// bestSplit searches a random feature subset for the variance-reduction
// optimum, requiring MinLeaf rows on each side.
func (rf *RandomForest) bestSplit(X [][]float64, target []float64, rows []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	n := len(rows)
	dims := len(X[rows[0]])

	total := 0.0
	for _, i := range rows {
		total += target[i]
	}

	bestFeature := 0
	bestThreshold := 0.0
	bestGain := 0.0
	found := false

	idx := make([]int, n)
	for _, d := range rng.Perm(dims)[:mtry] {
		copy(idx, rows)
		sort.Slice(idx, func(a, b int) bool { return X[idx[a]][d] < X[idx[b]][d] })

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			leftSum += target[idx[k]]
			// Only split between distinct values
			if X[idx[k]][d] == X[idx[k+1]][d] {
				continue
			}
			nLeft := k + 1
			nRight := n - k - 1
			if nLeft < rf.MinLeaf || nRight < rf.MinLeaf {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(nLeft) + rightSum*rightSum/float64(nRight) - total*total/float64(n)
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = d
				bestThreshold = (X[idx[k]][d] + X[idx[k+1]][d]) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// PredictProba returns P(risky) as the mean leaf fraction across trees.
func (rf *RandomForest) PredictProba(x []float64) (float64, error) {
	if len(rf.Trees) == 0 {
		return 0, errors.New("random forest: not fitted")
	}
	sum := 0.0
	for _, tree := range rf.Trees {
		p, err := tree.eval(x)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(rf.Trees)), nil
}

func (rf *RandomForest) Predict(x []float64) (int, error) {
	p, err := rf.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}
