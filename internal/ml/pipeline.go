package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInsufficientData is returned when too few samples exist to train.
	ErrInsufficientData = errors.New("insufficient training data")
)

// Vectorize converts samples into a feature matrix, label vector and the
// commit SHAs for traceability. Rows follow the canonical
// models.FeatureColumns order; booleans are cast to 0/1 and absent
// values become the 0.0 sentinel (imputation proper happens later).
func Vectorize(samples []models.TrainingSample) (X [][]float64, y []int, shas []string) {
	X = make([][]float64, 0, len(samples))
	y = make([]int, 0, len(samples))
	shas = make([]string, 0, len(samples))
	for _, s := range samples {
		X = append(X, s.Features.Vector(models.FeatureColumns))
		label := 0
		if s.Label != 0 {
			label = 1
		}
		y = append(y, label)
		shas = append(shas, s.SHA)
	}
	return X, y, shas
}

// Imputer replaces missing values (NaN) with per-column medians fitted
// on training data.
type Imputer struct {
	Medians []float64 `json:"medians"`
}

// Fit computes the per-column medians, ignoring NaN entries. Columns
// that are entirely missing impute to 0.
func (im *Imputer) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	im.Medians = make([]float64, cols)
	for c := 0; c < cols; c++ {
		var vals []float64
		for _, row := range X {
			if !math.IsNaN(row[c]) {
				vals = append(vals, row[c])
			}
		}
		im.Medians[c] = median(vals)
	}
}

// Transform replaces NaN entries with the fitted medians. It returns an
// error when called before Fit or with a mismatched column count.
func (im *Imputer) Transform(X [][]float64) error {
	if im.Medians == nil {
		return errors.New("imputer not fitted")
	}
	for _, row := range X {
		if len(row) != len(im.Medians) {
			return fmt.Errorf("imputer expects %d columns, got %d", len(im.Medians), len(row))
		}
		for c, v := range row {
			if math.IsNaN(v) {
				row[c] = im.Medians[c]
			}
		}
	}
	return nil
}

// Scaler standardises each column to zero mean and unit variance using
// statistics fitted on training data.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Fit computes per-column mean and standard deviation. Zero-variance
// columns keep a std of 1 so Transform is a no-op for them.
func (sc *Scaler) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	sc.Means = make([]float64, cols)
	sc.Stds = make([]float64, cols)
	n := float64(len(X))
	for c := 0; c < cols; c++ {
		sum := 0.0
		for _, row := range X {
			sum += row[c]
		}
		mean := sum / n
		variance := 0.0
		for _, row := range X {
			d := row[c] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / n)
		if std == 0 {
			std = 1
		}
		sc.Means[c] = mean
		sc.Stds[c] = std
	}
}

// Transform standardises rows in place using the fitted statistics.
func (sc *Scaler) Transform(X [][]float64) error {
	if sc.Means == nil {
		return errors.New("scaler not fitted")
	}
	for _, row := range X {
		if len(row) != len(sc.Means) {
			return fmt.Errorf("scaler expects %d columns, got %d", len(sc.Means), len(row))
		}
		for c := range row {
			row[c] = (row[c] - sc.Means[c]) / sc.Stds[c]
		}
	}
	return nil
}

// PreprocessResult carries the cleaned matrix and the fitted (or reused)
// pipeline objects.
type PreprocessResult struct {
	X       [][]float64
	Y       []int
	Imputer *Imputer
	Scaler  *Scaler
	Removed int // corrupted rows dropped
}

// Preprocess cleans and normalises a feature matrix:
//   - infinities become missing markers (NaN)
//   - rows that are entirely missing-or-zero are dropped as corrupted
//   - missing values impute to the column median
//   - columns standardise to zero mean, unit variance
//
// With fit=true new imputer/scaler objects are fitted on this data;
// otherwise the supplied pre-fitted pair transforms only. The exact pair
// fitted at training time must be reused verbatim at inference so the
// two can never drift apart.
func Preprocess(X [][]float64, y []int, fit bool, imputer *Imputer, scaler *Scaler, logger *logrus.Logger) (*PreprocessResult, error) {
	// Replace infinities with missing markers
	for _, row := range X {
		for c, v := range row {
			if math.IsInf(v, 0) {
				row[c] = math.NaN()
			}
		}
	}

	// Drop corrupted rows: entirely missing-or-zero
	cleanX := make([][]float64, 0, len(X))
	cleanY := make([]int, 0, len(y))
	removed := 0
	for i, row := range X {
		if allMissingOrZero(row) {
			removed++
			continue
		}
		cleanX = append(cleanX, row)
		cleanY = append(cleanY, y[i])
	}
	if removed > 0 && logger != nil {
		logger.WithField("removed", removed).Info("dropped corrupted samples")
	}
	if len(cleanX) == 0 {
		return nil, fmt.Errorf("%w: no valid rows after cleaning", ErrInsufficientData)
	}

	if fit {
		imputer = &Imputer{}
		imputer.Fit(cleanX)
		scaler = &Scaler{}
	} else {
		if imputer == nil || scaler == nil {
			return nil, errors.New("preprocess: fitted imputer and scaler required when fit=false")
		}
	}
	if err := imputer.Transform(cleanX); err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	if fit {
		scaler.Fit(cleanX)
	}
	if err := scaler.Transform(cleanX); err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}

	return &PreprocessResult{
		X:       cleanX,
		Y:       cleanY,
		Imputer: imputer,
		Scaler:  scaler,
		Removed: removed,
	}, nil
}

func allMissingOrZero(row []float64) bool {
	for _, v := range row {
		if !math.IsNaN(v) && v != 0 {
			return false
		}
	}
	return true
}

// SplitStratified partitions X/y into train and test sets preserving
// the label proportions, with a seeded shuffle for reproducibility.
func SplitStratified(X [][]float64, y []int, testSize float64, seed int64) (trainX, testX [][]float64, trainY, testY []int) {
	rng := rand.New(rand.NewSource(seed))

	byLabel := map[int][]int{}
	for i, label := range y {
		byLabel[label] = append(byLabel[label], i)
	}

	labels := make([]int, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Ints(labels) // deterministic iteration

	for _, label := range labels {
		idx := byLabel[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * testSize))
		for k, i := range idx {
			if k < nTest {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}
	}
	return trainX, testX, trainY, testY
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
