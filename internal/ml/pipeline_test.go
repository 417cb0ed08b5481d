package ml

import (
	"math"
	"testing"

	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestVectorizeFollowsCanonicalOrder(t *testing.T) {
	samples := []models.TrainingSample{
		{
			SHA:   "aaa",
			Label: 1,
			Features: models.CommitFeatures{
				LinesAdded:        10,
				LinesDeleted:      4,
				TotalLinesChanged: 14,
				HasRiskyKeywords:  true,
			},
		},
		{SHA: "bbb", Label: 0},
	}

	X, y, shas := Vectorize(samples)
	require.Len(t, X, 2)
	require.Len(t, X[0], len(models.FeatureColumns))

	assert.Equal(t, []int{1, 0}, y)
	assert.Equal(t, []string{"aaa", "bbb"}, shas)
	assert.Equal(t, 10.0, X[0][0], "lines_added is the first column")
	assert.Equal(t, 4.0, X[0][1])
	assert.Equal(t, 14.0, X[0][2])
}

func TestImputerFillsMissingWithMedians(t *testing.T) {
	nan := math.NaN()
	X := [][]float64{
		{1, nan},
		{3, 10},
		{5, 20},
	}

	im := &Imputer{}
	im.Fit(X)
	require.Len(t, im.Medians, 2)
	assert.Equal(t, 3.0, im.Medians[0])
	assert.Equal(t, 15.0, im.Medians[1]) // median of the two present values

	require.NoError(t, im.Transform(X))
	assert.Equal(t, 15.0, X[0][1])
}

func TestImputerAllMissingColumn(t *testing.T) {
	nan := math.NaN()
	X := [][]float64{{nan, 1}, {nan, 2}}

	im := &Imputer{}
	im.Fit(X)
	assert.Equal(t, 0.0, im.Medians[0])
}

func TestImputerRequiresFit(t *testing.T) {
	im := &Imputer{}
	assert.Error(t, im.Transform([][]float64{{1}}))

	fitted := &Imputer{Medians: []float64{0}}
	assert.Error(t, fitted.Transform([][]float64{{1, 2}}), "column mismatch should fail")
}

func TestScalerStandardises(t *testing.T) {
	X := [][]float64{{2, 100}, {4, 100}, {6, 100}}

	sc := &Scaler{}
	sc.Fit(X)
	assert.Equal(t, 4.0, sc.Means[0])
	assert.Equal(t, 1.0, sc.Stds[1], "zero-variance column keeps std 1")

	require.NoError(t, sc.Transform(X))
	assert.InDelta(t, 0.0, X[1][0], 1e-9)
	assert.InDelta(t, 0.0, X[0][1], 1e-9, "constant column transforms to zero")

	// Columns now have zero mean
	sum := X[0][0] + X[1][0] + X[2][0]
	assert.InDelta(t, 0.0, sum, 1e-9)
}

func TestPreprocessDropsCorruptedRows(t *testing.T) {
	inf := math.Inf(1)
	nan := math.NaN()
	X := [][]float64{
		{1, 2, 3},
		{0, 0, 0},     // corrupted: all zero
		{nan, 0, nan}, // corrupted: all missing-or-zero
		{inf, 5, 6},   // infinity becomes missing, row survives
		{7, 8, 9},
	}
	y := []int{1, 0, 1, 0, 1}

	result, err := Preprocess(X, y, true, nil, nil, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Removed)
	assert.Len(t, result.X, 3)
	assert.Equal(t, []int{1, 0, 1}, result.Y)
	require.NotNil(t, result.Imputer)
	require.NotNil(t, result.Scaler)

	for _, row := range result.X {
		for _, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}

func TestPreprocessAllRowsCorrupted(t *testing.T) {
	X := [][]float64{{0, 0}, {0, 0}}
	y := []int{0, 1}

	_, err := Preprocess(X, y, true, nil, nil, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPreprocessReuseRequiresFittedPipeline(t *testing.T) {
	X := [][]float64{{1, 2}}
	_, err := Preprocess(X, []int{1}, false, nil, nil, quietLogger())
	assert.Error(t, err)
}

func TestSplitStratifiedPreservesProportions(t *testing.T) {
	var X [][]float64
	var y []int
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i)})
		if i < 30 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	trainX, testX, trainY, testY := SplitStratified(X, y, 0.2, 42)

	assert.Len(t, testX, 20)
	assert.Len(t, trainX, 80)

	testPos := 0
	for _, label := range testY {
		testPos += label
	}
	trainPos := 0
	for _, label := range trainY {
		trainPos += label
	}
	assert.Equal(t, 6, testPos, "30% positives stratify into the test split")
	assert.Equal(t, 24, trainPos)
}

func TestSplitStratifiedDeterministic(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}

	_, test1, _, _ := SplitStratified(X, y, 0.25, 7)
	_, test2, _, _ := SplitStratified(X, y, 0.25, 7)
	assert.Equal(t, test1, test2)
}
