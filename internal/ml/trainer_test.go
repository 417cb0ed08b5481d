package ml

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	samples []models.TrainingSample
	err     error
}

func (s *fakeSource) CollectSamples(ctx context.Context) ([]models.TrainingSample, error) {
	return s.samples, s.err
}

func TestTrainRefusesThinDataWithoutSynthetic(t *testing.T) {
	source := &fakeSource{samples: GenerateSyntheticSamples(10, 0.3, 1)}
	trainer := NewTrainer(source, t.TempDir(), quietLogger())

	_, err := trainer.Train(context.Background(), TrainOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainSyntheticEndToEnd(t *testing.T) {
	dir := t.TempDir()
	trainer := NewTrainer(nil, dir, quietLogger())

	result, err := trainer.Train(context.Background(), TrainOptions{
		ModelType:      ModelLogisticRegression,
		Synthetic:      true,
		SyntheticCount: 300,
		PositiveRate:   0.3,
		Seed:           42,
	})
	require.NoError(t, err)

	assert.Equal(t, ModelLogisticRegression, result.ModelName)
	assert.Equal(t, "ml-v1", result.ModelVersion)
	assert.Equal(t, models.FeatureColumns, result.FeatureColumns)
	assert.Greater(t, result.TrainSamples, result.TestSamples)
	assert.InDelta(t, 30, result.PositiveRate, 5)

	// The two distributions are clearly separated, so even the simple
	// baseline should comfortably beat coin-flip AUC.
	assert.Greater(t, result.Metrics.ROCAUC, 0.65)

	// Artifact and latest alias land on disk and reload cleanly.
	_, err = os.Stat(result.ModelPath)
	require.NoError(t, err)
	loaded, err := LoadBundle(filepath.Join(dir, LatestBundleName))
	require.NoError(t, err)
	assert.Equal(t, result.ModelVersion, loaded.Version)
}

func TestTrainVersionsIncrement(t *testing.T) {
	dir := t.TempDir()
	trainer := NewTrainer(nil, dir, quietLogger())
	opts := TrainOptions{Synthetic: true, SyntheticCount: 100, Seed: 7}

	first, err := trainer.Train(context.Background(), opts)
	require.NoError(t, err)
	second, err := trainer.Train(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "ml-v1", first.ModelVersion)
	assert.Equal(t, "ml-v2", second.ModelVersion)

	names, err := ListBundles(dir)
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestTrainGradientBoosting(t *testing.T) {
	trainer := NewTrainer(nil, t.TempDir(), quietLogger())
	result, err := trainer.Train(context.Background(), TrainOptions{
		ModelType:      "gb",
		Synthetic:      true,
		SyntheticCount: 150,
		Seed:           3,
	})
	require.NoError(t, err)
	assert.Equal(t, ModelGradientBoosting, result.ModelName)
}

func TestTrainRandomForest(t *testing.T) {
	trainer := NewTrainer(nil, t.TempDir(), quietLogger())
	result, err := trainer.Train(context.Background(), TrainOptions{
		ModelType:      "rf",
		Synthetic:      true,
		SyntheticCount: 150,
		Seed:           3,
	})
	require.NoError(t, err)
	assert.Equal(t, ModelRandomForest, result.ModelName)
	assert.Equal(t, "ml-v1", result.ModelVersion)
}

func TestTrainUnknownModelType(t *testing.T) {
	trainer := NewTrainer(nil, t.TempDir(), quietLogger())
	_, err := trainer.Train(context.Background(), TrainOptions{ModelType: "svm"})
	assert.Error(t, err)
}

func TestTrainCollectErrorFallsBackToSynthetic(t *testing.T) {
	source := &fakeSource{err: errors.New("database offline")}
	trainer := NewTrainer(source, t.TempDir(), quietLogger())

	result, err := trainer.Train(context.Background(), TrainOptions{
		Synthetic:      true,
		SyntheticCount: 100,
		Seed:           5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ModelVersion)
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "training.csv")
	samples := GenerateSyntheticSamples(20, 0.5, 9)

	require.NoError(t, ExportCSV(samples, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 21) // header + 20 rows

	header := records[0]
	assert.Equal(t, "sha", header[0])
	assert.Equal(t, "repository", header[1])
	assert.Equal(t, "label", header[2])
	assert.Len(t, header, 3+len(models.FeatureColumns))
}

func TestGenerateSyntheticSamplesDeterministic(t *testing.T) {
	a := GenerateSyntheticSamples(50, 0.3, 42)
	b := GenerateSyntheticSamples(50, 0.3, 42)
	assert.Equal(t, a, b)

	c := GenerateSyntheticSamples(50, 0.3, 43)
	assert.NotEqual(t, a, c, "a different seed should shift the distributions")
}

func TestGenerateSyntheticSamplesLabelSplit(t *testing.T) {
	samples := GenerateSyntheticSamples(100, 0.3, 1)
	require.Len(t, samples, 100)

	positives := 0
	for _, s := range samples {
		positives += s.Label
	}
	assert.Equal(t, 30, positives)
}
