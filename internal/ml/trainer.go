package ml

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// MinTrainingSamples is the floor below which training refuses to
	// proceed unless synthetic augmentation is requested.
	MinTrainingSamples = 50
	// MinVectorizedSamples is the floor on usable rows after vectorizing.
	MinVectorizedSamples = 20

	// targetROCAUC is the quality bar reported against after training.
	targetROCAUC = 0.65

	defaultTestSize  = 0.2
	defaultSplitSeed = 42
)

// SampleSource supplies historical labeled samples, typically backed by
// the assessment store.
type SampleSource interface {
	CollectSamples(ctx context.Context) ([]models.TrainingSample, error)
}

// TrainOptions configures a single training run.
type TrainOptions struct {
	ModelType      string // see ModelTypes()
	Synthetic      bool   // augment with synthetic samples below the minimum
	SyntheticCount int
	PositiveRate   float64
	Seed           int64
	CSVExport      string // optional path to dump the assembled training set
	TestSize       float64
}

// TrainingResult summarises one completed run.
type TrainingResult struct {
	ModelName      string    `json:"model_name"`
	ModelVersion   string    `json:"model_version"`
	Metrics        Metrics   `json:"metrics"`
	TrainSamples   int       `json:"train_samples"`
	TestSamples    int       `json:"test_samples"`
	PositiveRate   float64   `json:"positive_rate"` // percent of risky samples
	RemovedSamples int       `json:"removed_samples"`
	TrainingTime   float64   `json:"training_time_seconds"`
	FeatureColumns []string  `json:"feature_columns"`
	ModelPath      string    `json:"model_path"`
	TrainedAt      time.Time `json:"trained_at"`
}

// Trainer runs the offline batch pipeline: collect, vectorize,
// preprocess, split, fit, evaluate, persist. It is a CPU-bound job meant
// to run in its own process; it shares nothing with a live Predictor
// except the on-disk bundle contract.
type Trainer struct {
	source    SampleSource
	modelsDir string
	logger    *logrus.Logger
}

// NewTrainer creates a trainer that persists bundles under modelsDir.
func NewTrainer(source SampleSource, modelsDir string, logger *logrus.Logger) *Trainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Trainer{source: source, modelsDir: modelsDir, logger: logger}
}

// Train executes the full pipeline and returns the run summary. A failed
// run writes no artifact and leaves any previously published "latest"
// bundle untouched.
func (t *Trainer) Train(ctx context.Context, opts TrainOptions) (*TrainingResult, error) {
	if opts.ModelType == "" {
		opts.ModelType = ModelLogisticRegression
	}
	if opts.SyntheticCount <= 0 {
		opts.SyntheticCount = 500
	}
	if opts.PositiveRate <= 0 {
		opts.PositiveRate = 0.3
	}
	if opts.Seed == 0 {
		opts.Seed = defaultSplitSeed
	}
	if opts.TestSize <= 0 || opts.TestSize >= 1 {
		opts.TestSize = defaultTestSize
	}

	classifier, err := NewClassifier(opts.ModelType)
	if err != nil {
		return nil, err
	}

	// 1. Collect
	var samples []models.TrainingSample
	if t.source != nil {
		samples, err = t.source.CollectSamples(ctx)
		if err != nil {
			t.logger.WithError(err).Warn("could not collect stored samples")
		}
	}
	t.logger.WithField("samples", len(samples)).Info("collected training samples")

	if len(samples) < MinTrainingSamples {
		if !opts.Synthetic && len(samples) > 0 {
			return nil, fmt.Errorf("%w: have %d samples, need at least %d (enable synthetic augmentation or label more commits)",
				ErrInsufficientData, len(samples), MinTrainingSamples)
		}
		t.logger.WithFields(logrus.Fields{
			"stored":    len(samples),
			"synthetic": opts.SyntheticCount,
		}).Info("augmenting with synthetic samples")
		samples = append(samples, GenerateSyntheticSamples(opts.SyntheticCount, opts.PositiveRate, opts.Seed)...)
	}

	if opts.CSVExport != "" {
		if err := ExportCSV(samples, opts.CSVExport); err != nil {
			return nil, err
		}
		t.logger.WithField("path", opts.CSVExport).Info("exported training data")
	}

	// 2. Vectorize
	X, y, _ := Vectorize(samples)
	if len(X) < MinVectorizedSamples {
		return nil, fmt.Errorf("%w: have %d vectors, need at least %d", ErrInsufficientData, len(X), MinVectorizedSamples)
	}

	// 3. Preprocess (fit new pipeline objects)
	pre, err := Preprocess(X, y, true, nil, nil, t.logger)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	// 4. Split
	trainX, testX, trainY, testY := SplitStratified(pre.X, pre.Y, opts.TestSize, opts.Seed)

	// 5. Fit + evaluate
	t.logger.WithFields(logrus.Fields{
		"model": classifier.Name(),
		"train": len(trainX),
		"test":  len(testX),
	}).Info("fitting classifier")

	start := time.Now()
	if err := classifier.Fit(trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit %s: %w", classifier.Name(), err)
	}
	elapsed := time.Since(start)

	metrics, err := Evaluate(classifier, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", classifier.Name(), err)
	}

	// 6. Persist
	version, err := NextVersion(t.modelsDir, classifier.Name())
	if err != nil {
		return nil, err
	}
	bundle := &Bundle{
		ModelName:      classifier.Name(),
		Version:        version,
		FeatureColumns: append([]string(nil), models.FeatureColumns...),
		Metrics:        metrics,
		TrainedAt:      time.Now().UTC(),
		Classifier:     classifier,
		Imputer:        pre.Imputer,
		Scaler:         pre.Scaler,
	}
	path, err := SaveBundle(t.modelsDir, bundle)
	if err != nil {
		return nil, fmt.Errorf("persist bundle: %w", err)
	}

	positives := 0
	for _, label := range pre.Y {
		positives += label
	}

	result := &TrainingResult{
		ModelName:      bundle.ModelName,
		ModelVersion:   bundle.Version,
		Metrics:        metrics,
		TrainSamples:   len(trainX),
		TestSamples:    len(testX),
		PositiveRate:   roundN(float64(positives)/float64(len(pre.Y))*100, 2),
		RemovedSamples: pre.Removed,
		TrainingTime:   roundN(elapsed.Seconds(), 2),
		FeatureColumns: bundle.FeatureColumns,
		ModelPath:      path,
		TrainedAt:      bundle.TrainedAt,
	}

	logEntry := t.logger.WithFields(logrus.Fields{
		"model":   result.ModelName,
		"version": result.ModelVersion,
		"roc_auc": metrics.ROCAUC,
		"path":    path,
	})
	if metrics.ROCAUC >= targetROCAUC {
		logEntry.Info("model trained and published")
	} else {
		logEntry.Warnf("model trained but ROC-AUC is below the %.2f target; consider more data or another model type", targetROCAUC)
	}

	return result, nil
}

// ExportCSV writes the assembled training set for offline inspection.
func ExportCSV(samples []models.TrainingSample, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"sha", "repository", "label"}, models.FeatureColumns...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range samples {
		row := []string{s.SHA, s.Repository, strconv.Itoa(s.Label)}
		for _, v := range s.Features.Vector(models.FeatureColumns) {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
