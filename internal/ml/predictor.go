package ml

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/riskwatch/riskwatch-go/internal/risk"
	"github.com/sirupsen/logrus"
)

const (
	// EngineRuleBased and EngineML identify which path produced a result.
	EngineRuleBased = "rule_based"
	EngineML        = "ml"

	ruleVersion = "rule-v1"
)

// Predictor is the runtime decision point. It starts rule-only and
// enters ML-active only after a bundle load succeeds. The loaded bundle
// is immutable shared state published atomically, so concurrent
// Predict calls never race with a Load.
type Predictor struct {
	modelsDir string
	logger    *logrus.Logger
	bundle    atomic.Pointer[Bundle]
}

// Info describes the active engine for API/CLI display.
type Info struct {
	Engine      string    `json:"engine"`
	ModelName   string    `json:"model_name,omitempty"`
	Version     string    `json:"version"`
	MLAvailable bool      `json:"ml_available"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
	TrainedAt   time.Time `json:"trained_at,omitempty"`
}

// NewPredictor creates a rule-only predictor. Call Load to attempt the
// transition to ML-active.
func NewPredictor(modelsDir string, logger *logrus.Logger) *Predictor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Predictor{modelsDir: modelsDir, logger: logger}
}

// MLAvailable reports whether a trained bundle is active.
func (p *Predictor) MLAvailable() bool {
	return p.bundle.Load() != nil
}

// Load attempts to activate the bundle at path, or the conventional
// "latest" artifact when path is empty. It returns true only when a
// bundle was activated. Loading never panics or propagates errors: a
// missing artifact logs informationally and a corrupt or mismatched one
// logs an error; either way the predictor stays (or returns to) the
// rule-only state it can always serve from.
func (p *Predictor) Load(path string) bool {
	if path == "" {
		path = filepath.Join(p.modelsDir, LatestBundleName)
	}

	bundle, err := LoadBundle(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.WithField("path", path).Info("no trained model found, using rule-based engine")
		} else {
			p.logger.WithError(err).WithField("path", path).Error("failed to load model bundle")
		}
		return false
	}

	if err := validateSchema(bundle.FeatureColumns); err != nil {
		// A silently misaligned column order would corrupt every
		// prediction, so a mismatch refuses activation outright.
		p.logger.WithError(err).WithField("path", path).Error("bundle feature schema mismatch, staying rule-only")
		return false
	}
	if bundle.Imputer == nil || bundle.Scaler == nil {
		p.logger.WithField("path", path).Error("bundle missing fitted preprocessing, staying rule-only")
		return false
	}

	p.bundle.Store(bundle)
	p.logger.WithFields(logrus.Fields{
		"model":   bundle.ModelName,
		"version": bundle.Version,
		"roc_auc": bundle.Metrics.ROCAUC,
	}).Info("ML model loaded")
	return true
}

// Predict assesses one commit. With no active bundle it returns the
// rule-based result unchanged. With an active bundle it runs ML
// inference and attaches the independently computed rule breakdown for
// explainability; any inference failure degrades that single call to
// the rule path without flipping global state.
func (p *Predictor) Predict(f models.CommitFeatures) models.RiskResult {
	bundle := p.bundle.Load()
	if bundle == nil {
		return risk.Score(f)
	}

	result, err := p.predictML(bundle, f)
	if err != nil {
		p.logger.WithError(err).Warn("ML inference failed, falling back to rules for this call")
		return risk.Score(f)
	}
	return result
}

func (p *Predictor) predictML(bundle *Bundle, f models.CommitFeatures) (models.RiskResult, error) {
	// Build the row in the bundle's recorded order, never the caller's:
	// this is what prevents silent column misalignment.
	row := f.Vector(bundle.FeatureColumns)
	X := [][]float64{row}

	// Transform only; the pipeline was fitted at training time.
	if err := bundle.Imputer.Transform(X); err != nil {
		return models.RiskResult{}, err
	}
	if err := bundle.Scaler.Transform(X); err != nil {
		return models.RiskResult{}, err
	}

	probability, err := riskProbability(bundle.Classifier, X[0])
	if err != nil {
		return models.RiskResult{}, err
	}

	score := math.Round(probability*100*100) / 100
	confidence := math.Round(math.Max(probability, 1-probability)*1e4) / 1e4

	// The rule breakdown is always computed on the same features so the
	// ML score stays explainable.
	ruleResult := risk.Score(f)

	p.logger.WithFields(logrus.Fields{
		"score":   score,
		"model":   bundle.ModelName,
		"version": bundle.Version,
	}).Debug("ML prediction")

	return models.RiskResult{
		RiskScore:      score,
		RiskLevel:      models.LevelForScore(score),
		Confidence:     confidence,
		Features:       f,
		ScoreBreakdown: ruleResult.ScoreBreakdown,
	}, nil
}

// riskProbability prefers a calibrated probability output and falls
// back to the raw predicted label as a 0/1 probability.
func riskProbability(c Classifier, x []float64) (float64, error) {
	if pc, ok := c.(ProbabilityClassifier); ok {
		p, err := pc.PredictProba(x)
		if err == nil {
			return p, nil
		}
		// fall through to the label path only on a capability-style
		// failure; a malformed row should surface
		return 0, err
	}
	label, err := c.Predict(x)
	if err != nil {
		return 0, err
	}
	return float64(label), nil
}

// GetInfo reports the active engine descriptor.
func (p *Predictor) GetInfo() Info {
	bundle := p.bundle.Load()
	if bundle == nil {
		return Info{
			Engine:      EngineRuleBased,
			Version:     ruleVersion,
			MLAvailable: false,
		}
	}
	metrics := bundle.Metrics
	return Info{
		Engine:      EngineML,
		ModelName:   bundle.ModelName,
		Version:     bundle.Version,
		MLAvailable: true,
		Metrics:     &metrics,
		TrainedAt:   bundle.TrainedAt,
	}
}

// validateSchema checks a bundle's recorded columns against the
// extractor's canonical order, name for name.
func validateSchema(columns []string) error {
	if len(columns) != len(models.FeatureColumns) {
		return fmt.Errorf("bundle has %d feature columns, extractor produces %d",
			len(columns), len(models.FeatureColumns))
	}
	for i, name := range columns {
		if name != models.FeatureColumns[i] {
			return fmt.Errorf("feature column %d is %q, extractor produces %q", i, name, models.FeatureColumns[i])
		}
	}
	return nil
}
