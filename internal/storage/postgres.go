package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		repo_id TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		risk_score DOUBLE PRECISION NOT NULL,
		risk_level TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		engine TEXT NOT NULL,
		model_version TEXT,
		breakdown_json TEXT,
		features_json TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_commit ON assessments(repo_id, commit_sha);

	CREATE TABLE IF NOT EXISTS training_samples (
		sha TEXT PRIMARY KEY,
		repository TEXT NOT NULL,
		features_json TEXT NOT NULL,
		label INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, a *models.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO assessments (id, repo_id, commit_sha, risk_score, risk_level,
			confidence, engine, model_version, breakdown_json, features_json, created_at)
		VALUES (:id, :repo_id, :commit_sha, :risk_score, :risk_level,
			:confidence, :engine, :model_version, :breakdown_json, :features_json, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	var a models.Assessment
	err := s.db.GetContext(ctx, &a, `SELECT * FROM assessments WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) SaveTrainingSample(ctx context.Context, sample *models.TrainingSample) error {
	featuresJSON, err := sample.Features.ToJSON()
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	query := `
		INSERT INTO training_samples (sha, repository, features_json, label, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sha) DO UPDATE SET
			features_json = EXCLUDED.features_json,
			label = EXCLUDED.label
	`
	if _, err := s.db.ExecContext(ctx, query, sample.SHA, sample.Repository,
		featuresJSON, sample.Label, time.Now().UTC()); err != nil {
		return fmt.Errorf("save training sample: %w", err)
	}
	return nil
}

// CollectSamples returns every stored labeled sample. Rows whose
// feature JSON no longer decodes are skipped, logged, not fatal.
func (s *PostgresStore) CollectSamples(ctx context.Context) ([]models.TrainingSample, error) {
	rows := []struct {
		SHA          string `db:"sha"`
		Repository   string `db:"repository"`
		FeaturesJSON string `db:"features_json"`
		Label        int    `db:"label"`
	}{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT sha, repository, features_json, label FROM training_samples ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("collect samples: %w", err)
	}

	samples := make([]models.TrainingSample, 0, len(rows))
	for _, r := range rows {
		var f models.CommitFeatures
		if err := json.Unmarshal([]byte(r.FeaturesJSON), &f); err != nil {
			s.logger.WithError(err).WithField("sha", r.SHA).Warn("skipping sample with invalid feature JSON")
			continue
		}
		samples = append(samples, models.TrainingSample{
			SHA:        r.SHA,
			Repository: r.Repository,
			Features:   f,
			Label:      r.Label,
		})
	}
	return samples, nil
}
