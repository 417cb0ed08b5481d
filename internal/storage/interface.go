package storage

import (
	"context"
	"errors"

	"github.com/riskwatch/riskwatch-go/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store persists what the risk engine consumes and produces: labeled
// training samples for the offline pipeline and assessment records for
// each prediction. Entity CRUD for repositories and commits lives with
// the external collaborators.
type Store interface {
	// Assessment operations
	SaveAssessment(ctx context.Context, a *models.Assessment) error
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)

	// Training sample operations
	SaveTrainingSample(ctx context.Context, s *models.TrainingSample) error
	CollectSamples(ctx context.Context) ([]models.TrainingSample, error)

	// Close connection
	Close() error
}
