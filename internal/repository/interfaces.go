package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/trotrank/internal/models"
)

// RatingRepository defines the interface for rating-track data access
type RatingRepository interface {
	Get(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType, competitorID uuid.UUID) (*models.RatingEntry, error)
	GetForCompetitors(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType, ids []uuid.UUID) (map[uuid.UUID]*models.RatingEntry, error)
	GetAll(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType) (map[uuid.UUID]*models.RatingEntry, error)
	BulkUpsert(ctx context.Context, entries []*models.RatingEntry) error
}

// ContestRepository defines the interface for contest history access
type ContestRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.Contest, error)
	// StreamOrderedByDate walks settled contests strictly in ascending
	// date order, invoking fn once per contest. When since is non-nil only
	// contests on or after it are visited.
	StreamOrderedByDate(ctx context.Context, since *time.Time, fn func(*models.Contest) error) error
}
