package repository

import (
	"fmt"

	"github.com/yourusername/trotrank/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Rating  RatingRepository
	Contest ContestRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Rating:  NewPostgresRatingRepository(db),
		Contest: NewPostgresContestRepository(db),
	}, nil
}
