package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/trotrank/internal/database"
	"github.com/yourusername/trotrank/internal/models"
)

const errScanContest = "failed to scan contest: %w"

// streamBatchSize bounds how many contests are hydrated per round trip
// during a full-history stream.
const streamBatchSize = 500

// PostgresContestRepository implements ContestRepository for PostgreSQL
type PostgresContestRepository struct {
	db *database.DB
}

// NewPostgresContestRepository creates a new contest repository
func NewPostgresContestRepository(db *database.DB) ContestRepository {
	return &PostgresContestRepository{db: db}
}

// GetByID retrieves a contest with its entries attached
func (r *PostgresContestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contest, error) {
	query := `
		SELECT id, contest_date, track_code, distance, purse, created_at, updated_at
		FROM contests WHERE id = $1
	`

	contest := &models.Contest{}
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(
		&contest.ID, &contest.Date, &contest.TrackCode, &contest.Distance,
		&contest.Purse, &contest.CreatedAt, &contest.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}

	if err := r.attachEntries(ctx, []*models.Contest{contest}); err != nil {
		return nil, err
	}
	return contest, nil
}

// GetByDateRange retrieves contests within a date range, ascending by date
func (r *PostgresContestRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]*models.Contest, error) {
	query := `
		SELECT id, contest_date, track_code, distance, purse, created_at, updated_at
		FROM contests
		WHERE contest_date >= $1 AND contest_date <= $2
		ORDER BY contest_date ASC, id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query contests by date range: %w", err)
	}
	defer rows.Close()

	contests, err := scanContests(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachEntries(ctx, contests); err != nil {
		return nil, err
	}
	return contests, nil
}

// StreamOrderedByDate walks the full contest history in ascending date
// order in bounded batches. The ordering is a hard invariant for rating
// replays: each contest's update depends on all earlier ones.
func (r *PostgresContestRepository) StreamOrderedByDate(ctx context.Context, since *time.Time, fn func(*models.Contest) error) error {
	cursorDate := time.Time{}
	if since != nil {
		cursorDate = *since
	}
	cursorID := uuid.Nil

	query := `
		SELECT id, contest_date, track_code, distance, purse, created_at, updated_at
		FROM contests
		WHERE (contest_date, id) > ($1, $2)
		ORDER BY contest_date ASC, id ASC
		LIMIT $3
	`

	for {
		rows, err := r.db.GetPool().Query(ctx, query, cursorDate, cursorID, streamBatchSize)
		if err != nil {
			return fmt.Errorf("failed to stream contests: %w", err)
		}
		batch, err := scanContests(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := r.attachEntries(ctx, batch); err != nil {
			return err
		}

		for _, contest := range batch {
			if err := fn(contest); err != nil {
				return err
			}
		}

		last := batch[len(batch)-1]
		cursorDate = last.Date
		cursorID = last.ID
		if len(batch) < streamBatchSize {
			return nil
		}
	}
}

func scanContests(rows pgx.Rows) ([]*models.Contest, error) {
	var contests []*models.Contest
	for rows.Next() {
		contest := &models.Contest{}
		err := rows.Scan(
			&contest.ID, &contest.Date, &contest.TrackCode, &contest.Distance,
			&contest.Purse, &contest.CreatedAt, &contest.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf(errScanContest, err)
		}
		contests = append(contests, contest)
	}
	return contests, rows.Err()
}

// attachEntries loads and attaches starter rows for a batch of contests
func (r *PostgresContestRepository) attachEntries(ctx context.Context, contests []*models.Contest) error {
	if len(contests) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(contests))
	byID := make(map[uuid.UUID]*models.Contest, len(contests))
	for i, c := range contests {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	query := `
		SELECT contest_id, competitor_id, driver_id, placement, distance, post_position,
		       shoe_change, favorite_track, favorite_spar, track_favorite_spar, external_score
		FROM contest_entries
		WHERE contest_id = ANY($1)
		ORDER BY contest_id, post_position ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query contest entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry := &models.ContestEntry{}
		err := rows.Scan(
			&entry.ContestID, &entry.CompetitorID, &entry.DriverID, &entry.Placement,
			&entry.Distance, &entry.PostPosition, &entry.ShoeChange, &entry.FavoriteTrack,
			&entry.FavoriteSpar, &entry.TrackFavoriteSpar, &entry.ExternalScore,
		)
		if err != nil {
			return fmt.Errorf("failed to scan contest entry: %w", err)
		}
		if contest, ok := byID[entry.ContestID]; ok {
			contest.Entries = append(contest.Entries, entry)
		}
	}
	return rows.Err()
}
