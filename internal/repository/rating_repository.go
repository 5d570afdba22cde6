package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/trotrank/internal/database"
	"github.com/yourusername/trotrank/internal/models"
)

const errScanRating = "failed to scan rating entry: %w"

const ratingColumns = "competitor_id, competitor_type, track, rating, races, seed_rating, updated_at"

// PostgresRatingRepository implements RatingRepository for PostgreSQL
type PostgresRatingRepository struct {
	db *database.DB
}

// NewPostgresRatingRepository creates a new rating repository
func NewPostgresRatingRepository(db *database.DB) RatingRepository {
	return &PostgresRatingRepository{db: db}
}

func scanRating(row pgx.Row) (*models.RatingEntry, error) {
	entry := &models.RatingEntry{}
	err := row.Scan(
		&entry.CompetitorID, &entry.CompetitorType, &entry.Track,
		&entry.Rating, &entry.Races, &entry.SeedRating, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Get retrieves one competitor's entry on one rating track
func (r *PostgresRatingRepository) Get(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType, competitorID uuid.UUID) (*models.RatingEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ratings
		WHERE track = $1 AND competitor_type = $2 AND competitor_id = $3
	`, ratingColumns)

	entry, err := scanRating(r.db.GetPool().QueryRow(ctx, query, track, ctype, competitorID))
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating entry: %w", err)
	}
	return entry, nil
}

// GetForCompetitors retrieves entries for the given competitors only.
// Competitors without an entry are simply absent from the result map.
func (r *PostgresRatingRepository) GetForCompetitors(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType, ids []uuid.UUID) (map[uuid.UUID]*models.RatingEntry, error) {
	out := make(map[uuid.UUID]*models.RatingEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM ratings
		WHERE track = $1 AND competitor_type = $2 AND competitor_id = ANY($3)
	`, ratingColumns)

	rows, err := r.db.GetPool().Query(ctx, query, track, ctype, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRating, err)
		}
		out[entry.CompetitorID] = entry
	}
	return out, rows.Err()
}

// GetAll retrieves the full population of one rating track
func (r *PostgresRatingRepository) GetAll(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType) (map[uuid.UUID]*models.RatingEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ratings WHERE track = $1 AND competitor_type = $2
	`, ratingColumns)

	rows, err := r.db.GetPool().Query(ctx, query, track, ctype)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating entries: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*models.RatingEntry)
	for rows.Next() {
		entry, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRating, err)
		}
		out[entry.CompetitorID] = entry
	}
	return out, rows.Err()
}

// BulkUpsert writes a batch of rating entries in one multi-row statement
func (r *PostgresRatingRepository) BulkUpsert(ctx context.Context, entries []*models.RatingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO ratings (competitor_id, competitor_type, track, rating, races, seed_rating, updated_at)
		VALUES `)

	args := make([]interface{}, 0, len(entries)*7)
	now := time.Now().UTC()
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		updated := e.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		args = append(args, e.CompetitorID, e.CompetitorType, e.Track, e.Rating, e.Races, e.SeedRating, updated)
	}

	sb.WriteString(`
		ON CONFLICT (track, competitor_type, competitor_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			races = EXCLUDED.races,
			seed_rating = COALESCE(ratings.seed_rating, EXCLUDED.seed_rating),
			updated_at = EXCLUDED.updated_at
	`)

	if _, err := r.db.GetPool().Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to bulk upsert rating entries: %w", err)
	}
	return nil
}
