package guidance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/metrics"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
)

const (
	defaultCacheTTL      = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
)

// Service generates race guidance on demand. Results are cached by
// contest and effective configuration; the cache is never the source of
// truth.
type Service struct {
	cfg      Config
	seed     rating.SeedParams
	ratings  repository.RatingRepository
	contests repository.ContestRepository
	cache    *gocache.Cache
	logger   *logrus.Logger
}

// NewService creates a guidance service with the default cache TTL.
func NewService(cfg Config, seed rating.SeedParams, ratings repository.RatingRepository, contests repository.ContestRepository, logger *logrus.Logger) (*Service, error) {
	return NewServiceWithTTL(cfg, seed, ratings, contests, logger, defaultCacheTTL)
}

// NewServiceWithTTL creates a guidance service with an explicit result
// cache lifetime. A non-positive ttl falls back to the default.
func NewServiceWithTTL(cfg Config, seed rating.SeedParams, ratings repository.RatingRepository, contests repository.ContestRepository, logger *logrus.Logger, ttl time.Duration) (*Service, error) {
	if ratings == nil {
		return nil, fmt.Errorf("rating repository is required")
	}
	if contests == nil {
		return nil, fmt.Errorf("contest repository is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		cfg:      cfg,
		seed:     seed,
		ratings:  ratings,
		contests: contests,
		cache:    gocache.New(ttl, cacheCleanupInterval),
		logger:   logger,
	}, nil
}

func cacheKey(contestID uuid.UUID, ctype models.CompetitorType, cfg Config) string {
	return fmt.Sprintf("%s/%s/%+v", contestID, ctype, cfg)
}

// ForContest builds the full guidance payload for one contest, applying
// any per-request overrides on top of the configured knobs.
func (s *Service) ForContest(ctx context.Context, contestID uuid.UUID, ctype models.CompetitorType, overrides *Overrides) (*models.RaceGuidance, error) {
	cfg := s.cfg.Apply(overrides)

	key := cacheKey(contestID, ctype, cfg)
	if cached, ok := s.cache.Get(key); ok {
		metrics.RecordGuidanceCacheHit()
		return cached.(*models.RaceGuidance), nil
	}
	metrics.RecordGuidanceCacheMiss()

	contest, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	if len(contest.Entries) == 0 {
		return nil, models.ErrInvalidContest
	}

	field, err := s.buildField(ctx, ctype, contest)
	if err != nil {
		return nil, err
	}

	ranked := RankField(contest, field, cfg)
	AssignTiers(ranked, cfg)

	scores := make([]float64, len(ranked))
	for i, r := range ranked {
		scores[i] = r.CompositeScore
	}
	probs := Softmax(scores, cfg.SoftmaxBeta)
	zscores := ZScores(scores)
	highlights := HighlightCount(ranked, probs, zscores, cfg)

	out := &models.RaceGuidance{
		ContestID:   contestID,
		GeneratedAt: time.Now().UTC(),
		Entries:     make([]*models.GuidanceEntry, len(ranked)),
	}
	for i, r := range ranked {
		out.Entries[i] = &models.GuidanceEntry{
			CompetitorID:   r.ID,
			Rank:           r.Rank,
			Rating:         r.FormRating,
			CompositeScore: r.CompositeScore,
			Tier:           r.Tier,
			TierReason:     r.TierReason,
			Probability:    probs[i],
			ZScore:         zscores[i],
			Highlighted:    i < highlights,
		}
	}

	s.cache.Set(key, out, gocache.DefaultExpiration)
	metrics.RecordGuidanceGenerated()

	s.logger.WithFields(logrus.Fields{
		"contest_id": contestID,
		"type":       ctype,
		"field":      len(ranked),
		"highlights": highlights,
	}).Debug("Race guidance generated")
	return out, nil
}

// buildField loads form and career ratings for the contest participants,
// seeding never-seen competitors from their external score.
func (s *Service) buildField(ctx context.Context, ctype models.CompetitorType, contest *models.Contest) ([]Competitor, error) {
	type slot struct {
		id    uuid.UUID
		entry *models.ContestEntry
	}
	seen := make(map[uuid.UUID]bool, len(contest.Entries))
	slots := make([]slot, 0, len(contest.Entries))
	ids := make([]uuid.UUID, 0, len(contest.Entries))
	for _, e := range contest.Entries {
		id := e.CompetitorID
		if ctype == models.CompetitorDriver {
			if e.DriverID == nil {
				continue
			}
			id = *e.DriverID
		}
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		slots = append(slots, slot{id: id, entry: e})
		ids = append(ids, id)
	}
	if len(slots) == 0 {
		return nil, models.ErrInvalidContest
	}

	form, err := s.ratings.GetForCompetitors(ctx, models.TrackForm, ctype, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load form ratings: %w", err)
	}
	career, err := s.ratings.GetForCompetitors(ctx, models.TrackCareer, ctype, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load career ratings: %w", err)
	}

	field := make([]Competitor, len(slots))
	for i, sl := range slots {
		c := Competitor{ID: sl.id, Entry: sl.entry}
		c.FormRating = s.ratingOrSeed(form[sl.id], sl.entry)
		c.CareerRating = s.ratingOrSeed(career[sl.id], sl.entry)
		field[i] = c
	}
	return field, nil
}

func (s *Service) ratingOrSeed(entry *models.RatingEntry, ce *models.ContestEntry) float64 {
	if entry != nil {
		return entry.Rating
	}
	if ce.ExternalScore != nil {
		return rating.SeedRating(*ce.ExternalScore, s.seed.Base, s.seed.Alpha, s.seed.Min, s.seed.Max)
	}
	return s.seed.Base
}
