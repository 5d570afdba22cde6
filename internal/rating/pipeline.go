package rating

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/logger"
	"github.com/yourusername/trotrank/internal/metrics"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/repository"
)

// TrackParams hold the per-track learning rate and decay horizon.
type TrackParams struct {
	K         float64
	DecayDays float64
}

// SeedParams bound the initial rating derived from an external skill proxy.
type SeedParams struct {
	Base  float64
	Alpha float64
	Min   float64
	Max   float64
}

// PipelineConfig configures the dual-track rating pipeline.
type PipelineConfig struct {
	Career TrackParams
	Form   TrackParams

	ClassMin float64
	ClassMax float64
	ClassRef float64

	Seed SeedParams

	// Low-experience bottom finishers (placement in the bottom 20% of the
	// field with at most PenaltyMaxRaces starts) lose PenaltyPoints flat
	// on both tracks, outside the Elo math. New weak competitors converge
	// too slowly otherwise.
	PenaltyMaxRaces int
	PenaltyPoints   float64
}

// DefaultPipelineConfig returns the calibrated production constants.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Career:          TrackParams{K: 16, DecayDays: 365},
		Form:            TrackParams{K: 32, DecayDays: 45},
		ClassMin:        0.9,
		ClassMax:        1.4,
		ClassRef:        200000,
		Seed:            SeedParams{Base: 1000, Alpha: 25, Min: 800, Max: 1200},
		PenaltyMaxRaces: 5,
		PenaltyPoints:   15,
	}
}

// RecomputeSummary reports the outcome of a full historical replay.
type RecomputeSummary struct {
	Contests    int `json:"contests"`
	Applied     int `json:"applied"`
	Skipped     int `json:"skipped"`
	Competitors int `json:"competitors"`
}

// Pipeline runs the pairwise Elo engine twice per contest, once per
// rating track, and persists the results through a RatingRepository.
type Pipeline struct {
	cfg      PipelineConfig
	ratings  repository.RatingRepository
	contests repository.ContestRepository
	log      *logger.RatingLogger
}

// NewPipeline creates a dual-track rating pipeline.
func NewPipeline(cfg PipelineConfig, ratings repository.RatingRepository, contests repository.ContestRepository, log *logrus.Logger) (*Pipeline, error) {
	if ratings == nil {
		return nil, fmt.Errorf("rating repository is required")
	}
	if contests == nil {
		return nil, fmt.Errorf("contest repository is required")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{cfg: cfg, ratings: ratings, contests: contests, log: logger.NewRatingLogger(log)}, nil
}

// participant couples a resolved competitor id with its contest entry.
type participant struct {
	id    uuid.UUID
	entry *models.ContestEntry
}

// resolveParticipants extracts the competitor ids relevant to one
// pipeline type. Drivers appearing behind multiple horses in the same
// field are deduplicated on their first entry.
func resolveParticipants(ctype models.CompetitorType, contest *models.Contest) []participant {
	seen := make(map[uuid.UUID]bool, len(contest.Entries))
	out := make([]participant, 0, len(contest.Entries))
	for _, e := range contest.Entries {
		var id uuid.UUID
		switch ctype {
		case models.CompetitorDriver:
			if e.DriverID == nil {
				continue
			}
			id = *e.DriverID
		default:
			id = e.CompetitorID
		}
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, participant{id: id, entry: e})
	}
	return out
}

// validPlacements filters participants down to those with a real finish.
func validPlacements(parts []participant) []Placement {
	out := make([]Placement, 0, len(parts))
	for _, p := range parts {
		if pos, ok := p.entry.ValidPlacement(); ok {
			out = append(out, Placement{CompetitorID: p.id, Position: pos})
		}
	}
	return out
}

// seedEntry builds a fresh rating entry for a never-seen competitor.
func (p *Pipeline) seedEntry(id uuid.UUID, ctype models.CompetitorType, track models.RatingTrack, external *float64, now time.Time) *models.RatingEntry {
	seed := p.cfg.Seed.Base
	var seedPtr *float64
	if external != nil {
		seed = SeedRating(*external, p.cfg.Seed.Base, p.cfg.Seed.Alpha, p.cfg.Seed.Min, p.cfg.Seed.Max)
		s := seed
		seedPtr = &s
	}
	return &models.RatingEntry{
		CompetitorID:   id,
		CompetitorType: ctype,
		Track:          track,
		Rating:         seed,
		Races:          0,
		SeedRating:     seedPtr,
		UpdatedAt:      now,
	}
}

func (p *Pipeline) ensureSeeded(m map[uuid.UUID]*models.RatingEntry, parts []participant, ctype models.CompetitorType, track models.RatingTrack, now time.Time) {
	for _, part := range parts {
		if _, ok := m[part.id]; !ok {
			entry := p.seedEntry(part.id, ctype, track, part.entry.ExternalScore, now)
			m[part.id] = entry
			if track == models.TrackCareer {
				p.log.LogCompetitorSeeded(part.id, string(ctype), entry.Rating, part.entry.ExternalScore != nil)
			}
		}
	}
}

// applyContest runs one contest through both tracks and applies the flat
// demotion rule. Both maps must already contain entries for every
// participant.
func (p *Pipeline) applyContest(contest *models.Contest, parts []participant, career, form map[uuid.UUID]*models.RatingEntry, now time.Time) bool {
	placements := validPlacements(parts)
	if len(placements) < 2 {
		return false
	}

	class := ClassFactor(contest.PurseValue(), p.cfg.ClassMin, p.cfg.ClassMax, p.cfg.ClassRef)

	ProcessContest(contest.Date, placements, career, UpdateOptions{
		K:         p.cfg.Career.K * class,
		DecayDays: p.cfg.Career.DecayDays,
		Now:       now,
	})
	ProcessContest(contest.Date, placements, form, UpdateOptions{
		K:         p.cfg.Form.K * class,
		DecayDays: p.cfg.Form.DecayDays,
		Now:       now,
	})

	// Flat demotion for low-experience bottom finishers.
	cutoff := int(math.Ceil(0.8 * float64(len(placements))))
	for _, pl := range placements {
		if pl.Position < cutoff {
			continue
		}
		entry := career[pl.CompetitorID]
		if entry == nil || entry.Races > p.cfg.PenaltyMaxRaces {
			continue
		}
		entry.Rating -= p.cfg.PenaltyPoints
		if f := form[pl.CompetitorID]; f != nil {
			f.Rating -= p.cfg.PenaltyPoints
		}
		p.log.LogDemotionApplied(pl.CompetitorID, contest.ID, entry.Races, p.cfg.PenaltyPoints)
	}

	return true
}

// validateContest rejects malformed payloads before any mutation.
func validateContest(ctype models.CompetitorType, contest *models.Contest) ([]participant, error) {
	if contest == nil || len(contest.Entries) == 0 {
		return nil, models.ErrInvalidContest
	}
	parts := resolveParticipants(ctype, contest)
	if len(parts) < 2 {
		return nil, models.ErrInvalidContest
	}
	return parts, nil
}

// ProcessContest applies one newly settled contest incrementally: it
// loads existing entries for the participants only, runs the same
// per-contest logic as a full recompute, and persists only those
// entries. Contests with fewer than 2 valid placements are a logged
// no-op, not an error.
func (p *Pipeline) ProcessContest(ctx context.Context, ctype models.CompetitorType, contest *models.Contest) error {
	parts, err := validateContest(ctype, contest)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(parts))
	for i, part := range parts {
		ids[i] = part.id
	}

	career, err := p.ratings.GetForCompetitors(ctx, models.TrackCareer, ctype, ids)
	if err != nil {
		return fmt.Errorf("failed to load career ratings: %w", err)
	}
	form, err := p.ratings.GetForCompetitors(ctx, models.TrackForm, ctype, ids)
	if err != nil {
		return fmt.Errorf("failed to load form ratings: %w", err)
	}

	now := time.Now().UTC()
	p.ensureSeeded(career, parts, ctype, models.TrackCareer, now)
	p.ensureSeeded(form, parts, ctype, models.TrackForm, now)

	if !p.applyContest(contest, parts, career, form, now) {
		metrics.RecordContestSkipped()
		p.log.LogContestSkipped(contest.ID, "fewer than 2 valid placements")
		return nil
	}

	entries := make([]*models.RatingEntry, 0, 2*len(parts))
	for _, part := range parts {
		entries = append(entries, career[part.id], form[part.id])
	}
	if err := p.ratings.BulkUpsert(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist rating entries: %w", err)
	}

	metrics.RecordContestProcessed(string(ctype), "incremental")
	p.log.WithFields(logrus.Fields{
		"contest_id":   contest.ID,
		"type":         ctype,
		"participants": len(parts),
	}).Info("Incremental rating update applied")
	return nil
}

// Recompute replays the full contest history strictly in ascending date
// order and persists the resulting rating maps with one batched upsert
// per track. State is path dependent: reordering contests changes the
// result, so the stream order is load bearing.
func (p *Pipeline) Recompute(ctx context.Context, ctype models.CompetitorType) (*RecomputeSummary, error) {
	career := make(map[uuid.UUID]*models.RatingEntry)
	form := make(map[uuid.UUID]*models.RatingEntry)
	summary := &RecomputeSummary{}
	now := time.Now().UTC()
	started := time.Now()
	p.log.LogRecomputeStarted(string(ctype))

	err := p.contests.StreamOrderedByDate(ctx, nil, func(contest *models.Contest) error {
		summary.Contests++
		parts, err := validateContest(ctype, contest)
		if err != nil {
			summary.Skipped++
			p.log.LogContestSkipped(contest.ID, "malformed contest")
			return nil
		}
		p.ensureSeeded(career, parts, ctype, models.TrackCareer, now)
		p.ensureSeeded(form, parts, ctype, models.TrackForm, now)
		if p.applyContest(contest, parts, career, form, now) {
			summary.Applied++
			metrics.RecordContestProcessed(string(ctype), "recompute")
		} else {
			summary.Skipped++
			metrics.RecordContestSkipped()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay contest history: %w", err)
	}

	entries := make([]*models.RatingEntry, 0, len(career)+len(form))
	for _, e := range career {
		entries = append(entries, e)
	}
	for _, e := range form {
		entries = append(entries, e)
	}
	summary.Competitors = len(career)

	if len(entries) > 0 {
		if err := p.ratings.BulkUpsert(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to persist recomputed ratings: %w", err)
		}
	}

	metrics.RecordRecompute(string(ctype), time.Since(started).Seconds(), summary.Competitors)
	p.log.LogRecomputeFinished(string(ctype), summary.Applied, summary.Skipped, summary.Competitors,
		float64(time.Since(started).Milliseconds()))
	return summary, nil
}
