package rating

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/trotrank/internal/models"
)

// Placement is one competitor's resolved finishing position in a contest.
type Placement struct {
	CompetitorID uuid.UUID
	Position     int
}

// UpdateOptions control a single pairwise Elo pass over one contest.
// K is the effective learning rate and already includes the class factor.
type UpdateOptions struct {
	K         float64
	DecayDays float64
	Now       time.Time
}

// experienceMultiplier dampens rating volatility once a competitor has a
// track record: newcomers move fast, veterans slowly.
func experienceMultiplier(races int) float64 {
	switch {
	case races < 5:
		return 1.5
	case races < 20:
		return 1.2
	default:
		return 1.0
	}
}

// expectedScore is the standard Elo win expectancy of a against b.
func expectedScore(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
}

// ProcessContest scores every unordered pair of valid placements and
// applies the accumulated deltas to the rating map. Deltas are collected
// first and applied in a second pass so that later pairs never see
// already-updated ratings. Each participating competitor's race count is
// incremented exactly once. Contests with fewer than 2 valid placements
// are skipped entirely; the return value reports whether the contest was
// applied.
func ProcessContest(contestDate time.Time, placements []Placement, ratings map[uuid.UUID]*models.RatingEntry, opts UpdateOptions) bool {
	if len(placements) < 2 {
		return false
	}

	weight := RecencyWeight(contestDate, opts.Now, opts.DecayDays)

	// Phase 1: accumulate deltas against a frozen view of the ratings.
	deltas := make(map[uuid.UUID]float64, len(placements))
	for i := 0; i < len(placements); i++ {
		for j := i + 1; j < len(placements); j++ {
			a, b := placements[i], placements[j]
			ra, ok := ratings[a.CompetitorID]
			if !ok {
				continue
			}
			rb, ok := ratings[b.CompetitorID]
			if !ok {
				continue
			}

			expectedA := expectedScore(ra.Rating, rb.Rating)
			actualA := 0.5
			switch {
			case a.Position < b.Position:
				actualA = 1
			case a.Position > b.Position:
				actualA = 0
			}

			deltas[a.CompetitorID] += weight * opts.K * experienceMultiplier(ra.Races) * (actualA - expectedA)
			deltas[b.CompetitorID] += weight * opts.K * experienceMultiplier(rb.Races) * ((1 - actualA) - (1 - expectedA))
		}
	}

	// Phase 2: apply deltas and bump race counts.
	for _, p := range placements {
		entry, ok := ratings[p.CompetitorID]
		if !ok {
			continue
		}
		entry.Rating += deltas[p.CompetitorID]
		entry.Races++
		entry.UpdatedAt = opts.Now
	}

	return true
}
