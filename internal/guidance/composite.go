package guidance

import (
	"sort"

	"github.com/google/uuid"

	"github.com/yourusername/trotrank/internal/models"
)

// BonusKind is the closed set of contextual bonuses a starter can carry.
type BonusKind int

const (
	BonusShoe BonusKind = iota
	BonusFavoriteTrack
	BonusFavoriteSpar
	BonusTrackFavoriteSpar
)

// String returns the human-readable bonus label used in tier reasons.
func (k BonusKind) String() string {
	switch k {
	case BonusShoe:
		return "shoe change"
	case BonusFavoriteTrack:
		return "favorite track"
	case BonusFavoriteSpar:
		return "favorite spar"
	case BonusTrackFavoriteSpar:
		return "track favorite spar"
	default:
		return "unknown bonus"
	}
}

// Bonus is one fired bonus with its configured weight.
type Bonus struct {
	Kind   BonusKind `json:"kind"`
	Points float64   `json:"points"`
}

// Competitor is the rating-enriched input to the composite ranker.
type Competitor struct {
	ID           uuid.UUID
	FormRating   float64
	CareerRating float64
	RecentForm   float64
	Entry        *models.ContestEntry
}

// Ranked is one competitor's composite ranking for a contest.
type Ranked struct {
	Competitor
	CompositeScore float64
	Bonuses        []Bonus
	BonusSum       float64
	Handicap       float64
	Rank           int
	Tier           models.Tier
	TierReason     string
}

// bonuses resolves the fired bonus kinds for one entry.
func bonuses(e *models.ContestEntry, cfg Config) ([]Bonus, float64) {
	var out []Bonus
	sum := 0.0
	add := func(kind BonusKind, points float64) {
		out = append(out, Bonus{Kind: kind, Points: points})
		sum += points
	}
	if e.ShoeChange {
		add(BonusShoe, cfg.BonusShoe)
	}
	if e.FavoriteTrack {
		add(BonusFavoriteTrack, cfg.BonusFavoriteTrack)
	}
	if e.FavoriteSpar {
		add(BonusFavoriteSpar, cfg.BonusFavoriteSpar)
	}
	if e.TrackFavoriteSpar {
		add(BonusTrackFavoriteSpar, cfg.BonusTrackFavoriteSpar)
	}
	return out, sum
}

// handicapAdjustment penalizes extra distance relative to the contest
// base distance. Zero when distances match or the divisor is unset.
func handicapAdjustment(baseDistance, actualDistance int, divisor float64) float64 {
	if divisor <= 0 || actualDistance == baseDistance || actualDistance <= 0 {
		return 0
	}
	return -float64(actualDistance-baseDistance) / divisor
}

// RankField computes composite scores for the field of one contest and
// returns it sorted descending with ranks 1..N assigned. The sort is
// stable: ties keep their input order. Pure function of its inputs.
func RankField(contest *models.Contest, field []Competitor, cfg Config) []*Ranked {
	ranked := make([]*Ranked, len(field))
	for i, c := range field {
		r := &Ranked{Competitor: c}
		if c.Entry != nil {
			r.Bonuses, r.BonusSum = bonuses(c.Entry, cfg)
			r.Handicap = handicapAdjustment(contest.Distance, c.Entry.Distance, cfg.HandicapDivisor)
		}
		score := c.FormRating
		if cfg.EloDivisor > 0 {
			score = c.FormRating / cfg.EloDivisor
		}
		r.CompositeScore = score + r.BonusSum + r.Handicap + cfg.RecentFormWeight*c.RecentForm
		ranked[i] = r
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})
	for i, r := range ranked {
		r.Rank = i + 1
	}
	return ranked
}
