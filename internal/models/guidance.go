package models

import (
	"time"

	"github.com/google/uuid"
)

// Tier is the discrete confidence bucket assigned to a ranked competitor.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// GuidanceEntry is one row of race guidance: a competitor's rank,
// composite score, tier, win probability and highlight flag for one
// contest. Regenerated on demand, only ever cached.
type GuidanceEntry struct {
	CompetitorID   uuid.UUID `json:"competitor_id"`
	Rank           int       `json:"rank"`
	Rating         float64   `json:"rating"`
	CompositeScore float64   `json:"composite_score"`
	Tier           Tier      `json:"tier"`
	TierReason     string    `json:"tier_reason,omitempty"`
	Probability    float64   `json:"probability"`
	ZScore         float64   `json:"z_score"`
	Highlighted    bool      `json:"highlighted"`
}

// RaceGuidance is the full ordered guidance payload for one contest.
type RaceGuidance struct {
	ContestID   uuid.UUID        `json:"contest_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Entries     []*GuidanceEntry `json:"entries"`
}
