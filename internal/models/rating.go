package models

import (
	"time"

	"github.com/google/uuid"
)

// RatingTrack identifies one of the two parallel Elo populations.
type RatingTrack string

const (
	// TrackCareer is the slow-decay population used as a stable class signal.
	TrackCareer RatingTrack = "career"
	// TrackForm is the fast-decay population driving live rankings.
	TrackForm RatingTrack = "form"
)

// CompetitorType separates the fully independent horse and driver pipelines.
type CompetitorType string

const (
	CompetitorHorse  CompetitorType = "horse"
	CompetitorDriver CompetitorType = "driver"
)

// RatingEntry is one competitor's skill estimate on one rating track.
// Created on first appearance, mutated once per contest, never deleted.
type RatingEntry struct {
	CompetitorID   uuid.UUID      `db:"competitor_id" json:"competitor_id" validate:"required"`
	CompetitorType CompetitorType `db:"competitor_type" json:"competitor_type" validate:"required,oneof=horse driver"`
	Track          RatingTrack    `db:"track" json:"track" validate:"required,oneof=career form"`
	Rating         float64        `db:"rating" json:"rating"`
	Races          int            `db:"races" json:"races" validate:"gte=0"`
	SeedRating     *float64       `db:"seed_rating" json:"seed_rating"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy of the entry.
func (r *RatingEntry) Clone() *RatingEntry {
	cp := *r
	if r.SeedRating != nil {
		seed := *r.SeedRating
		cp.SeedRating = &seed
	}
	return &cp
}
