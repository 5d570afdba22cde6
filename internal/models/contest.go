package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlacementInvalid is the upstream sentinel for "did not finish /
// disqualified / scratched". Entries carrying it are excluded from all
// pairwise comparisons. A real field of 99+ starters would collide with
// it, but trotting fields top out around 15.
const PlacementInvalid = 99

// Contest represents one settled or upcoming multi-way race.
type Contest struct {
	ID        uuid.UUID       `db:"id" json:"id" validate:"required"`
	Date      time.Time       `db:"contest_date" json:"contest_date" validate:"required"`
	TrackCode string          `db:"track_code" json:"track_code"`
	Distance  int             `db:"distance" json:"distance" validate:"gte=0"`
	Purse     decimal.Decimal `db:"purse" json:"purse"`
	Entries   []*ContestEntry `db:"-" json:"entries"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// ContestEntry represents one starter in a contest.
type ContestEntry struct {
	ContestID         uuid.UUID  `db:"contest_id" json:"contest_id" validate:"required"`
	CompetitorID      uuid.UUID  `db:"competitor_id" json:"competitor_id" validate:"required"`
	DriverID          *uuid.UUID `db:"driver_id" json:"driver_id"`
	Placement         *int       `db:"placement" json:"placement"`
	Distance          int        `db:"distance" json:"distance"`
	PostPosition      int        `db:"post_position" json:"post_position"`
	ShoeChange        bool       `db:"shoe_change" json:"shoe_change"`
	FavoriteTrack     bool       `db:"favorite_track" json:"favorite_track"`
	FavoriteSpar      bool       `db:"favorite_spar" json:"favorite_spar"`
	TrackFavoriteSpar bool       `db:"track_favorite_spar" json:"track_favorite_spar"`
	ExternalScore     *float64   `db:"external_score" json:"external_score"`
}

// ValidPlacement returns the entry's finishing position and whether it
// counts as a real finish.
func (e *ContestEntry) ValidPlacement() (int, bool) {
	if e.Placement == nil {
		return 0, false
	}
	p := *e.Placement
	if p <= 0 || p >= PlacementInvalid {
		return 0, false
	}
	return p, true
}

// PurseValue returns the purse as a float, 0 when unset.
func (c *Contest) PurseValue() float64 {
	f, _ := c.Purse.Float64()
	return f
}

// ValidPlacements counts entries with a real finishing position.
func (c *Contest) ValidPlacements() int {
	n := 0
	for _, e := range c.Entries {
		if _, ok := e.ValidPlacement(); ok {
			n++
		}
	}
	return n
}
