// Package guidance turns persisted ratings into race-level guidance:
// composite scores, tiers, win probabilities and highlighted picks.
package guidance

// TierBasis selects the metric tiers are measured against.
type TierBasis string

const (
	BasisComposite TierBasis = "composite"
	BasisRating    TierBasis = "rating"
)

// Rating-basis tiers work in Elo points rather than composite fractions.
const (
	ratingAWithin = 25.0
	ratingBWithin = 75.0
)

// Config is the flat knob set driving guidance generation. Every knob
// can be overridden per request.
type Config struct {
	EloDivisor float64 `json:"elo_divisor"`

	BonusShoe              float64 `json:"bonus_shoe"`
	BonusFavoriteTrack     float64 `json:"bonus_favorite_track"`
	BonusFavoriteSpar      float64 `json:"bonus_favorite_spar"`
	BonusTrackFavoriteSpar float64 `json:"bonus_track_favorite_spar"`

	HandicapDivisor float64 `json:"handicap_divisor"`

	// Legacy recent-results term, weighted 0 in production.
	RecentFormWeight float64 `json:"recent_form_weight"`

	TierBasis TierBasis `json:"tier_basis"`
	AWithin   float64   `json:"a_within"`
	BWithin   float64   `json:"b_within"`

	ClassTopK      int     `json:"class_top_k"`
	FormEloEps     float64 `json:"form_elo_eps"`
	PlusUpgradeMin float64 `json:"plus_upgrade_min"`

	SoftmaxBeta float64 `json:"softmax_beta"`

	TopNBase        int     `json:"top_n_base"`
	TopNMax         int     `json:"top_n_max"`
	ZGapMax         float64 `json:"z_gap_max"`
	ProbCoverageMin float64 `json:"prob_coverage_min"`
}

// DefaultConfig returns the calibrated production knob values for the
// composite tier basis.
func DefaultConfig() Config {
	return Config{
		EloDivisor:             100,
		BonusShoe:              0.25,
		BonusFavoriteTrack:     0.2,
		BonusFavoriteSpar:      0.2,
		BonusTrackFavoriteSpar: 0.15,
		HandicapDivisor:        40,
		RecentFormWeight:       0,
		TierBasis:              BasisComposite,
		AWithin:                0.3,
		BWithin:                2.0,
		ClassTopK:              3,
		FormEloEps:             20,
		PlusUpgradeMin:         0.4,
		SoftmaxBeta:            1.0,
		TopNBase:               3,
		TopNMax:                6,
		ZGapMax:                0.3,
		ProbCoverageMin:        0.6,
	}
}

// Overrides carries per-request knob overrides; nil fields keep the
// configured value.
type Overrides struct {
	EloDivisor             *float64   `json:"elo_divisor,omitempty"`
	BonusShoe              *float64   `json:"bonus_shoe,omitempty"`
	BonusFavoriteTrack     *float64   `json:"bonus_favorite_track,omitempty"`
	BonusFavoriteSpar      *float64   `json:"bonus_favorite_spar,omitempty"`
	BonusTrackFavoriteSpar *float64   `json:"bonus_track_favorite_spar,omitempty"`
	HandicapDivisor        *float64   `json:"handicap_divisor,omitempty"`
	TierBasis              *TierBasis `json:"tier_basis,omitempty"`
	AWithin                *float64   `json:"a_within,omitempty"`
	BWithin                *float64   `json:"b_within,omitempty"`
	ClassTopK              *int       `json:"class_top_k,omitempty"`
	FormEloEps             *float64   `json:"form_elo_eps,omitempty"`
	PlusUpgradeMin         *float64   `json:"plus_upgrade_min,omitempty"`
	SoftmaxBeta            *float64   `json:"softmax_beta,omitempty"`
	TopNBase               *int       `json:"top_n_base,omitempty"`
	TopNMax                *int       `json:"top_n_max,omitempty"`
	ZGapMax                *float64   `json:"z_gap_max,omitempty"`
	ProbCoverageMin        *float64   `json:"prob_coverage_min,omitempty"`
}

// Apply merges overrides onto the config. Switching the tier basis to
// rating without explicit thresholds swaps in the point-scale defaults.
func (c Config) Apply(o *Overrides) Config {
	if o == nil {
		return c
	}
	if o.TierBasis != nil && *o.TierBasis != c.TierBasis {
		c.TierBasis = *o.TierBasis
		if c.TierBasis == BasisRating {
			c.AWithin = ratingAWithin
			c.BWithin = ratingBWithin
		} else {
			d := DefaultConfig()
			c.AWithin = d.AWithin
			c.BWithin = d.BWithin
		}
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&c.EloDivisor, o.EloDivisor)
	setF(&c.BonusShoe, o.BonusShoe)
	setF(&c.BonusFavoriteTrack, o.BonusFavoriteTrack)
	setF(&c.BonusFavoriteSpar, o.BonusFavoriteSpar)
	setF(&c.BonusTrackFavoriteSpar, o.BonusTrackFavoriteSpar)
	setF(&c.HandicapDivisor, o.HandicapDivisor)
	setF(&c.AWithin, o.AWithin)
	setF(&c.BWithin, o.BWithin)
	setI(&c.ClassTopK, o.ClassTopK)
	setF(&c.FormEloEps, o.FormEloEps)
	setF(&c.PlusUpgradeMin, o.PlusUpgradeMin)
	setF(&c.SoftmaxBeta, o.SoftmaxBeta)
	setI(&c.TopNBase, o.TopNBase)
	setI(&c.TopNMax, o.TopNMax)
	setF(&c.ZGapMax, o.ZGapMax)
	setF(&c.ProbCoverageMin, o.ProbCoverageMin)
	return c
}
