// Package rating implements the time-decayed pairwise Elo engine that
// maintains career and form skill estimates for trotting competitors.
package rating

import (
	"math"
	"time"
)

const hoursPerDay = 24.0

// RecencyWeight returns the exponential decay factor for a contest of
// the given age: exp(-daysElapsed/decayDays). A contest dated now (or in
// the future, which the live path clamps away) weighs 1.
func RecencyWeight(contestDate, now time.Time, decayDays float64) float64 {
	if decayDays <= 0 {
		return 1
	}
	days := now.Sub(contestDate).Hours() / hoursPerDay
	if days <= 0 {
		return 1
	}
	return math.Exp(-days / decayDays)
}

// ClassFactor maps a contest purse to a learning-rate multiplier in
// [min, max]. A purse at the reference value lands mid-range; the curve
// is logarithmic and monotonically non-decreasing in purse.
func ClassFactor(purse, min, max, ref float64) float64 {
	if purse <= 0 {
		return 1
	}
	score := math.Log1p(purse) / math.Log1p(ref)
	if score < 0 {
		score = 0
	} else if score > 2 {
		score = 2
	}
	return min + (max-min)*score/2
}

// SeedRating derives a bounded initial rating from an external skill
// proxy. Used only for competitors with no prior rating entry.
func SeedRating(externalScore, base, alpha, min, max float64) float64 {
	if externalScore < 0 {
		externalScore = 0
	}
	seed := math.Round(base + alpha*math.Log1p(externalScore))
	if seed < min {
		return min
	}
	if seed > max {
		return max
	}
	return seed
}
