package guidance

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/trotrank/internal/models"
)

// AssignTiers buckets a ranked field into A/B/C tiers from the gap to
// the leader, then applies the two upgrade rules. Re-running on an
// unchanged field yields identical tiers and reasons.
func AssignTiers(ranked []*Ranked, cfg Config) {
	if len(ranked) == 0 {
		return
	}

	metric := func(r *Ranked) float64 {
		if cfg.TierBasis == BasisRating {
			return r.FormRating
		}
		return r.CompositeScore
	}
	leader := metric(ranked[0])
	leaderForm := ranked[0].FormRating

	careerRank := careerRanks(ranked)

	for _, r := range ranked {
		gap := leader - metric(r)
		switch {
		case gap <= cfg.AWithin:
			r.Tier = models.TierA
		case gap <= cfg.BWithin:
			r.Tier = models.TierB
		default:
			r.Tier = models.TierC
		}
		r.TierReason = ""

		if r.Tier == models.TierA {
			continue
		}

		var reasons []string
		if careerRank[r.ID] <= cfg.ClassTopK && leaderForm-r.FormRating <= cfg.FormEloEps {
			reasons = append(reasons, "career class within top ranks and form close to leader")
		}
		if r.BonusSum >= cfg.PlusUpgradeMin {
			reasons = append(reasons, "bonus sum meets upgrade minimum")
		}
		if len(reasons) > 0 {
			r.Tier = models.TierA
			r.TierReason = "upgraded: " + strings.Join(reasons, "; ")
		}
	}
}

// careerRanks ranks the field by career rating, best first.
func careerRanks(ranked []*Ranked) map[uuid.UUID]int {
	byCareer := append([]*Ranked(nil), ranked...)
	sort.SliceStable(byCareer, func(i, j int) bool {
		return byCareer[i].CareerRating > byCareer[j].CareerRating
	})
	out := make(map[uuid.UUID]int, len(byCareer))
	for i, r := range byCareer {
		out[r.ID] = i + 1
	}
	return out
}
