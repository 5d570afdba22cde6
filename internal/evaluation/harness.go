// Package evaluation provides the offline backtesting harness and the
// auto-tune grid search used to calibrate rating hyperparameters.
package evaluation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/logger"
	"github.com/yourusername/trotrank/internal/metrics"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
)

// Hyperparameters are the candidate rating-engine constants under test.
type Hyperparameters struct {
	K         float64           `json:"k"`
	DecayDays float64           `json:"decay_days"`
	ClassMin  float64           `json:"class_min"`
	ClassMax  float64           `json:"class_max"`
	ClassRef  float64           `json:"class_ref"`
	Seed      rating.SeedParams `json:"seed"`
}

// DefaultHyperparameters mirrors the production career-track constants.
func DefaultHyperparameters() Hyperparameters {
	cfg := rating.DefaultPipelineConfig()
	return Hyperparameters{
		K:         cfg.Career.K,
		DecayDays: cfg.Career.DecayDays,
		ClassMin:  cfg.ClassMin,
		ClassMax:  cfg.ClassMax,
		ClassRef:  cfg.ClassRef,
		Seed:      cfg.Seed,
	}
}

// Result is one evaluation outcome: the mean rank RMSE over the replayed
// range plus purse coverage diagnostics. Produced fresh per run, never
// mutated.
type Result struct {
	RacesEvaluated int             `json:"races_evaluated"`
	RacesFailed    int             `json:"races_failed"`
	MeanRMSE       float64         `json:"mean_rmse"`
	PurseBuckets   map[string]int  `json:"purse_buckets"`
	Params         Hyperparameters `json:"hyperparameters"`
}

// Harness replays historical contests in memory against candidate
// hyperparameters. Nothing it does touches persisted ratings.
type Harness struct {
	contests repository.ContestRepository
	ctype    models.CompetitorType
	log      *logger.EvaluationLogger
}

// NewHarness creates an evaluation harness for one competitor type.
func NewHarness(contests repository.ContestRepository, ctype models.CompetitorType, log *logrus.Logger) (*Harness, error) {
	if contests == nil {
		return nil, fmt.Errorf("contest repository is required")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Harness{contests: contests, ctype: ctype, log: logger.NewEvaluationLogger(log)}, nil
}

func purseBucket(purse float64) string {
	switch {
	case purse <= 0:
		return "none"
	case purse < 25000:
		return "low"
	case purse < 100000:
		return "mid"
	default:
		return "high"
	}
}

// EvaluateElo replays contests in [start, end] in ascending date order on
// a private career-track map, scoring each contest's predicted rank
// order against the actual placements before updating the ratings with
// the candidate parameters. Contests yielding a non-finite RMSE are
// excluded from the mean but still counted as evaluated.
func (h *Harness) EvaluateElo(ctx context.Context, start, end time.Time, params Hyperparameters) (*Result, error) {
	began := time.Now()
	contests, err := h.contests.GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load contests: %w", err)
	}

	ratings := make(map[uuid.UUID]*models.RatingEntry)
	result := &Result{PurseBuckets: make(map[string]int), Params: params}
	rmseSum := 0.0
	rmseCount := 0

	for _, contest := range contests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		placements := h.resolve(contest)
		if len(placements) < 2 {
			continue
		}

		for _, p := range placements {
			if _, ok := ratings[p.Placement.CompetitorID]; !ok {
				seed := params.Seed.Base
				if p.External != nil {
					seed = rating.SeedRating(*p.External, params.Seed.Base, params.Seed.Alpha, params.Seed.Min, params.Seed.Max)
				}
				ratings[p.Placement.CompetitorID] = &models.RatingEntry{
					CompetitorID:   p.Placement.CompetitorID,
					CompetitorType: h.ctype,
					Track:          models.TrackCareer,
					Rating:         seed,
				}
			}
		}

		result.RacesEvaluated++
		result.PurseBuckets[purseBucket(contest.PurseValue())]++

		rmse := rankRMSE(placements, ratings)
		if math.IsNaN(rmse) || math.IsInf(rmse, 0) {
			result.RacesFailed++
		} else {
			rmseSum += rmse
			rmseCount++
		}

		class := rating.ClassFactor(contest.PurseValue(), params.ClassMin, params.ClassMax, params.ClassRef)
		plain := make([]rating.Placement, len(placements))
		for i, p := range placements {
			plain[i] = p.Placement
		}
		rating.ProcessContest(contest.Date, plain, ratings, rating.UpdateOptions{
			K:         params.K * class,
			DecayDays: params.DecayDays,
			Now:       end,
		})
	}

	if rmseCount > 0 {
		result.MeanRMSE = rmseSum / float64(rmseCount)
	} else {
		result.MeanRMSE = math.NaN()
	}

	metrics.RecordEvaluationRun(time.Since(began).Seconds())
	h.log.LogEvaluationCompleted(result.RacesEvaluated, result.RacesFailed, result.MeanRMSE,
		float64(time.Since(began).Milliseconds()))
	return result, nil
}

// seededPlacement couples a valid placement with the entry's external
// score for seeding.
type seededPlacement struct {
	Placement rating.Placement
	External  *float64
}

func (h *Harness) resolve(contest *models.Contest) []seededPlacement {
	seen := make(map[uuid.UUID]bool, len(contest.Entries))
	out := make([]seededPlacement, 0, len(contest.Entries))
	for _, e := range contest.Entries {
		id := e.CompetitorID
		if h.ctype == models.CompetitorDriver {
			if e.DriverID == nil {
				continue
			}
			id = *e.DriverID
		}
		if id == uuid.Nil || seen[id] {
			continue
		}
		pos, ok := e.ValidPlacement()
		if !ok {
			continue
		}
		seen[id] = true
		out = append(out, seededPlacement{
			Placement: rating.Placement{CompetitorID: id, Position: pos},
			External:  e.ExternalScore,
		})
	}
	return out
}

// rankRMSE scores the current ratings' predicted order against the
// actual placements: competitors sorted by rating descending get
// predicted ranks 1..N, and the error is the root mean square of the
// rank-versus-placement differences.
func rankRMSE(placements []seededPlacement, ratings map[uuid.UUID]*models.RatingEntry) float64 {
	ordered := append([]seededPlacement(nil), placements...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ratings[ordered[i].Placement.CompetitorID].Rating > ratings[ordered[j].Placement.CompetitorID].Rating
	})

	sum := 0.0
	for i, p := range ordered {
		diff := float64(i+1) - float64(p.Placement.Position)
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(ordered)))
}
