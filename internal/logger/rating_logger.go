// Package logger provides rating pipeline logging.
package logger

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RatingLogger provides dedicated logging for rating pipeline operations.
type RatingLogger struct {
	*logrus.Entry
}

// NewRatingLogger creates a new rating logger.
func NewRatingLogger(baseLogger *logrus.Logger) *RatingLogger {
	return &RatingLogger{
		Entry: baseLogger.WithField("component", "rating"),
	}
}

// LogRecomputeStarted logs the start of a full rating recompute.
func (rl *RatingLogger) LogRecomputeStarted(competitorType string) {
	rl.WithField("competitor_type", competitorType).Info("Rating recompute started")
}

// LogRecomputeFinished logs the outcome of a full rating recompute.
func (rl *RatingLogger) LogRecomputeFinished(competitorType string, processed, skipped, competitors int, durationMs float64) {
	rl.WithFields(logrus.Fields{
		"competitor_type":     competitorType,
		"contests_processed":  processed,
		"contests_skipped":    skipped,
		"competitors_updated": competitors,
		"duration_ms":         durationMs,
	}).Info("Rating recompute finished")
}

// LogContestSkipped logs a contest dropped from the replay.
func (rl *RatingLogger) LogContestSkipped(contestID uuid.UUID, reason string) {
	rl.WithFields(logrus.Fields{
		"contest_id": contestID,
		"reason":     reason,
	}).Debug("Contest skipped")
}

// LogCompetitorSeeded logs initial rating assignment for an unrated competitor.
func (rl *RatingLogger) LogCompetitorSeeded(competitorID uuid.UUID, competitorType string, seedRating float64, fromExternal bool) {
	rl.WithFields(logrus.Fields{
		"competitor_id":   competitorID,
		"competitor_type": competitorType,
		"seed_rating":     seedRating,
		"from_external":   fromExternal,
	}).Debug("Competitor seeded")
}

// LogDemotionApplied logs a flat penalty applied to an inexperienced trailer.
func (rl *RatingLogger) LogDemotionApplied(competitorID uuid.UUID, contestID uuid.UUID, races int, points float64) {
	rl.WithFields(logrus.Fields{
		"competitor_id": competitorID,
		"contest_id":    contestID,
		"races":         races,
		"points":        points,
	}).Debug("Demotion penalty applied")
}
