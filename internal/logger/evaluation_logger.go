// Package logger provides evaluation and auto-tune logging.
package logger

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EvaluationLogger provides dedicated logging for evaluation runs and
// auto-tune jobs.
type EvaluationLogger struct {
	*logrus.Entry
}

// NewEvaluationLogger creates a new evaluation logger.
func NewEvaluationLogger(baseLogger *logrus.Logger) *EvaluationLogger {
	return &EvaluationLogger{
		Entry: baseLogger.WithField("component", "evaluation"),
	}
}

// LogEvaluationCompleted logs the result of a single evaluation run.
func (el *EvaluationLogger) LogEvaluationCompleted(evaluated, failed int, meanRMSE float64, durationMs float64) {
	el.WithFields(logrus.Fields{
		"races_evaluated": evaluated,
		"races_failed":    failed,
		"mean_rmse":       meanRMSE,
		"duration_ms":     durationMs,
	}).Info("Evaluation run completed")
}

// LogAutoTuneStarted logs the launch of a grid-search job.
func (el *EvaluationLogger) LogAutoTuneStarted(jobID uuid.UUID, cells int) {
	el.WithFields(logrus.Fields{
		"job_id":     jobID,
		"grid_cells": cells,
	}).Info("Auto-tune job started")
}

// LogAutoTuneStep logs a single evaluated grid cell.
func (el *EvaluationLogger) LogAutoTuneStep(jobID uuid.UUID, step, total int, rmse float64) {
	el.WithFields(logrus.Fields{
		"job_id": jobID,
		"step":   step,
		"total":  total,
		"rmse":   rmse,
	}).Debug("Auto-tune step evaluated")
}

// LogAutoTuneFinished logs job completion with the winning cell.
func (el *EvaluationLogger) LogAutoTuneFinished(jobID uuid.UUID, state string, bestRMSE float64) {
	el.WithFields(logrus.Fields{
		"job_id":    jobID,
		"state":     state,
		"best_rmse": bestRMSE,
	}).Info("Auto-tune job finished")
}
