// Package scheduler manages periodic rating recomputation jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
)

// Scheduler manages scheduled rating recompute jobs
type Scheduler struct {
	cron            *cron.Cron
	pipeline        *rating.Pipeline
	contests        repository.ContestRepository
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	lastSweep       time.Time
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(pipeline *rating.Pipeline, contests repository.ContestRepository, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		pipeline:        pipeline,
		contests:        contests,
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		lastSweep:       time.Now().UTC(),
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleRecompute schedules a full rating replay for both competitor
// types on the given cron expression.
func (s *Scheduler) ScheduleRecompute(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
		defer cancel()

		for _, ctype := range []models.CompetitorType{models.CompetitorHorse, models.CompetitorDriver} {
			s.logger.WithField("competitor_type", ctype).Info("Starting scheduled rating recompute")

			summary, err := s.pipeline.Recompute(ctx, ctype)
			if err != nil {
				s.logger.WithError(err).WithField("competitor_type", ctype).Error("Scheduled recompute failed")
				continue
			}

			s.logger.WithFields(logrus.Fields{
				"competitor_type": ctype,
				"contests":        summary.Contests,
				"applied":         summary.Applied,
				"skipped":         summary.Skipped,
				"competitors":     summary.Competitors,
			}).Info("Scheduled recompute completed")
		}
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", cronExpression).Info("Scheduled rating recompute job")

	return nil
}

// ScheduleIncrementalSweep schedules a periodic pass that applies
// contests dated since the previous sweep without a full replay.
func (s *Scheduler) ScheduleIncrementalSweep(intervalSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	if intervalSeconds < 30 {
		intervalSeconds = 30
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(intervalSeconds)*time.Second)
		defer cancel()

		s.mu.Lock()
		since := s.lastSweep
		sweepStart := time.Now().UTC()
		s.mu.Unlock()

		processed := 0
		err := s.contests.StreamOrderedByDate(ctx, &since, func(contest *models.Contest) error {
			for _, ctype := range []models.CompetitorType{models.CompetitorHorse, models.CompetitorDriver} {
				if err := s.pipeline.ProcessContest(ctx, ctype, contest); err != nil {
					s.logger.WithError(err).WithFields(logrus.Fields{
						"contest_id":      contest.ID,
						"competitor_type": ctype,
					}).Warn("Incremental sweep skipped contest")
				}
			}
			processed++
			return nil
		})
		if err != nil {
			s.logger.WithError(err).Error("Incremental sweep failed")
			return
		}

		s.mu.Lock()
		s.lastSweep = sweepStart
		s.mu.Unlock()

		if processed > 0 {
			s.logger.WithField("contests", processed).Info("Incremental sweep completed")
		}
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", intervalSeconds), jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("interval_seconds", intervalSeconds).Info("Scheduled incremental sweep job")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight jobs up to
// the graceful timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(s.gracefulTimeout):
		s.logger.Warn("Scheduler stop timed out waiting for running jobs")
	}

	s.isRunning = false
	s.logger.Info("Scheduler stopped")

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			nextTime := entry.Next
			if nextRun.IsZero() || nextTime.Before(nextRun) {
				nextRun = nextTime
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}
