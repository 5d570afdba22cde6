package evaluation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/trotrank/internal/logger"
	"github.com/yourusername/trotrank/internal/metrics"
	"github.com/yourusername/trotrank/internal/models"
)

// JobState is the lifecycle state of an auto-tune job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobCancelled JobState = "cancelled"
	JobError     JobState = "error"
)

// Grid spans the hyperparameter lattice to search. Empty dimensions fall
// back to the single default value.
type Grid struct {
	K         []float64 `json:"k"`
	DecayDays []float64 `json:"decay_days"`
	ClassMin  []float64 `json:"class_min"`
	ClassMax  []float64 `json:"class_max"`
}

// Combinations enumerates the Cartesian product of the grid, dropping
// cells where classMin >= classMax.
func (g Grid) Combinations(base Hyperparameters) []Hyperparameters {
	dim := func(vals []float64, fallback float64) []float64 {
		if len(vals) == 0 {
			return []float64{fallback}
		}
		return vals
	}
	ks := dim(g.K, base.K)
	decays := dim(g.DecayDays, base.DecayDays)
	mins := dim(g.ClassMin, base.ClassMin)
	maxs := dim(g.ClassMax, base.ClassMax)

	var out []Hyperparameters
	for _, k := range ks {
		for _, decay := range decays {
			for _, cmin := range mins {
				for _, cmax := range maxs {
					if cmin >= cmax {
						continue
					}
					p := base
					p.K = k
					p.DecayDays = decay
					p.ClassMin = cmin
					p.ClassMax = cmax
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// Job tracks one grid search. Mutated only by its background loop;
// observed through snapshots.
type Job struct {
	mu         sync.RWMutex
	id         uuid.UUID
	state      JobState
	processed  int
	total      int
	best       *Result
	results    []*Result
	cancelled  bool
	startedAt  time.Time
	finishedAt *time.Time
}

// JobSnapshot is a point-in-time copy of a job's progress.
type JobSnapshot struct {
	ID         uuid.UUID  `json:"job_id"`
	State      JobState   `json:"state"`
	Processed  int        `json:"processed"`
	Total      int        `json:"total"`
	Best       *Result    `json:"best,omitempty"`
	Results    []*Result  `json:"results,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (j *Job) snapshot() *JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &JobSnapshot{
		ID:         j.id,
		State:      j.state,
		Processed:  j.processed,
		Total:      j.total,
		Best:       j.best,
		Results:    append([]*Result(nil), j.results...),
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
}

func (j *Job) isCancelled() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cancelled
}

func (j *Job) record(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed++
	j.results = append(j.results, res)
	if !math.IsNaN(res.MeanRMSE) && !math.IsInf(res.MeanRMSE, 0) {
		if j.best == nil || res.MeanRMSE < j.best.MeanRMSE {
			j.best = res
		}
	}
}

func (j *Job) finish(state JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	now := time.Now().UTC()
	j.finishedAt = &now
}

// Manager owns the auto-tune job registry. At most one job may be
// running at a time, enforced by the active-job guard.
type Manager struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*Job
	active    *uuid.UUID
	harness   *Harness
	stepDelay time.Duration
	log       *logger.EvaluationLogger
}

// NewManager creates an auto-tune job manager. stepDelay paces the grid:
// each cell waits for it before evaluating, which also provides the
// cancellation checkpoint.
func NewManager(harness *Harness, stepDelay time.Duration, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		jobs:      make(map[uuid.UUID]*Job),
		harness:   harness,
		stepDelay: stepDelay,
		log:       logger.NewEvaluationLogger(log),
	}
}

// Start launches a grid search over [start, end] and returns immediately
// with the job's initial snapshot. A second start while one job runs is
// rejected with ErrJobConflict and creates nothing.
func (m *Manager) Start(start, end time.Time, grid Grid) (*JobSnapshot, error) {
	combos := grid.Combinations(DefaultHyperparameters())
	if len(combos) == 0 {
		return nil, models.ErrEmptyGrid
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, models.ErrJobConflict
	}
	job := &Job{
		id:        uuid.New(),
		state:     JobRunning,
		total:     len(combos),
		startedAt: time.Now().UTC(),
	}
	m.jobs[job.id] = job
	id := job.id
	m.active = &id
	m.mu.Unlock()

	metrics.SetAutoTuneActive(true)
	m.log.LogAutoTuneStarted(job.id, job.total)

	go m.run(job, start, end, combos)
	return job.snapshot(), nil
}

// run is the detached grid loop. Cancellation is cooperative: the flag
// is checked once per grid cell, so a cancel request takes effect at the
// next cell boundary.
func (m *Manager) run(job *Job, start, end time.Time, combos []Hyperparameters) {
	defer func() {
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
		metrics.SetAutoTuneActive(false)
	}()

	ctx := context.Background()
	var limiter *rate.Limiter
	if m.stepDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(m.stepDelay), 1)
	}

	for i, params := range combos {
		if job.isCancelled() {
			job.finish(JobCancelled)
			m.log.LogAutoTuneFinished(job.id, string(JobCancelled), bestRMSE(job))
			return
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				job.finish(JobError)
				return
			}
		}

		res, err := m.harness.EvaluateElo(ctx, start, end, params)
		if err != nil {
			// A failed cell sorts last instead of aborting the search.
			res = &Result{MeanRMSE: math.NaN(), Params: params}
			m.log.WithError(err).WithField("job_id", job.id).Warn("Grid cell evaluation failed")
		}
		job.record(res)
		metrics.RecordAutoTuneStep()
		m.log.LogAutoTuneStep(job.id, i+1, job.total, res.MeanRMSE)
	}

	job.finish(JobDone)
	m.log.LogAutoTuneFinished(job.id, string(JobDone), bestRMSE(job))
}

// bestRMSE reads the job's current best score, NaN when no finite cell
// has landed yet.
func bestRMSE(j *Job) float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.best == nil {
		return math.NaN()
	}
	return j.best.MeanRMSE
}

// Snapshot returns the current progress of a job.
func (m *Manager) Snapshot(id uuid.UUID) (*JobSnapshot, error) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return job.snapshot(), nil
}

// Cancel requests cooperative cancellation of a running job. Jobs in a
// terminal state reject the request.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return models.ErrJobNotFound
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.state != JobRunning {
		return models.ErrJobNotRunning
	}
	job.cancelled = true
	return nil
}
