package evaluation

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/trotrank/internal/models"
)

func tuningFixture(t *testing.T) (*Manager, time.Time, time.Time) {
	t.Helper()
	ids := fixedField(4)
	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	src := &stubContests{contests: []*models.Contest{
		contestFor(base, 20000, ids, []int{1, 2, 3, 4}),
		contestFor(base.AddDate(0, 0, 7), 20000, ids, []int{2, 1, 4, 3}),
	}}
	h, err := NewHarness(src, models.CompetitorHorse, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewManager(h, 0, quietLogger()), base.AddDate(0, 0, -1), base.AddDate(0, 0, 14)
}

func waitForTerminal(t *testing.T, m *Manager, id uuid.UUID) *JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Snapshot(id)
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}
		if snap.State != JobRunning {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestGridCombinations(t *testing.T) {
	base := DefaultHyperparameters()
	grid := Grid{
		K:         []float64{8, 16, 32},
		DecayDays: []float64{180, 365},
		ClassMin:  []float64{0.8, 1.2},
		ClassMax:  []float64{1.0, 1.5},
	}
	combos := grid.Combinations(base)
	// 3*2*2*2 = 24 minus the cells where classMin >= classMax:
	// (1.2, 1.0) is filtered for each of the 6 k/decay pairs.
	if len(combos) != 18 {
		t.Fatalf("expected 18 combinations, got %d", len(combos))
	}
	for _, c := range combos {
		if c.ClassMin >= c.ClassMax {
			t.Fatalf("combination with classMin >= classMax leaked: %+v", c)
		}
		if c.ClassRef != base.ClassRef {
			t.Fatalf("untuned dimensions must keep their base value")
		}
	}
}

func TestGridCombinationsDefaults(t *testing.T) {
	base := DefaultHyperparameters()
	combos := Grid{K: []float64{10, 20}}.Combinations(base)
	if len(combos) != 2 {
		t.Fatalf("expected 2 combinations, got %d", len(combos))
	}
	if combos[0].DecayDays != base.DecayDays {
		t.Fatalf("empty dimension must fall back to the base value")
	}
}

func TestAutoTuneRunsToCompletion(t *testing.T) {
	m, start, end := tuningFixture(t)

	snap, err := m.Start(start, end, Grid{K: []float64{8, 16, 32}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != JobRunning || snap.Total != 3 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	final := waitForTerminal(t, m, snap.ID)
	if final.State != JobDone {
		t.Fatalf("expected done, got %s", final.State)
	}
	if final.Processed != 3 || len(final.Results) != 3 {
		t.Fatalf("expected 3 processed results, got %d/%d", final.Processed, len(final.Results))
	}
	if final.Best == nil {
		t.Fatalf("expected a best result")
	}
	for _, r := range final.Results {
		if r.MeanRMSE < final.Best.MeanRMSE {
			t.Fatalf("best is not the lowest RMSE")
		}
	}
}

func TestAutoTuneSingleRunningJob(t *testing.T) {
	m, start, end := tuningFixture(t)
	m.stepDelay = 50 * time.Millisecond

	big := Grid{K: []float64{4, 8, 12, 16, 20, 24, 28, 32}}
	snap, err := m.Start(start, end, big)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Start(start, end, big); !errors.Is(err, models.ErrJobConflict) {
		t.Fatalf("expected ErrJobConflict, got %v", err)
	}

	if err := m.Cancel(snap.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	final := waitForTerminal(t, m, snap.ID)
	if final.State != JobCancelled {
		t.Fatalf("expected cancelled, got %s", final.State)
	}
	if final.Processed >= final.Total {
		t.Fatalf("cancelled job should stop before finishing the grid")
	}

	// A new job may start once the previous one is terminal.
	again, err := m.Start(start, end, Grid{K: []float64{16}})
	if err != nil {
		t.Fatalf("expected restart after cancellation, got %v", err)
	}
	waitForTerminal(t, m, again.ID)
}

func TestAutoTuneCancelGuards(t *testing.T) {
	m, start, end := tuningFixture(t)

	if err := m.Cancel(uuid.New()); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	snap, err := m.Start(start, end, Grid{K: []float64{16}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForTerminal(t, m, snap.ID)
	if err := m.Cancel(snap.ID); !errors.Is(err, models.ErrJobNotRunning) {
		t.Fatalf("expected ErrJobNotRunning for finished job, got %v", err)
	}
}

func TestAutoTuneEmptyGrid(t *testing.T) {
	m, start, end := tuningFixture(t)
	if _, err := m.Start(start, end, Grid{ClassMin: []float64{2.0}, ClassMax: []float64{1.0}}); !errors.Is(err, models.ErrEmptyGrid) {
		t.Fatalf("expected ErrEmptyGrid, got %v", err)
	}
	if _, err := m.Snapshot(uuid.New()); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound for unknown job, got %v", err)
	}
}
