package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/trotrank/internal/config"
	"github.com/yourusername/trotrank/internal/evaluation"
	"github.com/yourusername/trotrank/internal/guidance"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
)

type memRatings struct {
	mu      sync.Mutex
	entries map[string]*models.RatingEntry
}

func newMemRatings() *memRatings {
	return &memRatings{entries: make(map[string]*models.RatingEntry)}
}

func ratingKey(track models.RatingTrack, ctype models.CompetitorType, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", track, ctype, id)
}

func (m *memRatings) Get(_ context.Context, track models.RatingTrack, ctype models.CompetitorType, id uuid.UUID) (*models.RatingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[ratingKey(track, ctype, id)]; ok {
		return e.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (m *memRatings) GetForCompetitors(ctx context.Context, track models.RatingTrack, ctype models.CompetitorType, ids []uuid.UUID) (map[uuid.UUID]*models.RatingEntry, error) {
	out := make(map[uuid.UUID]*models.RatingEntry)
	for _, id := range ids {
		if e, err := m.Get(ctx, track, ctype, id); err == nil {
			out[id] = e
		}
	}
	return out, nil
}

func (m *memRatings) GetAll(_ context.Context, track models.RatingTrack, ctype models.CompetitorType) (map[uuid.UUID]*models.RatingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]*models.RatingEntry)
	for _, e := range m.entries {
		if e.Track == track && e.CompetitorType == ctype {
			out[e.CompetitorID] = e.Clone()
		}
	}
	return out, nil
}

func (m *memRatings) BulkUpsert(_ context.Context, entries []*models.RatingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[ratingKey(e.Track, e.CompetitorType, e.CompetitorID)] = e.Clone()
	}
	return nil
}

type memContests struct {
	contests []*models.Contest
}

func (m *memContests) GetByID(_ context.Context, id uuid.UUID) (*models.Contest, error) {
	for _, c := range m.contests {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memContests) GetByDateRange(_ context.Context, start, end time.Time) ([]*models.Contest, error) {
	var out []*models.Contest
	for _, c := range m.contests {
		if !c.Date.Before(start) && !c.Date.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memContests) StreamOrderedByDate(_ context.Context, since *time.Time, fn func(*models.Contest) error) error {
	for _, c := range m.contests {
		if since != nil && c.Date.Before(*since) {
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ repository.RatingRepository  = (*memRatings)(nil)
	_ repository.ContestRepository = (*memContests)(nil)
)

func place(p int) *int { return &p }

func testContest(date time.Time, ids []uuid.UUID) *models.Contest {
	c := &models.Contest{ID: uuid.New(), Date: date, TrackCode: "S", Distance: 2140}
	for i, id := range ids {
		c.Entries = append(c.Entries, &models.ContestEntry{
			ContestID:    c.ID,
			CompetitorID: id,
			Placement:    place(i + 1),
			Distance:     2140,
			PostPosition: i + 1,
		})
	}
	return c
}

type fixture struct {
	server   *Server
	contests *memContests
	ratings  *memRatings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	base := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	contests := &memContests{}
	for week := 0; week < 4; week++ {
		contests.contests = append(contests.contests, testContest(base.AddDate(0, 0, 7*week), ids))
	}

	ratings := newMemRatings()

	pipeline, err := rating.NewPipeline(rating.DefaultPipelineConfig(), ratings, contests, log)
	require.NoError(t, err)

	_, err = pipeline.Recompute(context.Background(), models.CompetitorHorse)
	require.NoError(t, err)

	guidanceSvc, err := guidance.NewService(guidance.DefaultConfig(), rating.DefaultPipelineConfig().Seed, ratings, contests, log)
	require.NoError(t, err)

	horseHarness, err := evaluation.NewHarness(contests, models.CompetitorHorse, log)
	require.NoError(t, err)
	driverHarness, err := evaluation.NewHarness(contests, models.CompetitorDriver, log)
	require.NoError(t, err)

	tuner := evaluation.NewManager(horseHarness, time.Millisecond, log)

	handlers := NewHandlers(
		guidanceSvc,
		pipeline,
		ratings,
		contests,
		map[models.CompetitorType]*evaluation.Harness{
			models.CompetitorHorse:  horseHarness,
			models.CompetitorDriver: driverHarness,
		},
		tuner,
		log,
	)

	cfg := config.ServerConfig{Port: 0, ReadTimeoutSeconds: 5, WriteTimeoutSeconds: 5, ShutdownTimeoutSeconds: 1, HealthPort: 0}
	return &fixture{
		server:   NewServer(cfg, handlers, log),
		contests: contests,
		ratings:  ratings,
	}
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestGetGuidance(t *testing.T) {
	f := newFixture(t)
	raceID := f.contests.contests[3].ID

	rec := f.do(http.MethodGet, "/api/v1/races/"+raceID.String()+"/guidance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.RaceGuidance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Entries, 4)
	assert.Equal(t, 1, out.Entries[0].Rank)

	sum := 0.0
	for _, e := range out.Entries {
		sum += e.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestGetGuidanceWithOverrides(t *testing.T) {
	f := newFixture(t)
	raceID := f.contests.contests[3].ID

	rec := f.do(http.MethodGet, "/api/v1/races/"+raceID.String()+"/guidance?softmax_beta=0&tier_basis=rating", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out models.RaceGuidance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Entries, 4)
	for _, e := range out.Entries {
		assert.InDelta(t, 0.25, e.Probability, 1e-9)
	}
}

func TestGetGuidanceErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/races/not-a-uuid/guidance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/races/"+uuid.NewString()+"/guidance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	raceID := f.contests.contests[0].ID
	rec = f.do(http.MethodGet, "/api/v1/races/"+raceID.String()+"/guidance?elo_divisor=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/races/"+raceID.String()+"/guidance?tier_basis=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecompute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/ratings/recompute?type=horse", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary rating.RecomputeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 4, summary.Contests)
	assert.Equal(t, 4, summary.Applied)

	rec = f.do(http.MethodPost, "/api/v1/ratings/recompute?type=camel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessContest(t *testing.T) {
	f := newFixture(t)
	contestID := f.contests.contests[0].ID

	rec := f.do(http.MethodPost, "/api/v1/ratings/contests/"+contestID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/ratings/contests/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRating(t *testing.T) {
	f := newFixture(t)
	competitorID := f.contests.contests[0].Entries[0].CompetitorID

	rec := f.do(http.MethodGet, "/api/v1/ratings/horse/"+competitorID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]*models.RatingEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out["career"])
	assert.Equal(t, 4, out["career"].Races)

	rec = f.do(http.MethodGet, "/api/v1/ratings/horse/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunEvaluation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/evaluation/run", map[string]string{
		"start_date": "2024-03-01",
		"end_date":   "2024-04-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result evaluation.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 4, result.RacesEvaluated)

	rec = f.do(http.MethodPost, "/api/v1/evaluation/run", map[string]string{
		"start_date": "2024-04-01",
		"end_date":   "2024-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoTuneLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/evaluation/autotune", map[string]interface{}{
		"start_date": "2024-03-01",
		"end_date":   "2024-04-01",
		"grid":       map[string]interface{}{"k": []float64{8, 16}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var snap evaluation.JobSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Total)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = f.do(http.MethodGet, "/api/v1/evaluation/autotune/"+snap.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		if snap.State != evaluation.JobRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auto-tune job did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, evaluation.JobDone, snap.State)
	require.NotNil(t, snap.Best)

	// cancelling a finished job conflicts
	rec = f.do(http.MethodDelete, "/api/v1/evaluation/autotune/"+snap.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/evaluation/autotune/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAutoTuneEmptyGrid(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/evaluation/autotune", map[string]interface{}{
		"start_date": "2024-03-01",
		"end_date":   "2024-04-01",
		"grid": map[string]interface{}{
			"class_min": []float64{2.0},
			"class_max": []float64{1.0},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
