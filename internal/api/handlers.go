package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/evaluation"
	"github.com/yourusername/trotrank/internal/guidance"
	"github.com/yourusername/trotrank/internal/models"
	"github.com/yourusername/trotrank/internal/rating"
	"github.com/yourusername/trotrank/internal/repository"
)

const dateLayout = "2006-01-02"

// Handlers holds the services backing the API endpoints
type Handlers struct {
	guidance  *guidance.Service
	pipeline  *rating.Pipeline
	ratings   repository.RatingRepository
	contests  repository.ContestRepository
	harnesses map[models.CompetitorType]*evaluation.Harness
	tuner     *evaluation.Manager
	logger    *logrus.Logger
}

// NewHandlers creates the handler set for the API server
func NewHandlers(
	guidanceSvc *guidance.Service,
	pipeline *rating.Pipeline,
	ratings repository.RatingRepository,
	contests repository.ContestRepository,
	harnesses map[models.CompetitorType]*evaluation.Harness,
	tuner *evaluation.Manager,
	log *logrus.Logger,
) *Handlers {
	return &Handlers{
		guidance:  guidanceSvc,
		pipeline:  pipeline,
		ratings:   ratings,
		contests:  contests,
		harnesses: harnesses,
		tuner:     tuner,
		logger:    log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain sentinel errors onto HTTP status codes
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidID),
		errors.Is(err, models.ErrInvalidContest),
		errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, models.ErrEmptyGrid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrJobConflict), errors.Is(err, models.ErrJobNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// NotFound handles unknown routes
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}

func parseCompetitorType(raw string) (models.CompetitorType, error) {
	switch raw {
	case "", string(models.CompetitorHorse):
		return models.CompetitorHorse, nil
	case string(models.CompetitorDriver):
		return models.CompetitorDriver, nil
	default:
		return "", errors.New("competitor type must be horse or driver")
	}
}

// GetGuidance handles GET /api/v1/races/{raceID}/guidance
func (h *Handlers) GetGuidance(w http.ResponseWriter, r *http.Request) {
	raceID, err := uuid.Parse(mux.Vars(r)["raceID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid race id")
		return
	}

	ctype, err := parseCompetitorType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overrides, err := parseOverrides(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.guidance.ForContest(r.Context(), raceID, ctype, overrides)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetRating handles GET /api/v1/ratings/{type}/{competitorID}
func (h *Handlers) GetRating(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ctype, err := parseCompetitorType(vars["type"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	competitorID, err := uuid.Parse(vars["competitorID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid competitor id")
		return
	}

	career, err := h.ratings.Get(r.Context(), models.TrackCareer, ctype, competitorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	form, err := h.ratings.Get(r.Context(), models.TrackForm, ctype, competitorID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*models.RatingEntry{
		"career": career,
		"form":   form,
	})
}

// Recompute handles POST /api/v1/ratings/recompute
func (h *Handlers) Recompute(w http.ResponseWriter, r *http.Request) {
	ctype, err := parseCompetitorType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.pipeline.Recompute(r.Context(), ctype)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ProcessContest handles POST /api/v1/ratings/contests/{contestID}
func (h *Handlers) ProcessContest(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuid.Parse(mux.Vars(r)["contestID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contest id")
		return
	}

	ctype, err := parseCompetitorType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contest, err := h.contests.GetByID(r.Context(), contestID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.pipeline.ProcessContest(r.Context(), ctype, contest); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

type evaluationRequest struct {
	CompetitorType string                     `json:"competitor_type"`
	StartDate      string                     `json:"start_date"`
	EndDate        string                     `json:"end_date"`
	Params         *evaluation.Hyperparameters `json:"params,omitempty"`
}

func (req *evaluationRequest) window() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date must not precede start_date")
	}
	return start, end, nil
}

// RunEvaluation handles POST /api/v1/evaluation/run
func (h *Handlers) RunEvaluation(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctype, err := parseCompetitorType(req.CompetitorType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start, end, err := req.window()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	harness, ok := h.harnesses[ctype]
	if !ok {
		writeError(w, http.StatusBadRequest, "no evaluation harness for competitor type")
		return
	}

	params := evaluation.DefaultHyperparameters()
	if req.Params != nil {
		params = *req.Params
	}

	result, err := harness.EvaluateElo(r.Context(), start, end, params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type autoTuneRequest struct {
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Grid      evaluation.Grid `json:"grid"`
}

// StartAutoTune handles POST /api/v1/evaluation/autotune
func (h *Handlers) StartAutoTune(w http.ResponseWriter, r *http.Request) {
	var req autoTuneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	window := evaluationRequest{StartDate: req.StartDate, EndDate: req.EndDate}
	start, end, err := window.window()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.tuner.Start(start, end, req.Grid)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, snapshot)
}

// AutoTuneStatus handles GET /api/v1/evaluation/autotune/{jobID}
func (h *Handlers) AutoTuneStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["jobID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	snapshot, err := h.tuner.Snapshot(jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// CancelAutoTune handles DELETE /api/v1/evaluation/autotune/{jobID}
func (h *Handlers) CancelAutoTune(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["jobID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.tuner.Cancel(jobID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// parseOverrides reads guidance knob overrides from query parameters
func parseOverrides(r *http.Request) (*guidance.Overrides, error) {
	q := r.URL.Query()
	o := &guidance.Overrides{}
	found := false

	floatParam := func(name string, dst **float64) error {
		raw := q.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.New(name + " must be a number")
		}
		*dst = &v
		found = true
		return nil
	}

	intParam := func(name string, dst **int) error {
		raw := q.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New(name + " must be an integer")
		}
		*dst = &v
		found = true
		return nil
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"elo_divisor", &o.EloDivisor},
		{"bonus_shoe", &o.BonusShoe},
		{"bonus_favorite_track", &o.BonusFavoriteTrack},
		{"bonus_favorite_spar", &o.BonusFavoriteSpar},
		{"bonus_track_favorite_spar", &o.BonusTrackFavoriteSpar},
		{"handicap_divisor", &o.HandicapDivisor},
		{"a_within", &o.AWithin},
		{"b_within", &o.BWithin},
		{"form_elo_eps", &o.FormEloEps},
		{"plus_upgrade_min", &o.PlusUpgradeMin},
		{"softmax_beta", &o.SoftmaxBeta},
		{"z_gap_max", &o.ZGapMax},
		{"prob_coverage_min", &o.ProbCoverageMin},
	}
	for _, f := range floats {
		if err := floatParam(f.name, f.dst); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		name string
		dst  **int
	}{
		{"class_top_k", &o.ClassTopK},
		{"top_n_base", &o.TopNBase},
		{"top_n_max", &o.TopNMax},
	}
	for _, i := range ints {
		if err := intParam(i.name, i.dst); err != nil {
			return nil, err
		}
	}

	if raw := q.Get("tier_basis"); raw != "" {
		basis := guidance.TierBasis(raw)
		if basis != guidance.BasisComposite && basis != guidance.BasisRating {
			return nil, errors.New("tier_basis must be composite or rating")
		}
		o.TierBasis = &basis
		found = true
	}

	if !found {
		return nil, nil
	}
	return o, nil
}
