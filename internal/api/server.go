// Package api exposes the ranking service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/trotrank/internal/config"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Server represents the API HTTP server
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
	logger   *logrus.Logger
	cfg      config.ServerConfig
}

// NewServer creates a new API server instance
func NewServer(cfg config.ServerConfig, handlers *Handlers, log *logrus.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		router:   router,
		handlers: handlers,
		logger:   log,
		cfg:      cfg,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router returns the configured router, exposed for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/races/{raceID}/guidance", s.handlers.GetGuidance).Methods("GET")

	api.HandleFunc("/ratings/recompute", s.handlers.Recompute).Methods("POST")
	api.HandleFunc("/ratings/contests/{contestID}", s.handlers.ProcessContest).Methods("POST")
	api.HandleFunc("/ratings/{type}/{competitorID}", s.handlers.GetRating).Methods("GET")

	api.HandleFunc("/evaluation/run", s.handlers.RunEvaluation).Methods("POST")
	api.HandleFunc("/evaluation/autotune", s.handlers.StartAutoTune).Methods("POST")
	api.HandleFunc("/evaluation/autotune/{jobID}", s.handlers.AutoTuneStatus).Methods("GET")
	api.HandleFunc("/evaluation/autotune/{jobID}", s.handlers.CancelAutoTune).Methods("DELETE")

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// Start begins serving requests and blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("API server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}

// requestIDMiddleware adds a unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs all requests with method, path, status and duration
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": r.Context().Value(requestIDKey),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     wrapper.statusCode,
			"duration":   time.Since(start).String(),
			"remote":     r.RemoteAddr,
		}).Info("Request handled")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// responseWrapper captures the response status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
