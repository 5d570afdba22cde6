// Package metrics provides the centralized Prometheus metrics registry
// for the rating and guidance service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	ContestsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "contests_processed_total",
		Help:      "Total number of contests run through the rating pipeline",
	}, []string{"type", "mode"})
	ContestsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "contests_skipped_total",
		Help:      "Total number of contests skipped for insufficient placements",
	})
	RecomputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "recomputes_total",
		Help:      "Total number of full rating recomputes",
	}, []string{"type"})
	GuidanceGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "guidance_generated_total",
		Help:      "Total number of race guidance payloads generated",
	})
	GuidanceCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "guidance_cache_hits_total",
		Help:      "Total number of guidance cache hits",
	})
	GuidanceCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "guidance_cache_misses_total",
		Help:      "Total number of guidance cache misses",
	})
	EvaluationRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "evaluation_runs_total",
		Help:      "Total number of offline evaluation runs",
	})
	AutoTuneStepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trotrank",
		Name:      "autotune_steps_total",
		Help:      "Total number of auto-tune grid cells evaluated",
	})
)

// Gauge metrics
var (
	AutoTuneActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trotrank",
		Name:      "autotune_active",
		Help:      "Whether an auto-tune job is currently running (0 or 1)",
	})
	RatedCompetitors = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "trotrank",
		Name:      "rated_competitors",
		Help:      "Number of competitors carried by the last full recompute",
	}, []string{"type"})
)

// Histogram metrics
var (
	RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trotrank",
		Name:      "recompute_duration_seconds",
		Help:      "Duration of full rating recomputes in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	GuidanceLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trotrank",
		Name:      "guidance_latency_seconds",
		Help:      "Latency of guidance generation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trotrank",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of offline evaluation runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(ContestsProcessedTotal)
		registry.MustRegister(ContestsSkippedTotal)
		registry.MustRegister(RecomputesTotal)
		registry.MustRegister(GuidanceGeneratedTotal)
		registry.MustRegister(GuidanceCacheHitsTotal)
		registry.MustRegister(GuidanceCacheMissesTotal)
		registry.MustRegister(EvaluationRunsTotal)
		registry.MustRegister(AutoTuneStepsTotal)

		registry.MustRegister(AutoTuneActive)
		registry.MustRegister(RatedCompetitors)

		registry.MustRegister(RecomputeDuration)
		registry.MustRegister(GuidanceLatency)
		registry.MustRegister(EvaluationDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordContestProcessed records a contest processed by the pipeline.
func RecordContestProcessed(ctype, mode string) {
	ContestsProcessedTotal.WithLabelValues(ctype, mode).Inc()
}

// RecordContestSkipped records a no-op contest.
func RecordContestSkipped() {
	ContestsSkippedTotal.Inc()
}

// RecordRecompute records a full recompute and its duration.
func RecordRecompute(ctype string, durationSeconds float64, competitors int) {
	RecomputesTotal.WithLabelValues(ctype).Inc()
	RecomputeDuration.Observe(durationSeconds)
	RatedCompetitors.WithLabelValues(ctype).Set(float64(competitors))
}

// RecordGuidanceGenerated records a freshly generated guidance payload.
func RecordGuidanceGenerated() {
	GuidanceGeneratedTotal.Inc()
}

// RecordGuidanceCacheHit records a guidance cache hit.
func RecordGuidanceCacheHit() {
	GuidanceCacheHitsTotal.Inc()
}

// RecordGuidanceCacheMiss records a guidance cache miss.
func RecordGuidanceCacheMiss() {
	GuidanceCacheMissesTotal.Inc()
}

// RecordGuidanceLatency records guidance generation latency.
func RecordGuidanceLatency(durationSeconds float64) {
	GuidanceLatency.Observe(durationSeconds)
}

// RecordEvaluationRun records an offline evaluation run and its duration.
func RecordEvaluationRun(durationSeconds float64) {
	EvaluationRunsTotal.Inc()
	EvaluationDuration.Observe(durationSeconds)
}

// RecordAutoTuneStep records one evaluated grid cell.
func RecordAutoTuneStep() {
	AutoTuneStepsTotal.Inc()
}

// SetAutoTuneActive flags whether an auto-tune job is running.
func SetAutoTuneActive(active bool) {
	if active {
		AutoTuneActive.Set(1)
		return
	}
	AutoTuneActive.Set(0)
}
