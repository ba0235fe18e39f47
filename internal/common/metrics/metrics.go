// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RankingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_requests_total",
			Help: "Total number of ranking requests",
		},
		[]string{"served_by"},
	)

	RankingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_request_duration_seconds",
			Help:    "End-to-end ranking request duration in seconds",
			Buckets: []float64{0.005, 0.010, 0.025, 0.050, 0.100, 0.150, 0.250, 0.500},
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	MLScoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ml_score_duration_seconds",
			Help:    "ML ranker invocation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.150},
		},
	)

	MLScoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_score_errors_total",
			Help: "Total number of failed ML ranker invocations",
		},
		[]string{"error_code"},
	)

	MLHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ml_ranker_healthy",
			Help: "Whether the ML ranker currently reports healthy (1) or not (0)",
		},
	)

	FallbackTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_fallback_transitions_total",
			Help: "Total number of ERROR_FALLBACK transitions in the orchestrator",
		},
		[]string{"error_code"},
	)

	DegradedVectors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feature_vectors_degraded_total",
			Help: "Total number of feature vectors built without full store access",
		},
	)

	FeedbackDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_events_dropped_total",
			Help: "Total number of feedback events dropped due to queue overflow",
		},
	)

	FeedbackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedback_queue_depth",
			Help: "Current number of feedback events waiting to be drained",
		},
	)

	FeedbackPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_events_persisted_total",
			Help: "Total number of feedback events written to the event store",
		},
	)
)
