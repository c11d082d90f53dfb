package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	// Matching outcome distributions
	SimilarityScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similarity_score",
			Help:    "Distribution of combined reviewer similarity scores [0,1]",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	AssignmentsSuggestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignments_suggested_total",
			Help: "Total number of suggested reviewer assignments",
		},
	)
	UnassignedPapersHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_unassigned_papers",
			Help:    "Papers left below the reviewer minimum per allocation run",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
	TopicExtractionDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "topic_extraction_degraded_total",
			Help: "Topic extraction calls that fell back to an empty result",
		},
	)

	FeatureGateDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feature_gate_denied_total",
			Help: "Requests rejected because the feature is disabled for the conference",
		},
		[]string{"feature"},
	)
	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per-conference limiter",
		},
		[]string{"feature"},
	)
	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Audit events by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)
	EmbeddingCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_requests_total",
			Help: "Embedding cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(SimilarityScoreHistogram)
	prometheus.MustRegister(AssignmentsSuggestedTotal)
	prometheus.MustRegister(UnassignedPapersHistogram)
	prometheus.MustRegister(TopicExtractionDegradedTotal)
	prometheus.MustRegister(FeatureGateDeniedTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(AuditEventsTotal)
	prometheus.MustRegister(EmbeddingCacheRequestsTotal)
	prometheus.MustRegister(SimilarityDriftGauge)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveSimilarity records a combined similarity score.
func ObserveSimilarity(score float64) {
	if score < 0 || score > 1 {
		return
	}
	SimilarityScoreHistogram.Observe(score)
	SimilarityDriftGauge.Set(similarityDrift.Record(score))
}

// ObserveAllocation records the outcome of one allocation run.
func ObserveAllocation(suggested, unassigned int) {
	AssignmentsSuggestedTotal.Add(float64(suggested))
	UnassignedPapersHistogram.Observe(float64(unassigned))
}

func TopicExtractionDegraded() { TopicExtractionDegradedTotal.Inc() }

func FeatureGateDenied(feature string) { FeatureGateDeniedTotal.WithLabelValues(feature).Inc() }

func RateLimited(feature string) { RateLimitedTotal.WithLabelValues(feature).Inc() }

// AuditEvent counts an audit write attempt; outcome is "ok" or "error".
func AuditEvent(sink, outcome string) { AuditEventsTotal.WithLabelValues(sink, outcome).Inc() }

// EmbeddingCache counts a lookup; layer is "memory" or "redis", result "hit" or "miss".
func EmbeddingCache(layer, result string) {
	EmbeddingCacheRequestsTotal.WithLabelValues(layer, result).Inc()
}
