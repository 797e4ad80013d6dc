package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	opStart    = "start"
	opContinue = "continue"
	opGenerate = "generate"

	outcomeSuccess       = "success"
	outcomeUnparsed      = "unparsed"
	outcomeFallback      = "fallback"
	outcomeError         = "error"
	outcomeMisconfigured = "misconfigured"
)

var (
	// Registry holds every metric the service exposes on /metrics.
	Registry = prometheus.NewRegistry()

	generationRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathread_generation_requests_total",
			Help: "Total number of story generation calls, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	generationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathread_generation_duration_seconds",
			Help:    "Wall time of story generation calls including retries.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)
	generationFallbacks = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathread_generation_fallbacks_total",
			Help: "Total number of locally generated fallback turns, partitioned by reason.",
		},
		[]string{"operation", "reason"},
	)
	sessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pathread_sessions_active",
			Help: "Number of story sessions held in memory.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
