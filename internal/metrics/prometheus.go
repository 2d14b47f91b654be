package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathrag_client_request_attempts_total",
			Help: "HTTP attempts made against the solving service",
		},
		[]string{"endpoint", "outcome"},
	)

	RequestRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathrag_client_request_retries_total",
			Help: "Retries scheduled after a failed attempt",
		},
		[]string{"endpoint"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathrag_client_request_duration_seconds",
			Help:    "Time from first attempt to final resolution, backoff included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"endpoint", "outcome"},
	)

	SolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathrag_solve_total",
			Help: "Completed solve requests by outcome",
		},
		[]string{"outcome"},
	)

	SolutionConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mathrag_solution_confidence",
			Help:    "Confidence reported for resolved solutions",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"mode"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathrag_feedback_total",
			Help: "Feedback submissions by assessment and outcome",
		},
		[]string{"assessment", "outcome"},
	)

	StaleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mathrag_stale_responses_total",
			Help: "Completions discarded because the session had moved on",
		},
		[]string{"session"},
	)

	LiveViewers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mathrag_live_viewers",
			Help: "Open websocket connections receiving view updates",
		},
	)
)

var registerOnce sync.Once

// Init registers every collector on the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestAttempts)
		prometheus.MustRegister(RequestRetries)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(SolveTotal)
		prometheus.MustRegister(SolutionConfidence)
		prometheus.MustRegister(FeedbackTotal)
		prometheus.MustRegister(StaleResponses)
		prometheus.MustRegister(LiveViewers)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
