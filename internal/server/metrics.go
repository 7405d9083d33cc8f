package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftlog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liftlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liftlog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	workoutSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftlog_workout_saves_total",
			Help: "Workout session save attempts by outcome",
		},
		[]string{"status"},
	)

	savedSetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liftlog_saved_sets_total",
			Help: "Set sessions written by successful saves",
		},
	)

	importedSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liftlog_imported_sessions_total",
			Help: "Workout sessions seen by imports, by source and outcome",
		},
		[]string{"source", "outcome"},
	)
)

// Metrics records request counts, latency and in-flight requests per chi
// route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func recordSave(err error, sets int) {
	if err != nil {
		workoutSavesTotal.WithLabelValues("error").Inc()
		return
	}
	workoutSavesTotal.WithLabelValues("success").Inc()
	savedSetsTotal.Add(float64(sets))
}

func recordImport(source string, inserted, skipped int) {
	importedSessionsTotal.WithLabelValues(source, "inserted").Add(float64(inserted))
	importedSessionsTotal.WithLabelValues(source, "skipped").Add(float64(skipped))
}
