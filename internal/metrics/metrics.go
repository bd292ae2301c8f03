// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	jobDurationSeconds         *prometheus.HistogramVec
	activeJobs                 prometheus.Gauge
	queuedJobs                 prometheus.Gauge
	itemsTotal                 *prometheus.CounterVec
	pacingDelaySeconds         *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call repeatedly.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_jobs_total",
				Help: "Finished scrape jobs, labeled by platform, flow and outcome.",
			},
			[]string{"platform", "flow", "outcome"},
		)

		jobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_job_duration_seconds",
				Help:    "Wall-clock duration of scrape jobs.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
			},
			[]string{"platform", "flow"},
		)

		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_jobs",
				Help: "Jobs currently running in a worker.",
			},
		)

		queuedJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_queued_jobs",
				Help: "Jobs accepted but not yet picked up by a worker.",
			},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_items_total",
				Help: "Items processed, labeled by platform and outcome (ok or dropped).",
			},
			[]string{"platform", "outcome"},
		)

		pacingDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_pacing_delay_seconds",
				Help:    "Delays inserted between item fetches.",
				Buckets: []float64{0.5, 1, 2, 3, 4, 5, 10},
			},
			[]string{"platform"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func ObserveJob(platform, flow string, succeeded bool, duration time.Duration) {
	Init()
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	jobsTotal.WithLabelValues(platform, flow, outcome).Inc()
	jobDurationSeconds.WithLabelValues(platform, flow).Observe(duration.Seconds())
}

func ObserveItem(platform string, ok bool) {
	Init()
	outcome := "dropped"
	if ok {
		outcome = "ok"
	}
	itemsTotal.WithLabelValues(platform, outcome).Inc()
}

func ObservePacing(platform string, d time.Duration) {
	Init()
	pacingDelaySeconds.WithLabelValues(platform).Observe(d.Seconds())
}

func IncActiveJobs() { Init(); activeJobs.Inc() }
func DecActiveJobs() { Init(); activeJobs.Dec() }
func IncQueuedJobs() { Init(); queuedJobs.Inc() }
func DecQueuedJobs() { Init(); queuedJobs.Dec() }

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ObserveHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
