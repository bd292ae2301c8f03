package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maltedev/ecommerce-scraper/internal/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter mounts the front-end routes plus health and metrics.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Post("/start_scrape", h.StartScrape)
	r.Post("/start_bulk_scrape", h.StartBulkScrape)
	r.Post("/start_review_scrape", h.StartReviewScrape)
	r.Get("/status/{jobID}", h.GetStatus)
	r.Get("/download/{filename}", h.Download)
	r.Get("/downloads", h.ListDownloads)

	return r
}
