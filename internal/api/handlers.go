package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/ecommerce-scraper/internal/models"
	"github.com/maltedev/ecommerce-scraper/internal/scraper"
	"github.com/maltedev/ecommerce-scraper/internal/storage"
)

const invalidPlatform = "Invalid Platform"

// Jobs is the part of the job runner the HTTP layer needs.
type Jobs interface {
	Submit(target models.Target) (string, error)
	Status(id string) models.Status
}

// Platforms validates platform names.
type Platforms interface {
	Get(platform string) (scraper.Scraper, error)
	Platforms() []string
}

// Artifacts serves finished exports.
type Artifacts interface {
	Open(name string) (*os.File, storage.Artifact, error)
	List() ([]storage.Artifact, error)
}

// Outbox reports the delivery backlog of archived-batch events.
type Outbox interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

const (
	pendingWarnThreshold     = 1000
	deadLetterErrorThreshold = 100
)

type Handlers struct {
	jobs      Jobs
	platforms Platforms
	artifacts Artifacts
	outbox    Outbox
	logger    *slog.Logger
}

func NewHandlers(jobs Jobs, platforms Platforms, artifacts Artifacts, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:      jobs,
		platforms: platforms,
		artifacts: artifacts,
		logger:    logger.With("component", "api"),
	}
}

// WithOutbox adds outbox backlog figures to the health report.
func (h *Handlers) WithOutbox(o Outbox) *Handlers {
	h.outbox = o
	return h
}

// StartJobResponse is returned by the three start endpoints.
type StartJobResponse struct {
	JobID string `json:"job_id"`
}

// StartScrape starts a listing search. Form fields: platform, url.
func (h *Handlers) StartScrape(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, func(platform string) models.Target {
		return models.NewSearchTarget(platform, r.FormValue("url"))
	})
}

// StartBulkScrape starts a direct-URL batch. Form fields: platform, urls.
func (h *Handlers) StartBulkScrape(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, func(platform string) models.Target {
		return models.NewBulkTarget(platform, r.FormValue("urls"))
	})
}

// StartReviewScrape starts review pagination. Form fields: platform, url.
func (h *Handlers) StartReviewScrape(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, func(platform string) models.Target {
		return models.NewReviewTarget(platform, r.FormValue("url"))
	})
}

func (h *Handlers) start(w http.ResponseWriter, r *http.Request, build func(platform string) models.Target) {
	if err := r.ParseForm(); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	platform := r.FormValue("platform")
	if _, err := h.platforms.Get(platform); err != nil {
		h.logger.Warn("rejected job request", "platform", platform, "path", r.URL.Path)
		h.respondError(w, http.StatusBadRequest, invalidPlatform)
		return
	}

	target := build(platform)
	id, err := h.jobs.Submit(target)
	if err != nil {
		h.logger.Error("failed to submit job", "error", err, "platform", target.Platform(), "flow", target.Flow())
		h.respondError(w, http.StatusServiceUnavailable, "failed to start job")
		return
	}

	h.respondJSON(w, http.StatusOK, StartJobResponse{JobID: id})
}

// GetStatus returns the job record; unknown ids report {"status":"Unknown","done":true}.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.Status(chi.URLParam(r, "jobID")))
}

// Download streams an exported file as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, artifact, err := h.artifacts.Open(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		h.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "file not found")
		return
	case err != nil:
		h.logger.Error("failed to open artifact", "error", err, "filename", name)
		h.respondError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	http.ServeContent(w, r, artifact.Name, artifact.UpdatedAt, f)
}

// ListDownloads lists the exported files.
func (h *Handlers) ListDownloads(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.artifacts.List()
	if err != nil {
		h.logger.Error("failed to list artifacts", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	if artifacts == nil {
		artifacts = []storage.Artifact{}
	}
	h.respondJSON(w, http.StatusOK, artifacts)
}

// Health reports liveness, the configured platforms and, when archiving is
// enabled, the outbox backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "ok",
		"platforms": h.platforms.Platforms(),
	}
	status := http.StatusOK

	if h.outbox != nil {
		pending, perr := h.outbox.GetPendingCount(r.Context())
		dead, derr := h.outbox.GetDeadLetterCount(r.Context())
		health["outbox"] = map[string]interface{}{
			"pending":     pending,
			"dead_letter": dead,
		}

		switch {
		case perr != nil || derr != nil:
			h.logger.Warn("failed to read outbox backlog", "error", errors.Join(perr, derr))
			health["status"] = "warning"
			health["message"] = "Outbox backlog unavailable"
		case dead > deadLetterErrorThreshold:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case pending > pendingWarnThreshold:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
	}

	h.respondJSON(w, status, health)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
