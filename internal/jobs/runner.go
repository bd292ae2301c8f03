package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/ecommerce-scraper/internal/events"
	"github.com/maltedev/ecommerce-scraper/internal/metrics"
	"github.com/maltedev/ecommerce-scraper/internal/models"
	"github.com/maltedev/ecommerce-scraper/internal/queue"
	"github.com/maltedev/ecommerce-scraper/internal/scraper"
)

// Scrapers resolves a platform name to its scraper.
type Scrapers interface {
	Get(platform string) (scraper.Scraper, error)
}

// Publisher announces finished jobs.
type Publisher interface {
	PublishJobFinished(ctx context.Context, payload *events.JobFinishedPayload) error
}

const noResults = "Finished without results."

// Runner owns the job lifecycle: creation, queueing, execution and the
// terminal record.
type Runner struct {
	registry  Registry
	scrapers  Scrapers
	queue     queue.Queue
	publisher Publisher
	workers   int
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewRunner creates a runner with workers concurrent jobs. publisher may be nil.
func NewRunner(registry Registry, scrapers Scrapers, q queue.Queue, publisher Publisher, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:  registry,
		scrapers:  scrapers,
		queue:     q,
		publisher: publisher,
		workers:   workers,
		logger:    logger.With("component", "job_runner"),
		now:       time.Now,
	}
}

// CreateJob registers a new Queued job and returns its id.
func (r *Runner) CreateJob() (string, error) {
	id := uuid.New().String()
	if err := r.registry.Create(id); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	return id, nil
}

// Run hands the job to the worker pool and returns immediately.
func (r *Runner) Run(id string, target models.Target) error {
	task := &queue.Task{JobID: id, Target: target, CreatedAt: r.now()}
	if err := r.queue.Push(task); err != nil {
		_ = r.registry.Update(id, models.Failed("Error: "+err.Error()))
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	metrics.IncQueuedJobs()
	r.logger.Info("job queued", "job_id", id, "platform", target.Platform(), "flow", target.Flow(), "queue_depth", r.queue.Size())
	return nil
}

// Submit creates and runs a job.
func (r *Runner) Submit(target models.Target) (string, error) {
	id, err := r.CreateJob()
	if err != nil {
		return "", err
	}
	if err := r.Run(id, target); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Runner) Status(id string) models.Status {
	return r.registry.Get(id)
}

// Start launches the workers. They stop when ctx is done or the queue closes.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("starting workers", "count", r.workers)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) worker(ctx context.Context, n int) {
	defer r.wg.Done()
	for {
		task, err := r.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				r.logger.Warn("worker stopped", "worker", n, "error", err)
			}
			return
		}
		metrics.DecQueuedJobs()
		r.execute(ctx, task)
	}
}

// RunSync runs one job inline and returns its terminal record.
func (r *Runner) RunSync(ctx context.Context, target models.Target) (string, models.Status, error) {
	id, err := r.CreateJob()
	if err != nil {
		return "", models.Status{}, err
	}
	r.execute(ctx, &queue.Task{JobID: id, Target: target, CreatedAt: r.now()})
	return id, r.registry.Get(id), nil
}

// execute runs a task to a terminal record. Nothing escapes it.
func (r *Runner) execute(ctx context.Context, task *queue.Task) {
	start := r.now()
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	logger := r.logger.With("job_id", task.JobID, "platform", task.Target.Platform(), "flow", task.Target.Flow())
	logger.Info("job started")

	result, err := r.dispatch(ctx, task, logger)
	final := terminal(result, err)
	if err != nil {
		logger.Error("job failed", "error", err)
	}

	if uerr := r.registry.Update(task.JobID, final); uerr != nil && !errors.Is(uerr, ErrJobFinished) {
		logger.Error("failed to record terminal status", "error", uerr)
	}

	status := r.registry.Get(task.JobID)
	duration := r.now().Sub(start)
	metrics.ObserveJob(task.Target.Platform(), string(task.Target.Flow()), status.Succeeded(), duration)
	logger.Info("job finished",
		"status", status.Status,
		"succeeded", status.Succeeded(),
		"items", result.Items,
		"dropped", result.Dropped,
		"duration", duration,
	)

	r.publish(ctx, task, status, duration, logger)
}

func (r *Runner) dispatch(ctx context.Context, task *queue.Task, logger *slog.Logger) (res scraper.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("job panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("unexpected failure: %v", p)
		}
	}()

	s, err := r.scrapers.Get(task.Target.Platform())
	if err != nil {
		return scraper.Result{}, err
	}
	return scraper.Dispatch(ctx, s, scraper.Job{ID: task.JobID, Target: task.Target}, r.Reporter(task.JobID))
}

// terminal maps a flow outcome to the final update.
func terminal(res scraper.Result, err error) models.Update {
	switch {
	case err != nil:
		return models.Failed("Error: " + err.Error())
	case res.Filename != "":
		return models.Finished(res.Filename)
	case res.Status != "":
		return models.Failed(res.Status)
	default:
		return models.Failed(noResults)
	}
}

func (r *Runner) publish(ctx context.Context, task *queue.Task, status models.Status, duration time.Duration, logger *slog.Logger) {
	if r.publisher == nil {
		return
	}

	payload := &events.JobFinishedPayload{
		JobID:     task.JobID,
		Platform:  task.Target.Platform(),
		Flow:      string(task.Target.Flow()),
		Status:    status.Status,
		Succeeded: status.Succeeded(),
		Duration:  duration.Seconds(),
	}
	if status.Filename != nil {
		payload.Filename = *status.Filename
	}

	if err := r.publisher.PublishJobFinished(context.WithoutCancel(ctx), payload); err != nil {
		logger.Warn("failed to publish job event", "error", err)
	}
}

// Reporter returns the progress sink bound to one job.
func (r *Runner) Reporter(id string) scraper.Reporter {
	return &jobReporter{id: id, registry: r.registry, logger: r.logger}
}

type jobReporter struct {
	id       string
	registry Registry
	logger   *slog.Logger
}

// Update never marks a job done; the runner owns terminal transitions.
func (j *jobReporter) Update(u models.Update) {
	u.Done = false
	u.Filename = nil
	if err := j.registry.Update(j.id, u); err != nil {
		j.logger.Debug("progress update rejected", "job_id", j.id, "error", err)
	}
}
