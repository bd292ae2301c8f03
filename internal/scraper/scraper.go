package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/ecommerce-scraper/internal/export"
	"github.com/maltedev/ecommerce-scraper/internal/models"
)

var (
	ErrNoListings      = errors.New("timeout/no products")
	ErrNoURLs          = errors.New("no valid URLs found")
	ErrNoProductID     = errors.New("no product id in URL")
	ErrAuthRequired    = errors.New("sign-in was not completed in time")
	ErrUnknownPlatform = errors.New("invalid platform")
)

// Reporter receives progress for exactly one job.
type Reporter interface {
	Update(u models.Update)
}

// Exporter turns a finished batch into a downloadable artifact.
type Exporter interface {
	Export(ctx context.Context, b export.Batch) (string, error)
}

// Job is the unit handed to a Scraper.
type Job struct {
	ID     string
	Target models.Target
}

// Result is the outcome of a flow that did not fail. An empty Filename means
// the flow completed without data and Status explains why.
type Result struct {
	Filename string
	Status   string
	Items    int
	Dropped  int
}

// Scraper runs the three flows for one platform.
type Scraper interface {
	RunSearch(ctx context.Context, job Job, r Reporter) (Result, error)
	RunBulk(ctx context.Context, job Job, r Reporter) (Result, error)
	RunReviews(ctx context.Context, job Job, r Reporter) (Result, error)
}

// Dispatch calls the flow named by the job's target.
func Dispatch(ctx context.Context, s Scraper, job Job, r Reporter) (Result, error) {
	switch job.Target.Flow() {
	case models.FlowSearch:
		return s.RunSearch(ctx, job, r)
	case models.FlowBulk:
		return s.RunBulk(ctx, job, r)
	case models.FlowReviews:
		return s.RunReviews(ctx, job, r)
	}
	return Result{}, fmt.Errorf("unknown flow %q", job.Target.Flow())
}

// safely runs fn and turns a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
