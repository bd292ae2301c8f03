package scraper

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/maltedev/ecommerce-scraper/internal/browser"
)

// Overrides adjusts the built-in timings from configuration. Zero values keep
// the profile defaults.
type Overrides struct {
	NavTimeout     time.Duration
	AuthWait       time.Duration
	MaxReviewPages int
}

// Apply returns p with the overrides applied.
func (o Overrides) Apply(p Profile) Profile {
	if o.NavTimeout > 0 {
		p.Timing.NavTimeout = o.NavTimeout
	}
	if o.AuthWait > 0 {
		p.Timing.AuthWait = o.AuthWait
	}
	if o.MaxReviewPages > 0 && p.Reviews != nil {
		rv := *p.Reviews
		rv.MaxPages = o.MaxReviewPages
		p.Reviews = &rv
	}
	return p
}

// Registry maps platform names to their pipelines.
type Registry struct {
	pipelines map[string]*Pipeline
}

func NewRegistry(profiles []Profile, launcher browser.Launcher, exporter Exporter, logger *slog.Logger) *Registry {
	r := &Registry{pipelines: make(map[string]*Pipeline, len(profiles))}
	for _, p := range profiles {
		r.pipelines[p.Name] = New(p, launcher, exporter, logger)
	}
	return r
}

// Get returns the scraper for platform, matched case-insensitively.
func (r *Registry) Get(platform string) (Scraper, error) {
	p, ok := r.pipelines[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return p, nil
}

// Platforms lists the registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
