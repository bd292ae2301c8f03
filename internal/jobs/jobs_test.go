package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/ecommerce-scraper/internal/browser/browsertest"
	"github.com/maltedev/ecommerce-scraper/internal/events"
	"github.com/maltedev/ecommerce-scraper/internal/export"
	"github.com/maltedev/ecommerce-scraper/internal/models"
	"github.com/maltedev/ecommerce-scraper/internal/queue"
	"github.com/maltedev/ecommerce-scraper/internal/scraper"
	"github.com/maltedev/ecommerce-scraper/internal/storage"
)

func TestMemoryRegistryLifecycle(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Create("a"))
	assert.ErrorIs(t, reg.Create("a"), ErrJobExists)

	s := reg.Get("a")
	assert.Equal(t, models.StatusQueued, s.Status)
	assert.False(t, s.Done)

	require.NoError(t, reg.Update("a", models.Progressed("Processing 1/2...", 1, 2)))
	require.NoError(t, reg.Update("a", models.Message("Processing 2/2...")))
	s = reg.Get("a")
	assert.Equal(t, 1, *s.Progress, "unsupplied fields are kept")
	assert.Equal(t, "Processing 2/2...", s.Status)

	require.NoError(t, reg.Update("a", models.Finished("out.csv")))
	done := reg.Get("a")
	assert.True(t, done.Succeeded())

	assert.ErrorIs(t, reg.Update("a", models.Message("late")), ErrJobFinished)
	assert.ErrorIs(t, reg.Update("a", models.Failed("Error: late")), ErrJobFinished)
	assert.Equal(t, done, reg.Get("a"), "terminal record never changes")

	assert.ErrorIs(t, reg.Update("missing", models.Message("x")), ErrJobNotFound)
}

func TestMemoryRegistryUnknown(t *testing.T) {
	s := NewMemoryRegistry().Get("nope")
	assert.Equal(t, models.StatusUnknown, s.Status)
	assert.True(t, s.Done)
	assert.Nil(t, s.Filename)
}

func TestMemoryRegistryReadersGetCopies(t *testing.T) {
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Create("a"))
	require.NoError(t, reg.Update("a", models.Progressed("x", 1, 5)))

	s := reg.Get("a")
	*s.Progress = 42
	assert.Equal(t, 1, *reg.Get("a").Progress)
}

func TestMemoryRegistryConcurrentAccess(t *testing.T) {
	reg := NewMemoryRegistry()
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("job-%d", i)
		require.NoError(t, reg.Create(id))

		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 1; p <= 50; p++ {
				_ = reg.Update(id, models.Progressed("working", p, 50))
			}
			_ = reg.Update(id, models.Finished(id+".csv"))
		}()
		go func() {
			defer wg.Done()
			for p := 0; p < 50; p++ {
				s := reg.Get(id)
				if s.Progress != nil {
					assert.NotNil(t, s.Total, "progress and total are merged together")
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.True(t, reg.Get(fmt.Sprintf("job-%d", i)).Succeeded())
	}
}

type fakeScraper struct {
	run func(ctx context.Context, job scraper.Job, r scraper.Reporter) (scraper.Result, error)
}

func (f *fakeScraper) RunSearch(ctx context.Context, job scraper.Job, r scraper.Reporter) (scraper.Result, error) {
	return f.run(ctx, job, r)
}

func (f *fakeScraper) RunBulk(ctx context.Context, job scraper.Job, r scraper.Reporter) (scraper.Result, error) {
	return f.run(ctx, job, r)
}

func (f *fakeScraper) RunReviews(ctx context.Context, job scraper.Job, r scraper.Reporter) (scraper.Result, error) {
	return f.run(ctx, job, r)
}

type fakeScrapers map[string]scraper.Scraper

func (f fakeScrapers) Get(platform string) (scraper.Scraper, error) {
	s, ok := f[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", scraper.ErrUnknownPlatform, platform)
	}
	return s, nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJobFinished(ctx context.Context, payload *events.JobFinishedPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newRunner(s scraper.Scraper, publisher Publisher) (*Runner, *MemoryRegistry) {
	reg := NewMemoryRegistry()
	return NewRunner(reg, fakeScrapers{"amazon": s}, queue.NewInMemoryQueue(), publisher, 1, nil), reg
}

func TestRunSyncOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		run       func(context.Context, scraper.Job, scraper.Reporter) (scraper.Result, error)
		status    string
		succeeded bool
	}{
		{
			name:     "exported",
			platform: "amazon",
			run: func(_ context.Context, job scraper.Job, r scraper.Reporter) (scraper.Result, error) {
				r.Update(models.Progressed("Processing 1/1...", 1, 1))
				return scraper.Result{Filename: "amazon_search_x.csv", Items: 1}, nil
			},
			status:    models.StatusDone,
			succeeded: true,
		},
		{
			name:     "phase failure",
			platform: "amazon",
			run: func(context.Context, scraper.Job, scraper.Reporter) (scraper.Result, error) {
				return scraper.Result{}, scraper.ErrNoListings
			},
			status: "Error: timeout/no products",
		},
		{
			name:     "panic",
			platform: "amazon",
			run: func(context.Context, scraper.Job, scraper.Reporter) (scraper.Result, error) {
				panic("boom")
			},
			status: "Error: unexpected failure: boom",
		},
		{
			name:     "unsupported",
			platform: "amazon",
			run: func(context.Context, scraper.Job, scraper.Reporter) (scraper.Result, error) {
				return scraper.Result{Status: "Zepto does not have traditional public reviews."}, nil
			},
			status: "Zepto does not have traditional public reviews.",
		},
		{
			name:     "empty result",
			platform: "amazon",
			run: func(context.Context, scraper.Job, scraper.Reporter) (scraper.Result, error) {
				return scraper.Result{}, nil
			},
			status: noResults,
		},
		{
			name:     "unknown platform",
			platform: "myntra",
			run:      nil,
			status:   `Error: invalid platform: "myntra"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _ := newRunner(&fakeScraper{run: tt.run}, nil)

			_, s, err := runner.RunSync(context.Background(), models.NewSearchTarget(tt.platform, "x"))
			require.NoError(t, err)
			assert.True(t, s.Done)
			assert.Equal(t, tt.status, s.Status)
			assert.Equal(t, tt.succeeded, s.Succeeded())
			if !tt.succeeded {
				assert.Nil(t, s.Filename)
			}
		})
	}
}

func TestReporterCannotFinishJob(t *testing.T) {
	runner, reg := newRunner(nil, nil)
	id, err := runner.CreateJob()
	require.NoError(t, err)

	rep := runner.Reporter(id)
	rep.Update(models.Finished("sneaky.csv"))

	s := reg.Get(id)
	assert.False(t, s.Done)
	assert.Nil(t, s.Filename)
	assert.Equal(t, models.StatusDone, s.Status)
}

func TestRunnerWorkersProcessQueue(t *testing.T) {
	release := make(chan struct{})
	s := &fakeScraper{run: func(ctx context.Context, job scraper.Job, r scraper.Reporter) (scraper.Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return scraper.Result{}, ctx.Err()
		}
		return scraper.Result{Filename: job.ID + ".csv"}, nil
	}}

	pub := &MockPublisher{}
	pub.On("PublishJobFinished", mock.Anything, mock.MatchedBy(func(p *events.JobFinishedPayload) bool {
		return p.Succeeded && p.Platform == "amazon" && p.Flow == string(models.FlowBulk) && p.Filename == p.JobID+".csv"
	})).Return(nil).Twice()

	runner, reg := newRunner(s, pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)

	first, err := runner.Submit(models.NewBulkTarget("amazon", "/dp/1"))
	require.NoError(t, err)
	second, err := runner.Submit(models.NewBulkTarget("amazon", "/dp/2"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.Equal(t, models.StatusQueued, reg.Get(second).Status, "a single worker leaves the second job queued")

	close(release)
	require.Eventually(t, func() bool {
		return reg.Get(first).Done && reg.Get(second).Done
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, reg.Get(first).Succeeded())
	assert.True(t, reg.Get(second).Succeeded())

	cancel()
	runner.Wait()
	pub.AssertExpectations(t)
}

func TestRunAfterQueueClosedFailsJob(t *testing.T) {
	q := queue.NewInMemoryQueue()
	require.NoError(t, q.Close())
	reg := NewMemoryRegistry()
	runner := NewRunner(reg, fakeScrapers{}, q, nil, 1, nil)

	id, err := runner.CreateJob()
	require.NoError(t, err)
	err = runner.Run(id, models.NewSearchTarget("amazon", "x"))
	require.ErrorIs(t, err, queue.ErrQueueClosed)

	s := reg.Get(id)
	assert.True(t, s.Done)
	assert.Nil(t, s.Filename)
}

func TestPublisherFailureDoesNotAffectJob(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("PublishJobFinished", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	runner, _ := newRunner(&fakeScraper{run: func(context.Context, scraper.Job, scraper.Reporter) (scraper.Result, error) {
		return scraper.Result{Filename: "a.csv"}, nil
	}}, pub)

	_, s, err := runner.RunSync(context.Background(), models.NewSearchTarget("amazon", "x"))
	require.NoError(t, err)
	assert.True(t, s.Succeeded())
	pub.AssertExpectations(t)
}

func TestBulkJobWithFailingItemStillExports(t *testing.T) {
	profile := scraper.DefaultProfiles()[0]
	profile.Timing = scraper.Timing{}

	site := browsertest.NewSite()
	var input string
	for i := 1; i <= 5; i++ {
		u := fmt.Sprintf("https://www.amazon.in/dp/B00000000%d", i)
		site.Handle(u, `<html><body><span id="productTitle">Item</span><span class="a-price-whole">1,499</span></body></html>`)
		input += u + "\n"
	}
	site.Fail("https://www.amazon.in/dp/B000000003", errors.New("net::ERR_CONNECTION_RESET"))

	store, err := storage.NewArtifactStore(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	sink := export.NewSink(store, nil)

	reg := NewMemoryRegistry()
	scrapers := scraper.NewRegistry([]scraper.Profile{profile}, site, sink, nil)
	runner := NewRunner(reg, scrapers, queue.NewInMemoryQueue(), nil, 1, nil)

	id, s, err := runner.RunSync(context.Background(), models.NewBulkTarget("amazon", input))
	require.NoError(t, err)
	require.True(t, s.Succeeded(), s.Status)
	assert.Equal(t, export.BulkFilename("amazon", id), *s.Filename)
	assert.Equal(t, 5, *s.Progress)
	assert.Equal(t, 5, *s.Total)

	f, info, err := store.Open(*s.Filename)
	require.NoError(t, err)
	defer f.Close()
	assert.Positive(t, info.Size)
}
