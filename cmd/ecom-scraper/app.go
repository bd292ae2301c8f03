package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/ecommerce-scraper/internal/browser"
	"github.com/maltedev/ecommerce-scraper/internal/config"
	"github.com/maltedev/ecommerce-scraper/internal/database"
	"github.com/maltedev/ecommerce-scraper/internal/events"
	"github.com/maltedev/ecommerce-scraper/internal/export"
	"github.com/maltedev/ecommerce-scraper/internal/jobs"
	"github.com/maltedev/ecommerce-scraper/internal/metrics"
	"github.com/maltedev/ecommerce-scraper/internal/queue"
	"github.com/maltedev/ecommerce-scraper/internal/scraper"
	"github.com/maltedev/ecommerce-scraper/internal/storage"
)

// App holds the wired dependencies shared by every command.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *storage.ArtifactStore
	Scrapers *scraper.Registry
	Runner   *jobs.Runner
	Queue    *queue.InMemoryQueue
	// Relay is set when both the archive and Redis are enabled.
	Relay    *database.Relay

	closers []func()
}

// NewApp loads configuration and wires every dependency of the job runner.
func NewApp(ctx context.Context, envFile string) (*App, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	metrics.Init()

	app := &App{Config: cfg, Logger: logger}

	store, err := storage.NewArtifactStore(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	app.Store = store

	var client *redis.Client
	var publisher jobs.Publisher
	if cfg.Redis.Enabled {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		pub := events.NewPublisher(client, cfg.Redis.Stream, logger)
		app.closers = append(app.closers, func() { pub.Close() })
		publisher = pub
		logger.Info("job events enabled", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	}

	var recorders []export.Recorder
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.closers = append(app.closers, db.Close)

		results := database.NewResultStore(db, logger)
		if client != nil {
			results.EnableOutbox(cfg.Redis.BatchStream)
			app.Relay = database.NewRelay(db, client, logger, database.RelayConfig{
				PollInterval: cfg.Database.OutboxPollInterval,
				BatchSize:    cfg.Database.OutboxBatchSize,
			})
		}
		if err := results.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, err
		}
		recorders = append(recorders, results)
		logger.Info("result archive enabled", "host", cfg.Database.Host, "database", cfg.Database.DBName, "outbox", app.Relay != nil)
	}

	sink := export.NewSink(store, logger, recorders...)
	launcher := browser.NewPlaywrightLauncher(browserOptions(cfg), logger)

	overrides := scraper.Overrides{
		NavTimeout:     cfg.Scraper.NavTimeout,
		AuthWait:       cfg.Scraper.AuthWait,
		MaxReviewPages: cfg.Scraper.MaxReviewPages,
	}
	profiles := scraper.DefaultProfiles()
	for i := range profiles {
		profiles[i] = overrides.Apply(profiles[i])
	}
	app.Scrapers = scraper.NewRegistry(profiles, launcher, sink, logger)

	app.Queue = queue.NewInMemoryQueue()
	app.Runner = jobs.NewRunner(jobs.NewMemoryRegistry(), app.Scrapers, app.Queue, publisher, cfg.Scraper.Workers, logger)

	return app, nil
}

// Close releases external connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func browserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Scraper.NavTimeout
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.ProxyServer = cfg.Browser.ProxyServer
	if cfg.Browser.UserAgent != "" {
		opts.UserAgent = cfg.Browser.UserAgent
	}
	return opts
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
