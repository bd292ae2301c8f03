package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/maltedev/ecommerce-scraper/internal/api"
	"github.com/maltedev/ecommerce-scraper/internal/models"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewApp(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger

	app.Runner.Start(ctx)

	handlers := api.NewHandlers(app.Runner, app.Scrapers, app.Store, logger)
	if app.Relay != nil {
		handlers.WithOutbox(app.Relay)
		go func() {
			if err := app.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay stopped", "error", err)
			}
		}()
	}
	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(handlers, api.RouterOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr, "platforms", app.Scrapers.Platforms(), "workers", cfg.Scraper.Workers)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	app.Queue.Close()
	app.Runner.Wait()
	logger.Info("server stopped")
	return nil
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	return runOnce(ctx, cmd, models.NewSearchTarget(cmd.String("platform"), cmd.String("query")))
}

func bulkAction(ctx context.Context, cmd *cli.Command) error {
	text := cmd.String("urls")
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read url file: %w", err)
		}
		text = strings.Join([]string{text, string(data)}, "\n")
	}
	return runOnce(ctx, cmd, models.NewBulkTarget(cmd.String("platform"), text))
}

func reviewsAction(ctx context.Context, cmd *cli.Command) error {
	return runOnce(ctx, cmd, models.NewReviewTarget(cmd.String("platform"), cmd.String("url")))
}

// runOnce executes one job in the foreground and prints its final record.
func runOnce(ctx context.Context, cmd *cli.Command, target models.Target) error {
	app, err := NewApp(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Scrapers.Get(target.Platform()); err != nil {
		return err
	}

	id, status, err := app.Runner.RunSync(ctx, target)
	if err != nil {
		return err
	}

	out := struct {
		JobID string `json:"job_id"`
		models.Status
	}{JobID: id, Status: status}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if !status.Succeeded() {
		return fmt.Errorf("job %s did not produce a file: %s", id, status.Status)
	}
	app.Logger.Info("results written", "job_id", id, "path", filepath.Join(app.Store.Dir(), *status.Filename))
	return nil
}
