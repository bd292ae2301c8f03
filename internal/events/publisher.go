package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	// EventTypeScrapeJobFinished is published once per job when it reaches a terminal state.
	EventTypeScrapeJobFinished EventType = "SCRAPE_JOB_FINISHED"
)

const DefaultStream = "stream:scrape_jobs"

// RedisClient is the slice of *redis.Client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// JobFinishedPayload describes a finished scrape job.
type JobFinishedPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
	Platform  string    `json:"platform"`
	Flow      string    `json:"flow"`
	Status    string    `json:"status"`
	Succeeded bool      `json:"succeeded"`
	Filename  string    `json:"filename,omitempty"`
	Duration  float64   `json:"duration_seconds"`
}

// Publisher appends job events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishJobFinished fills missing metadata and appends the event.
func (p *Publisher) PublishJobFinished(ctx context.Context, payload *JobFinishedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeScrapeJobFinished)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"event_type": payload.EventType,
			"job_id":     payload.JobID,
			"platform":   payload.Platform,
			"timestamp":  fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"stream", p.stream,
		"stream_id", id,
		"job_id", payload.JobID,
		"event_type", payload.EventType,
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
