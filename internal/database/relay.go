package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relaySource = "ecommerce-scraper"

var errInvalidPayload = errors.New("invalid batch payload")

// RedisClient is the slice of *redis.Client the relay needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// OutboxRepo is the outbox surface used by the relay.
type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
}

// Relay delivers archived-batch events from the outbox table to Redis.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func NewRelay(db *DB, client RedisClient, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		redis:     client,
		outbox:    NewOutboxRepository(db),
		logger:    logger.With("component", "outbox_relay"),
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
	}
}

// Start drains the outbox once, then on every tick until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.relayPending(ctx); err != nil {
			r.logger.Error("outbox sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// relayPending delivers one page of due events. Per-event failures are
// recorded on the row and do not stop the sweep.
func (r *Relay) relayPending(ctx context.Context) error {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	failed := 0
	for _, event := range events {
		if err := r.deliver(ctx, event); err != nil {
			failed++
			r.logger.Warn("batch event not delivered", "event_id", event.ID, "job_id", event.AggregateID, "attempt", event.RetryCount+1, "error", err)
		}
	}

	r.logger.Debug("outbox sweep finished", "delivered", len(events)-failed, "failed", failed)
	return nil
}

func (r *Relay) deliver(ctx context.Context, event *OutboxEvent) error {
	if err := r.publish(ctx, event); err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to record delivery failure", "event_id", event.ID, "error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}

	r.logger.Info("batch event delivered", "event_id", event.ID, "job_id", event.AggregateID, "stream", event.TargetStream)
	return nil
}

type envelopeMetadata struct {
	Source       string `json:"source"`
	OutboxID     string `json:"outbox_id"`
	RetryCount   int    `json:"retry_count"`
	TargetStream string `json:"target_stream"`
}

// envelope is the JSON carried in the "data" field of every stream entry.
type envelope struct {
	ID            string           `json:"id"`
	Type          string           `json:"type"`
	AggregateType string           `json:"aggregate_type"`
	AggregateID   string           `json:"aggregate_id"`
	Timestamp     string           `json:"timestamp"`
	Payload       json.RawMessage  `json:"payload"`
	Metadata      envelopeMetadata `json:"metadata"`
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	if !json.Valid(event.Payload) {
		return errInvalidPayload
	}

	data, err := json.Marshal(envelope{
		ID:            event.ID.String(),
		Type:          event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Timestamp:     event.CreatedAt.UTC().Format(time.RFC3339),
		Payload:       event.Payload,
		Metadata: envelopeMetadata{
			Source:       relaySource,
			OutboxID:     event.ID.String(),
			RetryCount:   event.RetryCount,
			TargetStream: event.TargetStream,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	err = r.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: map[string]interface{}{
			"data":           string(data),
			"event_type":     event.EventType,
			"timestamp":      strconv.FormatInt(event.CreatedAt.UnixNano(), 10),
			"original_id":    event.ID.String(),
			"aggregate_id":   event.AggregateID,
			"aggregate_type": event.AggregateType,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// GetPendingCount counts events still waiting for delivery, retries included.
func (r *Relay) GetPendingCount(ctx context.Context) (int64, error) {
	return r.outbox.CountByStatus(ctx, OutboxStatusPending, OutboxStatusFailed)
}

// GetDeadLetterCount counts events parked after MaxRetryCount failures.
func (r *Relay) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return r.outbox.CountByStatus(ctx, OutboxStatusDeadLetter)
}
