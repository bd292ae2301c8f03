package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// MaxRetryCount is the number of failed deliveries before an event is parked.
	MaxRetryCount = 5

	EventTypeBatchArchived = "SCRAPE_BATCH_ARCHIVED"
	DefaultOutboxStream    = "stream:scrape_batches"
)

var ErrInvalidEvent = errors.New("invalid outbox event")

const createOutboxTable = `CREATE TABLE IF NOT EXISTS outbox_event (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	target_stream  TEXT NOT NULL,
	status         TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ,
	next_retry_at  TIMESTAMPTZ
)`

// OutboxEvent is a pending stream message written in the same transaction as
// the data it announces.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	TargetStream  string          `db:"target_stream"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	ErrorMessage  *string         `db:"error_message"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
}

// BatchArchivedPayload is the outbox payload of EventTypeBatchArchived.
type BatchArchivedPayload struct {
	JobID     string `json:"job_id"`
	Platform  string `json:"platform"`
	Flow      string `json:"flow"`
	Filename  string `json:"filename"`
	ItemCount int    `json:"item_count"`
}

type OutboxRepository struct {
	db  *DB
	now func() time.Time
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db, now: time.Now}
}

// InsertWithTx adds event to the outbox inside tx.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if event.AggregateType == "" || event.EventType == "" || len(event.Payload) == 0 {
		return ErrInvalidEvent
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.TargetStream == "" {
		event.TargetStream = DefaultOutboxStream
	}

	now := r.now().UTC()
	event.CreatedAt = now
	if event.NextRetryAt == nil {
		event.NextRetryAt = &now
	}

	query := `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			created_at, next_retry_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := tx.Exec(ctx, query,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		[]byte(event.Payload), event.TargetStream, event.Status, event.RetryCount,
		event.CreatedAt, event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// GetPending returns pending and retryable events that are due, oldest first.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status IN ($1, $2)
			AND next_retry_at <= $3
		ORDER BY created_at ASC
		LIMIT $4`

	rows, err := r.db.pool.Query(ctx, query,
		OutboxStatusPending, OutboxStatusFailed,
		r.now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		event := &OutboxEvent{}
		err := rows.Scan(
			&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
			&event.Payload, &event.TargetStream, &event.Status, &event.RetryCount,
			&event.ErrorMessage, &event.CreatedAt, &event.ProcessedAt, &event.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_event
		SET status = $1, processed_at = $2
		WHERE id = $3`

	result, err := r.db.pool.Exec(ctx, query, OutboxStatusProcessed, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// MarkFailed records the delivery error and schedules a retry, or parks the
// event once MaxRetryCount is reached.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, processErr error) error {
	var retryCount int
	err := r.db.pool.QueryRow(ctx,
		"SELECT retry_count FROM outbox_event WHERE id = $1", id).Scan(&retryCount)
	if err != nil {
		return fmt.Errorf("failed to get retry count: %w", err)
	}

	retryCount++
	status := OutboxStatusFailed
	if retryCount >= MaxRetryCount {
		status = OutboxStatusDeadLetter
	}

	query := `
		UPDATE outbox_event
		SET status = $1, retry_count = $2, error_message = $3, next_retry_at = $4
		WHERE id = $5`

	_, err = r.db.pool.Exec(ctx, query, status, retryCount, processErr.Error(), nextRetryTime(r.now().UTC(), retryCount), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}

// CountByStatus counts events in any of the given states.
func (r *OutboxRepository) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM outbox_event WHERE status = ANY($1)", statuses).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// nextRetryTime backs off exponentially (2s, 4s, 8s...) up to five minutes.
func nextRetryTime(now time.Time, retryCount int) time.Time {
	backoff := 300
	if retryCount < 9 {
		backoff = min(1<<retryCount, 300)
	}
	return now.Add(time.Duration(backoff) * time.Second)
}
