package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/ecommerce-scraper/internal/export"
)

const createBatchesTable = `CREATE TABLE IF NOT EXISTS scrape_batches (
	job_id     TEXT PRIMARY KEY,
	platform   TEXT NOT NULL,
	flow       TEXT NOT NULL,
	filename   TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createItemsTable = `CREATE TABLE IF NOT EXISTS scraped_items (
	job_id   TEXT NOT NULL REFERENCES scrape_batches(job_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	data     JSONB NOT NULL,
	PRIMARY KEY (job_id, position)
)`

const insertBatch = `INSERT INTO scrape_batches (job_id, platform, flow, filename, item_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_id) DO NOTHING`

const insertItem = `INSERT INTO scraped_items (job_id, position, data) VALUES ($1, $2, $3)`

// ResultStore archives exported batches in Postgres. It is an export.Recorder.
type ResultStore struct {
	db           *DB
	outbox       *OutboxRepository
	outboxStream string
	logger       *slog.Logger
	now          func() time.Time
}

func NewResultStore(db *DB, logger *slog.Logger) *ResultStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultStore{
		db:     db,
		logger: logger.With("component", "result_store"),
		now:    time.Now,
	}
}

// EnableOutbox makes Record announce each archived batch on stream through
// the transactional outbox.
func (s *ResultStore) EnableOutbox(stream string) {
	s.outbox = NewOutboxRepository(s.db)
	s.outbox.now = func() time.Time { return s.now() }
	s.outboxStream = stream
}

// EnsureSchema creates the archive and outbox tables when missing.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createBatchesTable, createItemsTable, createOutboxTable} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Record writes the batch header and one JSONB row per item in one transaction.
func (s *ResultStore) Record(ctx context.Context, b export.Batch) error {
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertBatch,
			b.JobID, b.Platform, string(b.Flow), b.Filename, len(b.Items), s.now().UTC(),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		for i, item := range b.Items {
			data, err := json.Marshal(item.Map())
			if err != nil {
				return fmt.Errorf("marshal item %d: %w", i, err)
			}
			if _, err := tx.Exec(ctx, insertItem, b.JobID, i, data); err != nil {
				return fmt.Errorf("insert item %d: %w", i, err)
			}
		}

		if s.outbox == nil {
			return nil
		}
		payload, err := json.Marshal(BatchArchivedPayload{
			JobID:     b.JobID,
			Platform:  b.Platform,
			Flow:      string(b.Flow),
			Filename:  b.Filename,
			ItemCount: len(b.Items),
		})
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		return s.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: "scrape_batch",
			AggregateID:   b.JobID,
			EventType:     EventTypeBatchArchived,
			Payload:       payload,
			TargetStream:  s.outboxStream,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Debug("batch archived", "job_id", b.JobID, "items", len(b.Items))
	return nil
}
