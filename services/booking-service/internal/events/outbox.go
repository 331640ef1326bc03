package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotkeeper/libs/otel"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

// DB is the part of *pgxpool.Pool the Relay needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EventWriter is the transactional side of the outbox, satisfied by storage.Tx.
type EventWriter interface {
	InsertEvent(ctx context.Context, e storage.OutboxEvent) error
}

// Stage writes evt as an outbox row through w, so it commits or rolls back with the
// appointment change; the Relay forwards it to Kafka afterwards. The current span is kept
// on the row.
func Stage(ctx context.Context, w EventWriter, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return w.InsertEvent(ctx, storage.OutboxEvent{
		ID:            evt.ID,
		Type:          evt.Type,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		Payload:       []byte(evt.Payload),
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		OccurredAt:    evt.OccurredAt,
	})
}

type outboxRecord struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	Traceparent string
	Tracestate  string
}

type RelayConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// Relay polls unpublished outbox rows and writes them to Kafka, one topic per event type.
type Relay struct {
	db        DB
	writer    messageWriter
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

func NewRelay(db DB, writer messageWriter, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Relay{db: db, writer: writer, logger: logger, pollEvery: cfg.PollEvery, batchSize: cfg.BatchSize}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.PublishBatch(ctx)
			if err != nil {
				r.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("outbox published", "count", n)
			}
		}
	}
}

// PublishBatch forwards one batch and returns how many rows were published.
func (r *Relay) PublishBatch(ctx context.Context) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := fetchUnpublished(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
		msg := kafkax.Message(msgCtx, rec.AggregateID, kafkax.EventMeta{EventID: rec.EventID, EventType: rec.EventType}, rec.Payload)
		msg.Topic = rec.EventType
		msgs = append(msgs, msg)
		ids = append(ids, rec.ID)
	}
	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("write outbox batch: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]outboxRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_id, event_type, payload, traceparent, tracestate
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []outboxRecord
	for rows.Next() {
		var rec outboxRecord
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.Traceparent, &rec.Tracestate); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
