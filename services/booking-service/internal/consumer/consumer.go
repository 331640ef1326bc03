// Package consumer applies payment status reports that the payment collaborator
// publishes on Kafka.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// ErrPermanent marks a message that will never succeed; it is committed without retry.
var ErrPermanent = errors.New("permanent message failure")

type Handler func(ctx context.Context, msg kafka.Message) error

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	// MaxAttempts is the number of tries per round before the failure is reported.
	MaxAttempts int
	Backoff     time.Duration
	// RetryPause separates rounds for a message that keeps failing. It is never committed
	// until it is applied or fails permanently.
	RetryPause time.Duration
}

type Consumer struct {
	reader      Reader
	logger      *slog.Logger
	inbox       inbox.Inbox
	metrics     *metrics.Metrics
	handler     Handler
	maxAttempts int
	backoff     time.Duration
	retryPause  time.Duration
}

func New(reader Reader, in inbox.Inbox, logger *slog.Logger, m *metrics.Metrics, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.RetryPause <= 0 {
		cfg.RetryPause = 30 * time.Second
	}
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       in,
		metrics:     m,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		retryPause:  cfg.RetryPause,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}

		result := c.process(ctx, msg)
		for result == "failed" {
			c.metrics.ObserveConsumed(result)
			c.logger.Error("event left uncommitted after retries", "offset", msg.Offset, "partition", msg.Partition, "retry_in", c.retryPause.String())
			if !sleep(ctx, c.retryPause) {
				return
			}
			result = c.process(ctx, msg)
		}
		c.metrics.ObserveConsumed(result)
		if result == "retry_aborted" {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

// process returns the outcome label: applied, duplicate, discarded, failed or retry_aborted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) string {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	logger := c.logger.With("event_id", meta.EventID, "event_type", meta.EventType)

	for attempt := 1; ; attempt++ {
		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			logger.Error("inbox record failed", "err", err, "attempt", attempt)
			span.RecordError(err)
		} else if !ok {
			logger.Info("duplicate event ignored")
			return "duplicate"
		} else {
			err = c.handler(ctxSpan, msg)
			if err == nil {
				return "applied"
			}
			span.RecordError(err)
			if errors.Is(err, ErrPermanent) {
				logger.Warn("event discarded", "err", err)
				return "discarded"
			}
			if relErr := c.inbox.Release(ctxSpan, meta.EventID); relErr != nil {
				logger.Error("inbox release failed", "err", relErr)
			}
			logger.Error("handler error", "err", err, "attempt", attempt)
		}
		if attempt >= c.maxAttempts {
			return "failed"
		}
		if !sleep(ctx, c.backoff*time.Duration(attempt)) {
			return "retry_aborted"
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// PaymentStatusMessage is the payload on the payment status topic.
type PaymentStatusMessage struct {
	AppointmentID string              `json:"appointment_id"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

type PaymentSetter interface {
	SetPaymentStatus(ctx context.Context, appointmentID string, target model.PaymentStatus, actor model.Actor) (model.Appointment, error)
}

// PaymentStatusHandler applies a report as the payment collaborator. A report that
// repeats the current status is treated as already applied.
func PaymentStatusHandler(setter PaymentSetter) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var body PaymentStatusMessage
		if err := json.Unmarshal(msg.Value, &body); err != nil {
			return fmt.Errorf("%w: decode payment status: %v", ErrPermanent, err)
		}
		if body.AppointmentID == "" || !body.PaymentStatus.Valid() {
			return fmt.Errorf("%w: invalid payment status message", ErrPermanent)
		}
		_, err := setter.SetPaymentStatus(ctx, body.AppointmentID, body.PaymentStatus, model.SystemActor)
		var ite *model.IllegalTransitionError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &ite) && ite.From == ite.To:
			return nil
		case errors.Is(err, model.ErrIllegalTransition), errors.Is(err, model.ErrAppointmentNotFound), errors.Is(err, model.ErrForbidden):
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		default:
			return err
		}
	}
}
