package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
)

// LogSink writes events to the structured log. It is the default notification collaborator.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(_ context.Context, evt Event) error {
	s.Logger.Info("collaborator event",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"aggregate_id", evt.AggregateID,
		"payload", string(evt.Payload),
	)
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink writes straight to Kafka, one topic per event type, keyed by appointment.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink takes a writer without a fixed Topic; kafkax.NewWriter(brokers, "") works.
func NewKafkaSink(w messageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (*KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, evt Event) error {
	msg := kafkax.Message(ctx, evt.AggregateID, kafkax.EventMeta{EventID: evt.ID, EventType: evt.Type}, evt.Payload)
	msg.Topic = evt.Type
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", evt.Type, err)
	}
	return nil
}
