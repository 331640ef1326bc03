package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotkeeper/libs/kafkax"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (*recordingSink) Name() string { return "rec" }

func (s *recordingSink) Deliver(_ context.Context, evt Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func sampleAppointment() model.Appointment {
	return model.Appointment{
		ID:                  "a1",
		ClientID:            "c1",
		ProviderID:          "p1",
		ServiceID:           "s1",
		Date:                model.NewDate(2030, time.January, 7),
		StartTime:           model.MustClock("09:00"),
		EndTime:             model.MustClock("10:00"),
		Status:              model.StatusConfirmed,
		PaymentStatus:       model.PaymentPending,
		OriginalPriceCents:  5000,
		DiscountAmountCents: 500,
	}
}

func TestForAppointmentPayload(t *testing.T) {
	evt := ForAppointment(TypeStatusChanged, sampleAppointment(), model.Actor{ID: "p1", Role: model.RoleProvider}, func(p *AppointmentPayload) {
		p.PreviousStatus = model.StatusPending
	})
	assert.Equal(t, TypeStatusChanged, evt.Type)
	assert.Equal(t, "a1", evt.AggregateID)
	assert.NotEmpty(t, evt.ID)
	assert.JSONEq(t, `{
		"appointment_id":"a1","provider_id":"p1","client_id":"c1","service_id":"s1",
		"date":"2030-01-07","start_time":"09:00","end_time":"10:00",
		"status":"confirmed","payment_status":"pending","previous_status":"pending",
		"amount_cents":4500,"actor_id":"p1","actor_role":"provider"
	}`, string(evt.Payload))
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sink := &recordingSink{}
	d := NewDispatcher(discardLogger(), m, DispatcherConfig{QueueSize: 16, Workers: 2}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 10; i++ {
		d.Publish(ctx, Event{ID: "e", Type: TypeAppointmentCreated})
	}
	// delivery must not depend on the publishing request still being alive
	cancel()

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 10, sink.count())

	d.Publish(context.Background(), Event{ID: "late"})
	assert.Equal(t, 10, sink.count())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(discardLogger(), nil, DispatcherConfig{QueueSize: 1, Workers: 1}, sink)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Publish(context.Background(), Event{ID: "e"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Less(t, sink.count(), 20)
	assert.GreaterOrEqual(t, sink.count(), 1)
}

func TestDispatcherCountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sink := &recordingSink{err: errors.New("collaborator down")}
	d := NewDispatcher(discardLogger(), m, DispatcherConfig{}, sink)

	d.Publish(context.Background(), Event{ID: "e1"})
	d.Publish(context.Background(), Event{ID: "e2"})
	require.NoError(t, d.Close(context.Background()))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var failed float64
	for _, mf := range mfs {
		if mf.GetName() != "slotkeeper_events_delivered_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == "failed" {
					failed += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(2), failed)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaSinkTopicPerType(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)
	evt := ForAppointment(TypePaymentCaptureRequested, sampleAppointment(), model.SystemActor, nil)

	require.NoError(t, sink.Deliver(context.Background(), evt))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TypePaymentCaptureRequested, msg.Topic)
	assert.Equal(t, "a1", string(msg.Key))
	meta := kafkax.ExtractEventMeta(msg)
	assert.Equal(t, evt.ID, meta.EventID)
	assert.Equal(t, TypePaymentCaptureRequested, meta.EventType)

	w.err = errors.New("broker unavailable")
	assert.Error(t, sink.Deliver(context.Background(), evt))
}

type stagedEvents struct {
	rows []storage.OutboxEvent
	err  error
}

func (s *stagedEvents) InsertEvent(_ context.Context, e storage.OutboxEvent) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, e)
	return nil
}

func TestStageCopiesEnvelope(t *testing.T) {
	evt := ForAppointment(TypeAppointmentCreated, sampleAppointment(), model.Actor{ID: "c1", Role: model.RoleClient}, nil)
	w := &stagedEvents{}
	require.NoError(t, Stage(context.Background(), w, evt))

	require.Len(t, w.rows, 1)
	row := w.rows[0]
	assert.Equal(t, evt.ID, row.ID)
	assert.Equal(t, TypeAppointmentCreated, row.Type)
	assert.Equal(t, AggregateAppointment, row.AggregateType)
	assert.Equal(t, "a1", row.AggregateID)
	assert.JSONEq(t, string(evt.Payload), string(row.Payload))
	assert.Equal(t, evt.OccurredAt, row.OccurredAt)
	assert.Empty(t, row.Traceparent)

	w.err = errors.New("tx aborted")
	assert.ErrorIs(t, Stage(context.Background(), w, evt), w.err)
}

func TestRelayPublishesBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_id", "aggregate_id", "event_type", "payload", "traceparent", "tracestate"}).
			AddRow(int64(1), "e1", "a1", TypeAppointmentCreated, []byte(`{}`), "", "").
			AddRow(int64(2), "e2", "a1", TypeStatusChanged, []byte(`{}`), "", ""))
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{1, 2}).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	w := &fakeWriter{}
	relay := NewRelay(mock, w, discardLogger(), RelayConfig{BatchSize: 10})
	n, err := relay.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, TypeAppointmentCreated, w.msgs[0].Topic)
	assert.Equal(t, TypeStatusChanged, w.msgs[1].Topic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayKeepsRowsWhenKafkaFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_id", "aggregate_id", "event_type", "payload", "traceparent", "tracestate"}).
			AddRow(int64(7), "e7", "a1", TypeReviewed, []byte(`{}`), "", ""))
	mock.ExpectRollback()

	relay := NewRelay(mock, &fakeWriter{err: errors.New("down")}, discardLogger(), RelayConfig{})
	_, err = relay.PublishBatch(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
