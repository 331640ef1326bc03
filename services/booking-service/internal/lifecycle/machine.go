package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

var tracer = otel.Tracer("booking-service/lifecycle")

// Machine serializes changes per appointment and notifies collaborators, either after
// commit through the publisher or inside the transaction through the outbox.
type Machine struct {
	store   storage.AppointmentStore
	cache   slotcache.Cache
	events  events.Publisher
	outbox  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithOutbox stages every event in the outbox within the transaction that makes the change.
func WithOutbox() Option {
	return func(m *Machine) { m.outbox = true }
}

func NewMachine(store storage.AppointmentStore, cache slotcache.Cache, pub events.Publisher, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Machine {
	if cache == nil {
		cache = slotcache.Noop{}
	}
	mc := &Machine{
		store:   store,
		cache:   cache,
		events:  pub,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(mc)
	}
	return mc
}

// Transition moves the appointment's status to target. Illegal moves return
// *model.IllegalTransitionError and leave the appointment untouched.
func (m *Machine) Transition(ctx context.Context, appointmentID string, target model.Status, actor model.Actor) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Transition", trace.WithAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("appointment.target_status", string(target)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	var before, after model.Appointment
	err := m.store.WithinLock(ctx, storage.AppointmentKey(appointmentID), func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !a.IsParticipant(actor) {
			return model.ErrForbidden
		}
		if !CanTransition(a.Status, target, actor.Role) {
			return &model.IllegalTransitionError{Channel: model.ChannelStatus, From: string(a.Status), To: string(target), Role: actor.Role}
		}
		before = a
		now := m.now().UTC()
		a.Status = target
		a.UpdatedAt = now
		if target == model.StatusCanceled {
			a.CanceledAt = &now
		}
		if err := tx.UpdateAppointment(ctx, a); err != nil {
			return err
		}
		after = a
		return m.stage(ctx, tx, statusEvents(before, after, actor)...)
	})
	if err != nil {
		m.fail(span, model.ChannelStatus, err)
		return model.Appointment{}, err
	}
	m.metrics.ObserveTransition(model.ChannelStatus, "applied")

	if target == model.StatusCanceled {
		if err := m.cache.InvalidateDay(ctx, after.ProviderID, after.Date); err != nil {
			m.logger.Warn("availability cache invalidation failed", "provider_id", after.ProviderID, "date", after.Date.String(), "err", err)
		}
	}

	m.publish(ctx, statusEvents(before, after, actor)...)
	m.logger.Info("appointment status changed",
		"appointment_id", appointmentID,
		"from", string(before.Status),
		"to", string(target),
		"actor_role", string(actor.Role),
	)
	return after, nil
}

// SetPaymentStatus changes only the payment channel.
func (m *Machine) SetPaymentStatus(ctx context.Context, appointmentID string, target model.PaymentStatus, actor model.Actor) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.SetPaymentStatus", trace.WithAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("appointment.target_payment_status", string(target)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	var before, after model.Appointment
	err := m.store.WithinLock(ctx, storage.AppointmentKey(appointmentID), func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !a.IsParticipant(actor) {
			return model.ErrForbidden
		}
		if !CanSetPayment(a.PaymentStatus, target, a.Status, actor.Role) {
			return &model.IllegalTransitionError{Channel: model.ChannelPayment, From: string(a.PaymentStatus), To: string(target), Role: actor.Role}
		}
		before = a
		a.PaymentStatus = target
		a.UpdatedAt = m.now().UTC()
		if err := tx.UpdateAppointment(ctx, a); err != nil {
			return err
		}
		after = a
		return m.stage(ctx, tx, paymentEvent(before, after, actor))
	})
	if err != nil {
		m.fail(span, model.ChannelPayment, err)
		return model.Appointment{}, err
	}
	m.metrics.ObserveTransition(model.ChannelPayment, "applied")

	m.publish(ctx, paymentEvent(before, after, actor))
	m.logger.Info("appointment payment status changed",
		"appointment_id", appointmentID,
		"from", string(before.PaymentStatus),
		"to", string(target),
		"actor_role", string(actor.Role),
	)
	return after, nil
}

// AddReview records the client's single review of a completed appointment.
func (m *Machine) AddReview(ctx context.Context, appointmentID string, actor model.Actor, rating int, comment string) (model.Review, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.AddReview", trace.WithAttributes(
		attribute.String("appointment.id", appointmentID),
	))
	defer span.End()

	review := model.Review{AppointmentID: appointmentID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := review.Validate(); err != nil {
		m.fail(span, "review", err)
		return model.Review{}, err
	}

	var appt model.Appointment
	err := m.store.WithinLock(ctx, storage.AppointmentKey(appointmentID), func(ctx context.Context, tx storage.Tx) error {
		a, err := tx.GetAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if actor.Role != model.RoleClient || actor.ID != a.ClientID {
			return model.ErrForbidden
		}
		if a.Status != model.StatusCompleted {
			return model.ErrReviewNotAllowed
		}
		if _, exists, err := tx.GetReview(ctx, appointmentID); err != nil {
			return err
		} else if exists {
			return model.ErrReviewAlreadyExists
		}
		review.ClientID = a.ClientID
		review.ProviderID = a.ProviderID
		review.CreatedAt = m.now().UTC()
		appt = a
		if err := tx.InsertReview(ctx, review); err != nil {
			return err
		}
		return m.stage(ctx, tx, reviewEvent(appt, actor, rating))
	})
	if err != nil {
		m.fail(span, "review", err)
		return model.Review{}, err
	}
	m.metrics.ObserveTransition("review", "applied")

	m.publish(ctx, reviewEvent(appt, actor, rating))
	return review, nil
}

func (m *Machine) fail(span trace.Span, channel string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	m.metrics.ObserveTransition(channel, "rejected")
}

func (m *Machine) stage(ctx context.Context, tx storage.Tx, evts ...events.Event) error {
	if !m.outbox {
		return nil
	}
	for _, evt := range evts {
		if err := events.Stage(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) publish(ctx context.Context, evts ...events.Event) {
	if m.events == nil || m.outbox {
		return
	}
	for _, evt := range evts {
		m.events.Publish(ctx, evt)
	}
}

// statusEvents describes a status change. Confirmation and completion also ask the
// payments side to capture or release the held amount.
func statusEvents(before, after model.Appointment, actor model.Actor) []events.Event {
	out := []events.Event{events.ForAppointment(events.TypeStatusChanged, after, actor, func(p *events.AppointmentPayload) {
		p.PreviousStatus = before.Status
	})}
	switch after.Status {
	case model.StatusConfirmed:
		out = append(out, events.ForAppointment(events.TypePaymentCaptureRequested, after, actor, nil))
	case model.StatusCompleted:
		out = append(out, events.ForAppointment(events.TypePaymentReleaseRequested, after, actor, nil))
	}
	return out
}

func paymentEvent(before, after model.Appointment, actor model.Actor) events.Event {
	return events.ForAppointment(events.TypePaymentStatusChanged, after, actor, func(p *events.AppointmentPayload) {
		p.PreviousPaymentStatus = before.PaymentStatus
	})
}

func reviewEvent(a model.Appointment, actor model.Actor, rating int) events.Event {
	return events.ForAppointment(events.TypeReviewed, a, actor, func(p *events.AppointmentPayload) {
		p.Rating = rating
	})
}
