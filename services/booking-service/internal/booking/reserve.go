package booking

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

type ReserveRequest struct {
	ProviderID string      `json:"provider_id"`
	ClientID   string      `json:"client_id"`
	ServiceID  string      `json:"service_id"`
	Date       model.Date  `json:"date"`
	StartTime  model.Clock `json:"start_time"`
	// Discount is a 0-100 percentage applied to the service price.
	Discount *int `json:"discount,omitempty"`
}

func (r ReserveRequest) Validate() error {
	v := &model.ValidationError{}
	if strings.TrimSpace(r.ProviderID) == "" {
		v.Add("provider_id", "is required")
	}
	if strings.TrimSpace(r.ClientID) == "" {
		v.Add("client_id", "is required")
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		v.Add("service_id", "is required")
	}
	if r.Date.IsZero() {
		v.Add("date", "is required")
	}
	if r.StartTime < 0 || r.StartTime >= model.EndOfDay {
		v.Add("start_time", "must be between 00:00 and 23:59")
	}
	if r.Discount != nil && (*r.Discount < 0 || *r.Discount > 100) {
		v.Add("discount", "must be between 0 and 100")
	}
	return v.OrNil()
}

// Reserve books the slot starting at req.StartTime if it is still bookable. Losing a race
// returns *model.SlotConflictError naming the rule that failed.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.Reserve", trace.WithAttributes(
		attribute.String("provider.id", req.ProviderID),
		attribute.String("date", req.Date.String()),
		attribute.String("start_time", req.StartTime.String()),
	))
	defer span.End()

	appt, err := e.reserve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, model.ErrSlotConflict) {
			e.metrics.ObserveReservation("conflict")
		} else {
			e.metrics.ObserveReservation("error")
		}
		return model.Appointment{}, err
	}
	e.metrics.ObserveReservation("created")
	span.SetAttributes(attribute.String("appointment.id", appt.ID))

	if err := e.cache.InvalidateDay(ctx, appt.ProviderID, appt.Date); err != nil {
		e.logger.Warn("availability cache invalidation failed", "provider_id", appt.ProviderID, "date", appt.Date.String(), "err", err)
	}
	if e.events != nil && !e.outbox {
		e.events.Publish(ctx, createdEvent(appt))
	}
	e.logger.Info("appointment reserved",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"date", appt.Date.String(),
		"start_time", appt.StartTime.String(),
	)
	return appt, nil
}

func (e *Engine) reserve(ctx context.Context, req ReserveRequest) (model.Appointment, error) {
	if err := req.Validate(); err != nil {
		return model.Appointment{}, err
	}
	svc, err := e.schedules.GetService(ctx, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	if svc.ProviderID != "" && svc.ProviderID != req.ProviderID {
		return model.Appointment{}, model.ErrServiceNotFound
	}
	sched, err := e.schedules.GetSchedule(ctx, req.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}
	conflict := func(reason string) error {
		return &model.SlotConflictError{ProviderID: req.ProviderID, Date: req.Date, StartTime: req.StartTime, Reason: reason}
	}
	if !availability.OnGrid(sched, req.StartTime) {
		return model.Appointment{}, conflict(model.ReasonOffGrid)
	}

	shape := serviceShape{duration: svc.DurationMinutes, buffer: svc.BufferMinutes}
	original, discountAmount := model.DiscountedPrice(svc.PriceCents, req.Discount)

	var created model.Appointment
	err = e.appointments.WithinLock(ctx, storage.DayKey(req.ProviderID, req.Date), func(ctx context.Context, tx storage.Tx) error {
		breaks, err := e.schedules.ListBreaks(ctx, req.ProviderID)
		if err != nil {
			return err
		}
		blocked, err := e.schedules.ListBlocked(ctx, req.ProviderID, req.Date)
		if err != nil {
			return err
		}
		appts, err := tx.ListProviderDay(ctx, req.ProviderID, req.Date)
		if err != nil {
			return err
		}
		in := availability.Input{
			Schedule:        sched,
			Date:            req.Date,
			DurationMinutes: shape.duration,
			BufferMinutes:   shape.buffer,
			Breaks:          breaks,
			Blocked:         blocked,
			Appointments:    appts,
			Now:             e.now(),
		}
		if reason := availability.Evaluate(req.StartTime, in); reason != "" {
			return conflict(reason)
		}

		now := e.now().UTC()
		a := model.Appointment{
			ID:                  e.newID(),
			ClientID:            req.ClientID,
			ProviderID:          req.ProviderID,
			ServiceID:           req.ServiceID,
			Date:                req.Date,
			StartTime:           req.StartTime,
			EndTime:             req.StartTime.Add(shape.duration),
			BufferMinutes:       shape.buffer,
			Status:              model.StatusPending,
			PaymentStatus:       model.PaymentPending,
			Discount:            req.Discount,
			OriginalPriceCents:  original,
			DiscountAmountCents: discountAmount,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.InsertAppointment(ctx, a); err != nil {
			return err
		}
		if e.outbox {
			if err := events.Stage(ctx, tx, createdEvent(a)); err != nil {
				return err
			}
		}
		created = a
		return nil
	})
	if errors.Is(err, storage.ErrOverlap) {
		return model.Appointment{}, conflict(model.ReasonOverlap)
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return created, nil
}

func createdEvent(a model.Appointment) events.Event {
	return events.ForAppointment(events.TypeAppointmentCreated, a, model.Actor{ID: a.ClientID, Role: model.RoleClient}, nil)
}
