package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/recommend"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/slotcache"
)

// Query asks for the slots of one provider on one date. Either ServiceID or
// DurationMinutes must be set; a service also contributes its buffer.
type Query struct {
	ProviderID      string
	ServiceID       string
	DurationMinutes int
	Date            model.Date
	// Mode is smart or simple; empty means smart when a scorer is configured.
	Mode string
	// Preview returns unavailable candidates too, with their reason, unscored.
	Preview bool
}

type Availability struct {
	ProviderID      string           `json:"provider_id"`
	Date            model.Date       `json:"date"`
	ServiceID       string           `json:"service_id,omitempty"`
	DurationMinutes int              `json:"duration_minutes"`
	Mode            string           `json:"mode"`
	Timezone        string           `json:"timezone"`
	Slots           []model.TimeSlot `json:"slots"`
}

// Generate returns the raw candidate grid for a provider's schedule.
func (e *Engine) Generate(ctx context.Context, providerID string, date model.Date, durationMinutes int) ([]model.TimeSlot, error) {
	sched, err := e.schedules.GetSchedule(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return availability.Generate(sched, date, durationMinutes), nil
}

type serviceShape struct {
	duration int
	buffer   int
}

func (e *Engine) resolveService(ctx context.Context, providerID, serviceID string, duration int) (serviceShape, error) {
	if strings.TrimSpace(serviceID) == "" {
		if duration <= 0 {
			return serviceShape{}, model.NewValidationError("duration", "service_id or a positive duration is required")
		}
		return serviceShape{duration: duration}, nil
	}
	svc, err := e.schedules.GetService(ctx, serviceID)
	if err != nil {
		return serviceShape{}, err
	}
	if svc.ProviderID != "" && svc.ProviderID != providerID {
		return serviceShape{}, model.ErrServiceNotFound
	}
	return serviceShape{duration: svc.DurationMinutes, buffer: svc.BufferMinutes}, nil
}

func (e *Engine) mode(requested string) (string, error) {
	switch requested {
	case "":
		if e.scorer == nil {
			return ModeSimple, nil
		}
		return ModeSmart, nil
	case ModeSimple:
		return ModeSimple, nil
	case ModeSmart:
		if e.scorer == nil {
			return ModeSimple, nil
		}
		return ModeSmart, nil
	}
	return "", model.NewValidationError("mode", "must be smart or simple")
}

// Availability runs generate, filter and (in smart mode) score. Non-preview results are
// cached per (provider, date) without the clock; slots that have started are removed on
// every read.
func (e *Engine) Availability(ctx context.Context, q Query) (Availability, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "booking.Availability", trace.WithAttributes(
		attribute.String("provider.id", q.ProviderID),
		attribute.String("date", q.Date.String()),
		attribute.Bool("preview", q.Preview),
	))
	defer span.End()

	if q.Date.IsZero() {
		return Availability{}, model.NewValidationError("date", "is required")
	}
	mode, err := e.mode(q.Mode)
	if err != nil {
		return Availability{}, err
	}
	// The generation is read before any store so a reservation or schedule change that
	// commits mid-computation makes Set refuse the resulting view.
	cacheable := !q.Preview
	var gen string
	if cacheable {
		if gen, err = e.cache.Generation(ctx, q.ProviderID, q.Date); err != nil {
			cacheable = false
			e.logger.Warn("availability cache generation read failed", "provider_id", q.ProviderID, "date", q.Date.String(), "err", err)
		}
	}
	shape, err := e.resolveService(ctx, q.ProviderID, q.ServiceID, q.DurationMinutes)
	if err != nil {
		return Availability{}, err
	}
	sched, err := e.schedules.GetSchedule(ctx, q.ProviderID)
	if err != nil {
		span.RecordError(err)
		return Availability{}, err
	}
	if q.Preview {
		mode = ModeSimple
	}
	out := Availability{
		ProviderID:      q.ProviderID,
		Date:            q.Date,
		ServiceID:       q.ServiceID,
		DurationMinutes: shape.duration,
		Mode:            mode,
		Timezone:        sched.Timezone,
	}
	now := e.now()

	if q.Preview {
		in, err := e.filterInput(ctx, sched, q.Date, shape, now)
		if err != nil {
			return Availability{}, err
		}
		in.Preview = true
		out.Slots = availability.Filter(availability.Generate(sched, q.Date, shape.duration), in)
		e.metrics.ObserveAvailability("preview", false, time.Since(started).Seconds())
		return out, nil
	}

	key := slotcache.Key{ProviderID: q.ProviderID, Date: q.Date, Variant: slotcache.Variant(shape.duration, shape.buffer, mode)}
	cached, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("availability cache read failed", "provider_id", q.ProviderID, "date", q.Date.String(), "err", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if hit {
		out.Slots = availability.DropPast(cached, sched, q.Date, now)
		e.metrics.ObserveAvailability(mode, true, time.Since(started).Seconds())
		return out, nil
	}

	in, err := e.filterInput(ctx, sched, q.Date, shape, time.Time{})
	if err != nil {
		return Availability{}, err
	}
	slots := availability.Filter(availability.Generate(sched, q.Date, shape.duration), in)

	if mode == ModeSmart && len(slots) > 0 {
		scored, err := e.score(ctx, sched, q.Date, slots)
		if err != nil {
			cacheable = false
			e.metrics.ScorerDegraded()
			e.logger.Warn("slot scoring degraded to simple", "provider_id", q.ProviderID, "date", q.Date.String(), "err", err)
		}
		slots = scored
	}
	if cacheable {
		if err := e.cache.Set(ctx, key, gen, slots); errors.Is(err, slotcache.ErrStale) {
			e.logger.Debug("availability view superseded before caching", "provider_id", q.ProviderID, "date", q.Date.String())
		} else if err != nil {
			e.logger.Warn("availability cache write failed", "provider_id", q.ProviderID, "date", q.Date.String(), "err", err)
		}
	}
	out.Slots = availability.DropPast(slots, sched, q.Date, now)
	e.metrics.ObserveAvailability(mode, false, time.Since(started).Seconds())
	return out, nil
}

func (e *Engine) filterInput(ctx context.Context, sched model.ProviderSchedule, date model.Date, shape serviceShape, now time.Time) (availability.Input, error) {
	breaks, err := e.schedules.ListBreaks(ctx, sched.ProviderID)
	if err != nil {
		return availability.Input{}, err
	}
	blocked, err := e.schedules.ListBlocked(ctx, sched.ProviderID, date)
	if err != nil {
		return availability.Input{}, err
	}
	appts, err := e.appointments.ListProviderDay(ctx, sched.ProviderID, date)
	if err != nil {
		return availability.Input{}, err
	}
	return availability.Input{
		Schedule:        sched,
		Date:            date,
		DurationMinutes: shape.duration,
		BufferMinutes:   shape.buffer,
		Breaks:          breaks,
		Blocked:         blocked,
		Appointments:    appts,
		Now:             now,
	}, nil
}

func (e *Engine) score(ctx context.Context, sched model.ProviderSchedule, date model.Date, slots []model.TimeSlot) ([]model.TimeSlot, error) {
	from := date.AddDays(-7 * e.historyWeeks)
	counts, err := e.appointments.CountByStartTime(ctx, sched.ProviderID, date.Weekday(), from, date)
	if err != nil {
		return slots, err
	}
	return recommend.Apply(ctx, e.scorer, slots, recommend.Signals{
		ProviderID:   sched.ProviderID,
		Date:         date,
		BookedCounts: counts,
	})
}
