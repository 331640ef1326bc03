package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

func requireProvider(actor model.Actor, providerID string) error {
	if actor.Role != model.RoleProvider || actor.ID != providerID {
		return model.ErrForbidden
	}
	return nil
}

func (e *Engine) invalidateProvider(ctx context.Context, providerID string) {
	if err := e.cache.InvalidateProvider(ctx, providerID); err != nil {
		e.logger.Warn("availability cache invalidation failed", "provider_id", providerID, "err", err)
	}
}

func (e *Engine) invalidateDay(ctx context.Context, providerID string, date model.Date) {
	if err := e.cache.InvalidateDay(ctx, providerID, date); err != nil {
		e.logger.Warn("availability cache invalidation failed", "provider_id", providerID, "date", date.String(), "err", err)
	}
}

func (e *Engine) Schedule(ctx context.Context, providerID string) (model.ProviderSchedule, error) {
	return e.schedules.GetSchedule(ctx, providerID)
}

// PutSchedule replaces the provider's working hours.
func (e *Engine) PutSchedule(ctx context.Context, actor model.Actor, s model.ProviderSchedule) (model.ProviderSchedule, error) {
	if err := requireProvider(actor, s.ProviderID); err != nil {
		return model.ProviderSchedule{}, err
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return model.ProviderSchedule{}, err
	}
	s.UpdatedAt = e.now().UTC()
	if err := e.schedules.PutSchedule(ctx, s); err != nil {
		return model.ProviderSchedule{}, err
	}
	e.invalidateProvider(ctx, s.ProviderID)
	e.logger.Info("provider schedule updated", "provider_id", s.ProviderID)
	return s, nil
}

func (e *Engine) Breaks(ctx context.Context, providerID string) ([]model.Break, error) {
	return e.schedules.ListBreaks(ctx, providerID)
}

func (e *Engine) AddBreak(ctx context.Context, actor model.Actor, b model.Break) (model.Break, error) {
	if err := requireProvider(actor, b.ProviderID); err != nil {
		return model.Break{}, err
	}
	b.Name = strings.TrimSpace(b.Name)
	if b.IsRecurring {
		b.Date = nil
	} else {
		b.DayOfWeek = nil
	}
	if err := b.Validate(); err != nil {
		return model.Break{}, err
	}
	b.ID = e.newID()
	if err := e.schedules.AddBreak(ctx, b); err != nil {
		return model.Break{}, err
	}
	if b.IsRecurring {
		e.invalidateProvider(ctx, b.ProviderID)
	} else {
		e.invalidateDay(ctx, b.ProviderID, *b.Date)
	}
	return b, nil
}

func (e *Engine) DeleteBreak(ctx context.Context, actor model.Actor, providerID, breakID string) error {
	if err := requireProvider(actor, providerID); err != nil {
		return err
	}
	b, err := e.schedules.DeleteBreak(ctx, providerID, breakID)
	if err != nil {
		return err
	}
	if b.IsRecurring || b.Date == nil {
		e.invalidateProvider(ctx, providerID)
	} else {
		e.invalidateDay(ctx, providerID, *b.Date)
	}
	return nil
}

func (e *Engine) Blocked(ctx context.Context, providerID string, date model.Date) ([]model.BlockedSlot, error) {
	return e.schedules.ListBlocked(ctx, providerID, date)
}

// AddBlocked blocks an interval on one date. Existing appointments in it are kept.
func (e *Engine) AddBlocked(ctx context.Context, actor model.Actor, b model.BlockedSlot) (model.BlockedSlot, error) {
	if err := requireProvider(actor, b.ProviderID); err != nil {
		return model.BlockedSlot{}, err
	}
	b.Reason = strings.TrimSpace(b.Reason)
	if err := b.Validate(); err != nil {
		return model.BlockedSlot{}, err
	}
	b.ID = e.newID()
	if err := e.schedules.AddBlocked(ctx, b); err != nil {
		return model.BlockedSlot{}, err
	}
	e.invalidateDay(ctx, b.ProviderID, b.Date)
	return b, nil
}

func (e *Engine) DeleteBlocked(ctx context.Context, actor model.Actor, providerID, blockID string) error {
	if err := requireProvider(actor, providerID); err != nil {
		return err
	}
	b, err := e.schedules.DeleteBlocked(ctx, providerID, blockID)
	if err != nil {
		return err
	}
	e.invalidateDay(ctx, providerID, b.Date)
	return nil
}

func (e *Engine) Service(ctx context.Context, serviceID string) (model.Service, error) {
	return e.schedules.GetService(ctx, serviceID)
}

// PutService creates or replaces a service owned by the acting provider.
func (e *Engine) PutService(ctx context.Context, actor model.Actor, s model.Service) (model.Service, error) {
	if s.ProviderID == "" {
		s.ProviderID = actor.ID
	}
	if err := requireProvider(actor, s.ProviderID); err != nil {
		return model.Service{}, err
	}
	s.Name = strings.TrimSpace(s.Name)
	if err := s.Validate(); err != nil {
		return model.Service{}, err
	}
	existing, err := e.schedules.GetService(ctx, s.ID)
	switch {
	case err == nil && existing.ProviderID != "" && existing.ProviderID != s.ProviderID:
		return model.Service{}, model.ErrForbidden
	case err != nil && !errors.Is(err, model.ErrServiceNotFound):
		return model.Service{}, err
	}
	if err := e.schedules.PutService(ctx, s); err != nil {
		return model.Service{}, err
	}
	return s, nil
}

// Appointment returns an appointment to one of its participants.
func (e *Engine) Appointment(ctx context.Context, actor model.Actor, id string) (model.Appointment, error) {
	a, err := e.appointments.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !a.IsParticipant(actor) {
		return model.Appointment{}, model.ErrForbidden
	}
	return a, nil
}

// ProviderDay lists every appointment of the provider on date, canceled ones included.
func (e *Engine) ProviderDay(ctx context.Context, actor model.Actor, providerID string, date model.Date) ([]model.Appointment, error) {
	if err := requireProvider(actor, providerID); err != nil {
		return nil, err
	}
	return e.appointments.ListProviderDay(ctx, providerID, date)
}
