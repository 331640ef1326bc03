// Package storage defines the schedule and booking stores the engine reads and writes.
// Stores return the model sentinels (model.ErrScheduleNotFound, ...) for missing rows.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// ErrOverlap is returned when the store itself rejects an appointment whose occupied
// interval intersects another non-canceled one.
var ErrOverlap = errors.New("appointment overlaps an existing booking")

// ScheduleStore holds provider working hours, breaks, one-off blocks and services.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, providerID string) (model.ProviderSchedule, error)
	PutSchedule(ctx context.Context, s model.ProviderSchedule) error

	ListBreaks(ctx context.Context, providerID string) ([]model.Break, error)
	AddBreak(ctx context.Context, b model.Break) error
	DeleteBreak(ctx context.Context, providerID, breakID string) (model.Break, error)

	ListBlocked(ctx context.Context, providerID string, date model.Date) ([]model.BlockedSlot, error)
	AddBlocked(ctx context.Context, b model.BlockedSlot) error
	DeleteBlocked(ctx context.Context, providerID, blockID string) (model.BlockedSlot, error)

	GetService(ctx context.Context, serviceID string) (model.Service, error)
	PutService(ctx context.Context, s model.Service) error
}

// AppointmentStore holds appointments and reviews. Mutations go through WithinLock.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListProviderDay(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error)
	// CountByStartTime counts non-canceled appointments per start time on dates in
	// [from, to) that fall on weekday.
	CountByStartTime(ctx context.Context, providerID string, weekday time.Weekday, from, to model.Date) (map[model.Clock]int, error)

	// WithinLock runs fn in one transaction while holding the lock named key. Two calls
	// with the same key never run fn concurrently. fn's writes are discarded when it
	// returns an error.
	WithinLock(ctx context.Context, key string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the booking store inside WithinLock.
type Tx interface {
	ListProviderDay(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error)
	InsertAppointment(ctx context.Context, a model.Appointment) error
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, a model.Appointment) error
	GetReview(ctx context.Context, appointmentID string) (model.Review, bool, error)
	InsertReview(ctx context.Context, r model.Review) error
	// InsertEvent stages an outbox row that commits or rolls back with the change.
	InsertEvent(ctx context.Context, e OutboxEvent) error
}

// OutboxEvent is one row of outbox_events. Payload is the JSON event body.
type OutboxEvent struct {
	ID            string
	Type          string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	OccurredAt    time.Time
}

// DayKey serializes reservations for one provider on one date.
func DayKey(providerID string, date model.Date) string {
	return "day:" + providerID + ":" + date.String()
}

// AppointmentKey serializes lifecycle changes of one appointment.
func AppointmentKey(id string) string {
	return "appt:" + id
}
