// Package events notifies collaborators (payments, notifications) after a booking or
// lifecycle change has committed. Delivery is asynchronous and never affects the change.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

const (
	TypeAppointmentCreated      = "appointment.created.v1"
	TypeStatusChanged           = "appointment.status_changed.v1"
	TypePaymentStatusChanged    = "appointment.payment_status_changed.v1"
	TypeReviewed                = "appointment.reviewed.v1"
	TypePaymentCaptureRequested = "payment.capture_requested.v1"
	TypePaymentReleaseRequested = "payment.release_requested.v1"
	AggregateAppointment        = "appointment"
)

// Event is the envelope every sink receives. The Kafka topic equals Type.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// AppointmentPayload describes the appointment after the change.
type AppointmentPayload struct {
	AppointmentID         string              `json:"appointment_id"`
	ProviderID            string              `json:"provider_id"`
	ClientID              string              `json:"client_id"`
	ServiceID             string              `json:"service_id"`
	Date                  model.Date          `json:"date"`
	StartTime             model.Clock         `json:"start_time"`
	EndTime               model.Clock         `json:"end_time"`
	Status                model.Status        `json:"status"`
	PaymentStatus         model.PaymentStatus `json:"payment_status"`
	PreviousStatus        model.Status        `json:"previous_status,omitempty"`
	PreviousPaymentStatus model.PaymentStatus `json:"previous_payment_status,omitempty"`
	AmountCents           int64               `json:"amount_cents"`
	ActorID               string              `json:"actor_id,omitempty"`
	ActorRole             model.Role          `json:"actor_role,omitempty"`
	Rating                int                 `json:"rating,omitempty"`
}

// ForAppointment builds an event about a. The returned payload can be tweaked through fill.
func ForAppointment(eventType string, a model.Appointment, actor model.Actor, fill func(*AppointmentPayload)) Event {
	p := AppointmentPayload{
		AppointmentID: a.ID,
		ProviderID:    a.ProviderID,
		ClientID:      a.ClientID,
		ServiceID:     a.ServiceID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status,
		PaymentStatus: a.PaymentStatus,
		AmountCents:   a.OriginalPriceCents - a.DiscountAmountCents,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
	}
	if fill != nil {
		fill(&p)
	}
	raw, _ := json.Marshal(p)
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: AggregateAppointment,
		AggregateID:   a.ID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}
}
