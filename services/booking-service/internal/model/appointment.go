package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

var Statuses = []Status{StatusPending, StatusConfirmed, StatusExecuting, StatusCompleted, StatusCanceled, StatusNoShow}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusExecuting, StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentPaid           PaymentStatus = "paid"
	PaymentFailed         PaymentStatus = "failed"
	PaymentRefunded       PaymentStatus = "refunded"
	PaymentPaidExternally PaymentStatus = "paid_externally"
)

var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPaidExternally}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPaidExternally:
		return true
	}
	return false
}

// Appointment is never deleted. Cancellation only sets Status.
type Appointment struct {
	ID                  string        `json:"id"`
	ClientID            string        `json:"client_id"`
	ProviderID          string        `json:"provider_id"`
	ServiceID           string        `json:"service_id"`
	Date                Date          `json:"date"`
	StartTime           Clock         `json:"start_time"`
	EndTime             Clock         `json:"end_time"`
	BufferMinutes       int           `json:"buffer_minutes"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	Discount            *int          `json:"discount,omitempty"`
	OriginalPriceCents  int64         `json:"original_price_cents"`
	DiscountAmountCents int64         `json:"discount_amount_cents"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	CanceledAt          *time.Time    `json:"canceled_at,omitempty"`
}

// Occupied is the interval the provider is busy: service time plus trailing buffer.
func (a Appointment) Occupied() (Clock, Clock) {
	return a.StartTime, a.EndTime.Add(a.BufferMinutes)
}

// Blocks reports whether the appointment still holds its interval.
func (a Appointment) Blocks() bool {
	return a.Status != StatusCanceled
}

func (a Appointment) IsParticipant(actor Actor) bool {
	switch actor.Role {
	case RoleSystem:
		return true
	case RoleClient:
		return actor.ID == a.ClientID
	case RoleProvider:
		return actor.ID == a.ProviderID
	}
	return false
}

// DiscountedPrice applies a 0-100 percent discount, truncating toward zero.
func DiscountedPrice(priceCents int64, discount *int) (original, discountAmount int64) {
	if discount == nil || *discount <= 0 {
		return priceCents, 0
	}
	pct := min(*discount, 100)
	return priceCents, priceCents * int64(pct) / 100
}

type Review struct {
	AppointmentID string    `json:"appointment_id"`
	ClientID      string    `json:"client_id"`
	ProviderID    string    `json:"provider_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r Review) Validate() error {
	v := &ValidationError{}
	if r.Rating < 1 || r.Rating > 5 {
		v.Add("rating", "must be between 1 and 5")
	}
	if len(r.Comment) > 2000 {
		v.Add("comment", "must be at most 2000 characters")
	}
	return v.OrNil()
}

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	// RoleSystem is the payment collaborator reporting back.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProvider || r == RoleSystem
}

type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

var SystemActor = Actor{ID: "system", Role: RoleSystem}
