package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const DefaultSlotIntervalMinutes = 30

// ProviderSchedule is a provider's recurring working hours. Only the provider writes it.
type ProviderSchedule struct {
	ProviderID          string         `json:"provider_id"`
	WorkingDays         []time.Weekday `json:"working_days"`
	StartTime           Clock          `json:"start_time"`
	EndTime             Clock          `json:"end_time"`
	SlotIntervalMinutes int            `json:"slot_interval_minutes"`
	Timezone            string         `json:"timezone"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Normalize fills defaults and sorts/dedupes working days.
func (s *ProviderSchedule) Normalize() {
	if s.SlotIntervalMinutes == 0 {
		s.SlotIntervalMinutes = DefaultSlotIntervalMinutes
	}
	if strings.TrimSpace(s.Timezone) == "" {
		s.Timezone = "UTC"
	}
	slices.Sort(s.WorkingDays)
	s.WorkingDays = slices.Compact(s.WorkingDays)
}

func (s ProviderSchedule) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(s.ProviderID) == "" {
		v.Add("provider_id", "is required")
	}
	if s.StartTime < 0 || s.StartTime >= EndOfDay {
		v.Add("start_time", "must be between 00:00 and 23:59")
	}
	if s.EndTime <= s.StartTime || s.EndTime > EndOfDay {
		v.Add("end_time", "must be after start_time and no later than 24:00")
	}
	if s.SlotIntervalMinutes <= 0 {
		v.Add("slot_interval_minutes", "must be positive")
	}
	for _, d := range s.WorkingDays {
		if d < time.Sunday || d > time.Saturday {
			v.Add("working_days", fmt.Sprintf("weekday %d out of range 0-6", d))
			break
		}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		v.Add("timezone", "unknown IANA zone")
	}
	return v.OrNil()
}

func (s ProviderSchedule) WorksOn(d Date) bool {
	return slices.Contains(s.WorkingDays, d.Weekday())
}

// Location falls back to UTC for an empty or unknown zone.
func (s ProviderSchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Break is a recurring (weekly) or one-off interval the provider does not take bookings in.
type Break struct {
	ID          string        `json:"id"`
	ProviderID  string        `json:"provider_id"`
	Name        string        `json:"name"`
	StartTime   Clock         `json:"start_time"`
	EndTime     Clock         `json:"end_time"`
	IsRecurring bool          `json:"is_recurring"`
	DayOfWeek   *time.Weekday `json:"day_of_week,omitempty"`
	Date        *Date         `json:"date,omitempty"`
}

func (b Break) Validate() error {
	v := &ValidationError{}
	if b.StartTime < 0 || b.EndTime > EndOfDay || b.StartTime >= b.EndTime {
		v.Add("end_time", "must be after start_time")
	}
	if b.IsRecurring {
		if b.DayOfWeek == nil || *b.DayOfWeek < time.Sunday || *b.DayOfWeek > time.Saturday {
			v.Add("day_of_week", "recurring breaks need a weekday 0-6")
		}
	} else if b.Date == nil || b.Date.IsZero() {
		v.Add("date", "one-off breaks need a date")
	}
	return v.OrNil()
}

func (b Break) AppliesOn(d Date) bool {
	if b.IsRecurring {
		return b.DayOfWeek != nil && *b.DayOfWeek == d.Weekday()
	}
	return b.Date != nil && b.Date.Equal(d)
}

// Materialize turns the break into a block for d. ok is false when the break does not apply.
func (b Break) Materialize(d Date) (BlockedSlot, bool) {
	if !b.AppliesOn(d) {
		return BlockedSlot{}, false
	}
	reason := b.Name
	if reason == "" {
		reason = "break"
	}
	return BlockedSlot{
		ID:         b.ID,
		ProviderID: b.ProviderID,
		Date:       d,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Reason:     reason,
	}, true
}

// BlockedSlot is a blocking interval on one calendar date.
type BlockedSlot struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Date       Date   `json:"date"`
	StartTime  Clock  `json:"start_time"`
	EndTime    Clock  `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
}

func (b BlockedSlot) Validate() error {
	v := &ValidationError{}
	if b.Date.IsZero() {
		v.Add("date", "is required")
	}
	if b.StartTime < 0 || b.EndTime > EndOfDay || b.StartTime >= b.EndTime {
		v.Add("end_time", "must be after start_time")
	}
	return v.OrNil()
}

// Service is what a client books. Buffer is trailing provider time not shown to the client.
type Service struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id,omitempty"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

func (s Service) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(s.ID) == "" {
		v.Add("id", "is required")
	}
	if s.DurationMinutes <= 0 {
		v.Add("duration_minutes", "must be positive")
	}
	if s.BufferMinutes < 0 {
		v.Add("buffer_minutes", "must not be negative")
	}
	if s.PriceCents < 0 {
		v.Add("price_cents", "must not be negative")
	}
	return v.OrNil()
}
