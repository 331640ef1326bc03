package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrScheduleNotFound    = errors.New("provider schedule not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrBreakNotFound       = errors.New("break not found")
	ErrBlockNotFound       = errors.New("blocked slot not found")
	ErrSlotConflict        = errors.New("slot no longer available")
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrReviewAlreadyExists = errors.New("review already exists")
	ErrReviewNotAllowed    = errors.New("review not allowed")
	ErrForbidden           = errors.New("forbidden")
)

// SlotConflictError means the reservation lost: the caller re-fetches slots and picks again.
type SlotConflictError struct {
	ProviderID string
	Date       Date
	StartTime  Clock
	Reason     string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %s %s for provider %s unavailable: %s", e.Date, e.StartTime, e.ProviderID, e.Reason)
}

func (e *SlotConflictError) Is(target error) bool { return target == ErrSlotConflict }

const (
	ChannelStatus  = "status"
	ChannelPayment = "payment"
)

// IllegalTransitionError names the current state and the rejected target.
type IllegalTransitionError struct {
	Channel string
	From    string
	To      string
	Role    Role
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s for role %s", e.Channel, e.From, e.To, e.Role)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// ValidationError collects field problems so a caller sees all of them at once.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = map[string]string{}
	}
	if _, ok := v.Fields[field]; !ok {
		v.Fields[field] = msg
	}
}

// OrNil returns nil when no field was added, so callers can `return v.OrNil()`.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}
