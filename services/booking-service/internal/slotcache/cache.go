// Package slotcache holds computed availability views per (provider, date). Entries are
// dropped explicitly when a reservation or schedule change affects them, and expire
// after a TTL otherwise.
package slotcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// Key addresses one cached list. Variant separates lists for the same day that were
// computed with different inputs (duration, buffer, scoring mode).
type Key struct {
	ProviderID string
	Date       model.Date
	Variant    string
}

func Variant(durationMinutes, bufferMinutes int, mode string) string {
	return fmt.Sprintf("d%d:b%d:%s", durationMinutes, bufferMinutes, mode)
}

// ErrStale is returned by Set when the day was invalidated after the generation was read.
var ErrStale = errors.New("slotcache: generation changed")

// Cache stores computed views. A writer reads Generation before loading the data a view
// is computed from and passes it to Set, which refuses the write if the day has been
// invalidated since.
type Cache interface {
	Get(ctx context.Context, k Key) ([]model.TimeSlot, bool, error)
	Generation(ctx context.Context, providerID string, date model.Date) (string, error)
	Set(ctx context.Context, k Key, gen string, slots []model.TimeSlot) error
	InvalidateDay(ctx context.Context, providerID string, date model.Date) error
	// InvalidateProvider drops every day of a provider, used after schedule or break edits.
	InvalidateProvider(ctx context.Context, providerID string) error
}

// Noop never holds anything.
type Noop struct{}

func (Noop) Get(context.Context, Key) ([]model.TimeSlot, bool, error) { return nil, false, nil }
func (Noop) Generation(context.Context, string, model.Date) (string, error) {
	return "", nil
}
func (Noop) Set(context.Context, Key, string, []model.TimeSlot) error { return nil }
func (Noop) InvalidateDay(context.Context, string, model.Date) error  { return nil }
func (Noop) InvalidateProvider(context.Context, string) error         { return nil }
