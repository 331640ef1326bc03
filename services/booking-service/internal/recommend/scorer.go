// Package recommend annotates bookable slots with advisory scores. Scores never decide
// whether a slot is bookable.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// Signals is the context a scorer may use.
type Signals struct {
	ProviderID string
	Date       model.Date
	// BookedCounts holds how often each start time was booked on comparable past dates.
	BookedCounts map[model.Clock]int
}

// Scorer returns the same slots, in the same order, with Score, Reason and Tags set.
type Scorer interface {
	Score(ctx context.Context, slots []model.TimeSlot, sig Signals) ([]model.TimeSlot, error)
}

var ErrContractViolation = errors.New("scorer changed slot identity")

// Apply runs s over a copy of slots and checks the result. On any scorer error or contract
// violation it returns the unscored slots together with the error, so callers can log it
// and still serve the list. A nil scorer is simple mode.
func Apply(ctx context.Context, s Scorer, slots []model.TimeSlot, sig Signals) ([]model.TimeSlot, error) {
	if s == nil || len(slots) == 0 {
		return slots, nil
	}

	in := make([]model.TimeSlot, len(slots))
	copy(in, slots)
	for i := range in {
		in[i].Tags = append([]string(nil), slots[i].Tags...)
	}

	scored, err := s.Score(ctx, in, sig)
	if err != nil {
		return slots, fmt.Errorf("score slots: %w", err)
	}
	if len(scored) != len(slots) {
		return slots, fmt.Errorf("%w: got %d slots, want %d", ErrContractViolation, len(scored), len(slots))
	}
	for i := range scored {
		a, b := slots[i], scored[i]
		if a.StartTime != b.StartTime || a.EndTime != b.EndTime || a.IsAvailable != b.IsAvailable {
			return slots, fmt.Errorf("%w: slot %d (%s)", ErrContractViolation, i, a.StartTime)
		}
		if b.Score != nil {
			v := min(max(*b.Score, 0), 100)
			scored[i].Score = &v
		}
	}
	return scored, nil
}
