package availability

import (
	"fmt"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// Generate returns the raw candidate grid for a schedule: one slot for every start in
// [StartTime, EndTime) stepping SlotIntervalMinutes, each lasting durationMinutes.
//
// No weekday, containment or overlap rule is applied here. A candidate may end past the
// schedule end; Filter removes it.
func Generate(s model.ProviderSchedule, date model.Date, durationMinutes int) []model.TimeSlot {
	step := s.SlotIntervalMinutes
	if step <= 0 {
		step = model.DefaultSlotIntervalMinutes
	}
	if durationMinutes <= 0 || s.EndTime <= s.StartTime {
		return nil
	}

	slots := make([]model.TimeSlot, 0, (int(s.EndTime-s.StartTime)+step-1)/step)
	for start := s.StartTime; start < s.EndTime; start = start.Add(step) {
		slots = append(slots, model.TimeSlot{
			StartTime:      start,
			EndTime:        start.Add(durationMinutes),
			IsAvailable:    true,
			AvailabilityID: SlotID(s.ProviderID, date, start),
		})
	}
	return slots
}

// SlotID identifies a grid position, e.g. "p1:2026-10-19:09:30".
func SlotID(providerID string, date model.Date, start model.Clock) string {
	return fmt.Sprintf("%s:%s:%s", providerID, date, start)
}

// OnGrid reports whether start is one of the candidates Generate would produce.
func OnGrid(s model.ProviderSchedule, start model.Clock) bool {
	step := s.SlotIntervalMinutes
	if step <= 0 {
		step = model.DefaultSlotIntervalMinutes
	}
	return start >= s.StartTime && start < s.EndTime && int(start-s.StartTime)%step == 0
}
