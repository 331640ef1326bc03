package recommend

import (
	"context"
	"sort"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

const (
	TagMorning     = "morning"
	TagPopular     = "popular"
	TagRecommended = "recommended"
)

// Heuristic scores by time of day and by how often a start time has been booked before.
type Heuristic struct {
	// TopK slots get the "recommended" tag. Zero means 3.
	TopK int
}

var noon = model.MustClock("12:00")
var evening = model.MustClock("17:00")

func (h Heuristic) Score(_ context.Context, slots []model.TimeSlot, sig Signals) ([]model.TimeSlot, error) {
	topK := h.TopK
	if topK <= 0 {
		topK = 3
	}

	maxCount := 0
	for _, n := range sig.BookedCounts {
		maxCount = max(maxCount, n)
	}

	for i := range slots {
		s := &slots[i]
		score := 50
		reason := "open slot"
		switch {
		case s.StartTime < noon:
			score += 15
			reason = "morning slot"
			s.Tags = append(s.Tags, TagMorning)
		case s.StartTime >= evening:
			score -= 10
		}

		if n := sig.BookedCounts[s.StartTime]; maxCount > 0 && n > 0 {
			score += 35 * n / maxCount
			if n == maxCount {
				reason = "popular time"
				s.Tags = append(s.Tags, TagPopular)
			}
		}
		v := min(max(score, 0), 100)
		s.Score = &v
		s.Reason = reason
	}

	idx := make([]int, len(slots))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return *slots[idx[a]].Score > *slots[idx[b]].Score
	})
	for _, i := range idx[:min(topK, len(idx))] {
		slots[i].Tags = append(slots[i].Tags, TagRecommended)
	}
	return slots, nil
}
