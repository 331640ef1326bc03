package recommend

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

var clk = model.MustClock

func grid(starts ...string) []model.TimeSlot {
	out := make([]model.TimeSlot, 0, len(starts))
	for _, s := range starts {
		c := clk(s)
		out = append(out, model.TimeSlot{StartTime: c, EndTime: c.Add(60), IsAvailable: true})
	}
	return out
}

func TestHeuristicAnnotatesWithoutChangingSlots(t *testing.T) {
	slots := grid("08:00", "10:00", "14:00", "17:00")
	sig := Signals{BookedCounts: map[model.Clock]int{clk("14:00"): 6, clk("10:00"): 3}}

	got, err := Apply(context.Background(), Heuristic{TopK: 2}, slots, sig)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != len(slots) {
		t.Fatalf("length changed")
	}
	for i, s := range got {
		if s.StartTime != slots[i].StartTime || s.EndTime != slots[i].EndTime || !s.IsAvailable {
			t.Fatalf("slot %d identity changed", i)
		}
		if s.Score == nil || *s.Score < 0 || *s.Score > 100 {
			t.Fatalf("slot %d has invalid score %v", i, s.Score)
		}
		if s.Reason == "" {
			t.Fatalf("slot %d has no reason", i)
		}
	}
	if slots[0].Score != nil || slots[0].Tags != nil {
		t.Fatal("Apply must not mutate the caller's slots")
	}
	if !slices.Contains(got[0].Tags, TagMorning) {
		t.Fatalf("08:00 should be tagged morning: %v", got[0].Tags)
	}
	if !slices.Contains(got[2].Tags, TagPopular) || !slices.Contains(got[2].Tags, TagRecommended) {
		t.Fatalf("14:00 should be popular and recommended: %v", got[2].Tags)
	}
	recommended := 0
	for _, s := range got {
		if slices.Contains(s.Tags, TagRecommended) {
			recommended++
		}
	}
	if recommended != 2 {
		t.Fatalf("expected TopK=2 recommended slots, got %d", recommended)
	}
}

type scorerFunc func([]model.TimeSlot) ([]model.TimeSlot, error)

func (f scorerFunc) Score(_ context.Context, s []model.TimeSlot, _ Signals) ([]model.TimeSlot, error) {
	return f(s)
}

func TestApplyDegradesOnContractViolation(t *testing.T) {
	slots := grid("09:00", "09:30")

	dropper := scorerFunc(func(s []model.TimeSlot) ([]model.TimeSlot, error) { return s[:1], nil })
	got, err := Apply(context.Background(), dropper, slots, Signals{})
	if !errors.Is(err, ErrContractViolation) || len(got) != 2 || got[0].Score != nil {
		t.Fatalf("expected unscored fallback, got %v err=%v", got, err)
	}

	mover := scorerFunc(func(s []model.TimeSlot) ([]model.TimeSlot, error) {
		s[1].StartTime = clk("10:00")
		return s, nil
	})
	if _, err := Apply(context.Background(), mover, slots, Signals{}); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	if slots[1].StartTime != clk("09:30") {
		t.Fatal("scorer edits must not leak into the caller's slots")
	}

	failing := scorerFunc(func([]model.TimeSlot) ([]model.TimeSlot, error) { return nil, errors.New("model offline") })
	got, err = Apply(context.Background(), failing, slots, Signals{})
	if err == nil || len(got) != 2 {
		t.Fatalf("expected degraded result, got %v err=%v", got, err)
	}
}

func TestApplyClampsScores(t *testing.T) {
	wild := scorerFunc(func(s []model.TimeSlot) ([]model.TimeSlot, error) {
		hi, lo := 250, -4
		s[0].Score, s[1].Score = &hi, &lo
		return s, nil
	})
	got, err := Apply(context.Background(), wild, grid("09:00", "09:30"), Signals{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if *got[0].Score != 100 || *got[1].Score != 0 {
		t.Fatalf("scores not clamped: %d %d", *got[0].Score, *got[1].Score)
	}
}

func TestApplyWithoutScorerIsSimpleMode(t *testing.T) {
	slots := grid("09:00")
	got, err := Apply(context.Background(), nil, slots, Signals{})
	if err != nil || got[0].Score != nil {
		t.Fatalf("simple mode should leave slots unscored, err=%v", err)
	}
}
