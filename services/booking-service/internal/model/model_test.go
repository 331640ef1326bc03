package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := map[string]Clock{"00:00": 0, "08:30": 510, "23:59": 1439, "24:00": EndOfDay}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %d, %v; want %d", in, got, err, want)
		}
		if got.String() != in {
			t.Fatalf("String() = %q, want %q", got.String(), in)
		}
	}
	for _, bad := range []string{"", "8:30", "24:01", "12:60", "ab:cd", "12-30"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDateJSONAndWeekday(t *testing.T) {
	d, err := ParseDate("2026-10-19")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", d.Weekday())
	}
	b, _ := json.Marshal(struct {
		D Date  `json:"d"`
		C Clock `json:"c"`
	}{d, MustClock("09:15")})
	if string(b) != `{"d":"2026-10-19","c":"09:15"}` {
		t.Fatalf("unexpected json: %s", b)
	}
	if d != NewDate(2026, time.October, 19) {
		t.Fatal("parsed and constructed dates should compare equal")
	}
	if d.AddDays(1).Weekday() != time.Tuesday {
		t.Fatal("AddDays")
	}
}

func TestDateAtUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	at := NewDate(2026, time.March, 2).At(MustClock("14:00"), loc)
	if at.Hour() != 14 || at.Location() != loc {
		t.Fatalf("unexpected instant %s", at)
	}
	if DateOf(at) != NewDate(2026, time.March, 2) || ClockOf(at) != MustClock("14:00") {
		t.Fatal("DateOf/ClockOf should round trip")
	}
}

func TestDateAtOnDSTTransitionDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	springForward := NewDate(2026, time.March, 8)
	at := springForward.At(MustClock("09:00"), loc)
	if at.Hour() != 9 || at.Minute() != 0 {
		t.Fatalf("09:00 on %s resolved to %s", springForward, at)
	}
	if got := springForward.At(EndOfDay, loc); !got.Equal(time.Date(2026, time.March, 9, 0, 0, 0, 0, loc)) {
		t.Fatalf("end of day resolved to %s", got)
	}
	fallBack := NewDate(2026, time.November, 1)
	if at := fallBack.At(MustClock("18:30"), loc); at.Hour() != 18 || at.Minute() != 30 {
		t.Fatalf("18:30 on %s resolved to %s", fallBack, at)
	}
}

func TestScheduleValidate(t *testing.T) {
	s := ProviderSchedule{ProviderID: "p1", WorkingDays: []time.Weekday{3, 1, 1}, StartTime: MustClock("08:00"), EndTime: MustClock("18:00")}
	s.Normalize()
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SlotIntervalMinutes != 30 || s.Timezone != "UTC" || len(s.WorkingDays) != 2 {
		t.Fatalf("normalize: %+v", s)
	}

	bad := ProviderSchedule{ProviderID: "p1", WorkingDays: []time.Weekday{7}, StartTime: MustClock("18:00"), EndTime: MustClock("08:00"), SlotIntervalMinutes: -5, Timezone: "Mars/Olympus"}
	err := bad.Validate()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"end_time", "slot_interval_minutes", "working_days", "timezone"} {
		if _, ok := v.Fields[f]; !ok {
			t.Fatalf("expected field %s in %v", f, v.Fields)
		}
	}
}

func TestBreakValidateAndApplies(t *testing.T) {
	monday := time.Monday
	recurring := Break{Name: "lunch", StartTime: MustClock("12:00"), EndTime: MustClock("13:00"), IsRecurring: true, DayOfWeek: &monday}
	if err := recurring.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	mon := NewDate(2026, time.October, 19)
	if !recurring.AppliesOn(mon) || recurring.AppliesOn(mon.AddDays(1)) {
		t.Fatal("recurring break should apply on Mondays only")
	}
	blk, ok := recurring.Materialize(mon)
	if !ok || blk.Date != mon || blk.Reason != "lunch" {
		t.Fatalf("unexpected materialized block %+v", blk)
	}

	oneOff := Break{StartTime: MustClock("10:00"), EndTime: MustClock("11:00")}
	if err := oneOff.Validate(); err == nil {
		t.Fatal("one-off break without date must be invalid")
	}
	inverted := Break{StartTime: MustClock("11:00"), EndTime: MustClock("10:00"), Date: &mon}
	if err := inverted.Validate(); err == nil {
		t.Fatal("inverted break must be invalid")
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("reserve: %w", &SlotConflictError{ProviderID: "p", Reason: ReasonOverlap})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatal("SlotConflictError should match ErrSlotConflict")
	}
	ite := &IllegalTransitionError{Channel: ChannelStatus, From: "completed", To: "pending", Role: RoleProvider}
	if !errors.Is(ite, ErrIllegalTransition) {
		t.Fatal("IllegalTransitionError should match ErrIllegalTransition")
	}
	if ite.Error() != "illegal status transition completed -> pending for role provider" {
		t.Fatalf("unexpected message %q", ite.Error())
	}
}

func TestDiscountedPrice(t *testing.T) {
	ten := 10
	orig, off := DiscountedPrice(15000, &ten)
	if orig != 15000 || off != 1500 {
		t.Fatalf("got %d/%d", orig, off)
	}
	over := 150
	if _, off := DiscountedPrice(999, &over); off != 999 {
		t.Fatalf("discount should clamp at 100%%, got %d", off)
	}
	if _, off := DiscountedPrice(999, nil); off != 0 {
		t.Fatal("nil discount")
	}
}

func TestOccupiedIncludesBuffer(t *testing.T) {
	a := Appointment{StartTime: MustClock("09:00"), EndTime: MustClock("10:00"), BufferMinutes: 15}
	s, e := a.Occupied()
	if s != MustClock("09:00") || e != MustClock("10:15") {
		t.Fatalf("occupied = %s-%s", s, e)
	}
	if !Overlaps(s, e, MustClock("10:00"), MustClock("10:30")) {
		t.Fatal("buffer should overlap a slot starting at 10:00")
	}
	if Overlaps(s, e, MustClock("10:15"), MustClock("11:00")) {
		t.Fatal("half-open: touching intervals do not overlap")
	}
}
