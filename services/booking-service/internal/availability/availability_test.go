package availability

import (
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

var clk = model.MustClock

func exampleSchedule() model.ProviderSchedule {
	return model.ProviderSchedule{
		ProviderID:          "prov-1",
		WorkingDays:         []time.Weekday{1, 2, 3, 4, 5, 6},
		StartTime:           clk("08:00"),
		EndTime:             clk("18:00"),
		SlotIntervalMinutes: 30,
		Timezone:            "UTC",
	}
}

func starts(slots []model.TimeSlot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, s.StartTime.String())
	}
	return strings.Join(parts, ",")
}

func TestGenerateGrid(t *testing.T) {
	monday := model.NewDate(2026, time.October, 26)
	slots := Generate(exampleSchedule(), monday, 60)
	if len(slots) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(slots))
	}
	if slots[0].StartTime != clk("08:00") || slots[19].StartTime != clk("17:30") {
		t.Fatalf("unexpected bounds: %s", starts(slots))
	}
	if slots[19].EndTime != clk("18:30") {
		t.Fatalf("generator must not clip: last end %s", slots[19].EndTime)
	}
	if slots[3].AvailabilityID != "prov-1:2026-10-26:09:30" {
		t.Fatalf("unexpected availability id %q", slots[3].AvailabilityID)
	}

	again := Generate(exampleSchedule(), monday, 60)
	if starts(again) != starts(slots) {
		t.Fatal("generation must be restartable and deterministic")
	}
	if Generate(exampleSchedule(), monday, 0) != nil {
		t.Fatal("zero duration yields no candidates")
	}
}

func TestOnGrid(t *testing.T) {
	s := exampleSchedule()
	for _, c := range []string{"08:00", "14:00", "17:30"} {
		if !OnGrid(s, clk(c)) {
			t.Fatalf("%s should be on grid", c)
		}
	}
	for _, c := range []string{"07:30", "14:15", "18:00"} {
		if OnGrid(s, clk(c)) {
			t.Fatalf("%s should be off grid", c)
		}
	}
}

func TestFilterWorkedExample(t *testing.T) {
	monday := model.NewDate(2026, time.October, 26)
	dow := time.Monday
	in := Input{
		Schedule:        exampleSchedule(),
		Date:            monday,
		DurationMinutes: 60,
		Breaks: []model.Break{{
			ID: "b1", Name: "lunch", StartTime: clk("12:00"), EndTime: clk("13:00"),
			IsRecurring: true, DayOfWeek: &dow,
		}},
		Appointments: []model.Appointment{{
			ID: "a1", ProviderID: "prov-1", Date: monday,
			StartTime: clk("09:00"), EndTime: clk("10:00"), Status: model.StatusConfirmed,
		}},
		Now: time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC),
	}

	got := Filter(Generate(in.Schedule, monday, 60), in)
	want := "08:00,10:00,10:30,11:00,13:00,13:30,14:00,14:30,15:00,15:30,16:00,16:30,17:00"
	if starts(got) != want {
		t.Fatalf("available slots\n got %s\nwant %s", starts(got), want)
	}
	for _, s := range got {
		if !s.IsAvailable || s.UnavailableReason != "" {
			t.Fatalf("returned slot %s must be available", s.StartTime)
		}
	}

	in.Preview = true
	preview := Filter(Generate(in.Schedule, monday, 60), in)
	if len(preview) != 20 {
		t.Fatalf("preview returns the full grid, got %d", len(preview))
	}
	reasons := map[string]string{}
	for _, s := range preview {
		reasons[s.StartTime.String()] = s.UnavailableReason
	}
	expect := map[string]string{
		"08:30": model.ReasonOverlap,
		"09:00": model.ReasonOverlap,
		"09:30": model.ReasonOverlap,
		"11:30": model.ReasonBlocked,
		"12:00": model.ReasonBlocked,
		"12:30": model.ReasonBlocked,
		"17:30": model.ReasonOutsideHours,
		"08:00": "",
	}
	for start, reason := range expect {
		if reasons[start] != reason {
			t.Fatalf("%s: reason %q, want %q", start, reasons[start], reason)
		}
	}
}

func TestFilterNonWorkingDayIsTerminal(t *testing.T) {
	sunday := model.NewDate(2026, time.October, 25)
	in := Input{Schedule: exampleSchedule(), Date: sunday, DurationMinutes: 30}
	if got := Filter(Generate(in.Schedule, sunday, 30), in); len(got) != 0 {
		t.Fatalf("expected zero slots on a non-working day, got %d", len(got))
	}
	in.Preview = true
	for _, s := range Filter(Generate(in.Schedule, sunday, 30), in) {
		if s.UnavailableReason != model.ReasonNonWorkingDay {
			t.Fatalf("preview reason %q", s.UnavailableReason)
		}
	}
}

func TestFilterBufferCountsTowardsContainmentAndOverlap(t *testing.T) {
	date := model.NewDate(2026, time.October, 27)
	in := Input{
		Schedule:        exampleSchedule(),
		Date:            date,
		DurationMinutes: 30,
		BufferMinutes:   15,
		Appointments: []model.Appointment{{
			ProviderID: "prov-1", Date: date, StartTime: clk("10:00"), EndTime: clk("10:30"),
			BufferMinutes: 30, Status: model.StatusPending,
		}},
	}
	got := starts(Filter(Generate(in.Schedule, date, 30), in))
	if strings.Contains(got, "17:30") {
		t.Fatal("17:30 + 30m + 15m buffer exceeds 18:00")
	}
	if strings.Contains(got, "09:30") {
		t.Fatal("09:30-10:15 occupied overlaps appointment at 10:00")
	}
	if strings.Contains(got, "10:30") {
		t.Fatal("appointment buffer runs until 11:00")
	}
	if !strings.Contains(got, "11:00") || !strings.Contains(got, "17:00") {
		t.Fatalf("expected 11:00 and 17:00 to remain: %s", got)
	}
}

func TestFilterIgnoresCanceledAndOtherDays(t *testing.T) {
	date := model.NewDate(2026, time.October, 27)
	in := Input{
		Schedule:        exampleSchedule(),
		Date:            date,
		DurationMinutes: 60,
		Appointments: []model.Appointment{
			{ProviderID: "prov-1", Date: date, StartTime: clk("09:00"), EndTime: clk("10:00"), Status: model.StatusCanceled},
			{ProviderID: "prov-1", Date: date.AddDays(1), StartTime: clk("11:00"), EndTime: clk("12:00"), Status: model.StatusConfirmed},
		},
		Blocked: []model.BlockedSlot{{Date: date.AddDays(1), StartTime: clk("08:00"), EndTime: clk("18:00")}},
	}
	if got := Filter(Generate(in.Schedule, date, 60), in); len(got) != 19 {
		t.Fatalf("expected 19 slots, got %d: %s", len(got), starts(got))
	}
}

func TestFilterPastTime(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := exampleSchedule()
	s.Timezone = "America/Sao_Paulo"
	today := model.NewDate(2026, time.October, 27)
	now := time.Date(2026, time.October, 27, 10, 0, 0, 0, loc)

	in := Input{Schedule: s, Date: today, DurationMinutes: 30, Now: now}
	got := Filter(Generate(s, today, 30), in)
	if got[0].StartTime != clk("10:30") {
		t.Fatalf("slot starting at now must be dropped, first is %s", got[0].StartTime)
	}
	for _, sl := range got {
		if !today.At(sl.StartTime, loc).After(now) {
			t.Fatalf("slot %s is not after now", sl.StartTime)
		}
	}

	in.Date = today.AddDays(-1)
	if got := Filter(Generate(s, in.Date, 30), in); len(got) != 0 {
		t.Fatalf("past date must yield zero slots, got %d", len(got))
	}

	in.Date = today
	if reason := Evaluate(clk("09:30"), in); reason != model.ReasonPast {
		t.Fatalf("Evaluate reason %q", reason)
	}
	if reason := Evaluate(clk("11:00"), in); reason != "" {
		t.Fatalf("Evaluate should accept 11:00, got %q", reason)
	}

	later := DropPast(got, s, today, now.Add(2*time.Hour))
	if later[0].StartTime != clk("12:30") {
		t.Fatalf("DropPast kept %s", later[0].StartTime)
	}
}

func TestFilterPastTimeOnDSTDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := exampleSchedule()
	s.Timezone = "America/New_York"
	day := model.NewDate(2026, time.March, 8)
	s.WorkingDays = []time.Weekday{day.Weekday()}
	now := time.Date(2026, time.March, 8, 9, 45, 0, 0, loc)

	in := Input{Schedule: s, Date: day, DurationMinutes: 30, Now: now}
	got := Filter(Generate(s, day, 30), in)
	if len(got) == 0 || got[0].StartTime != clk("10:00") {
		t.Fatalf("first slot after 09:45 should be 10:00, got %s", starts(got))
	}
	if reason := Evaluate(clk("09:00"), in); reason != model.ReasonPast {
		t.Fatalf("09:00 has passed, got reason %q", reason)
	}

	cached := Filter(Generate(s, day, 30), Input{Schedule: s, Date: day, DurationMinutes: 30})
	if kept := DropPast(cached, s, day, now); strings.Contains(starts(kept), "09:00") || strings.Contains(starts(kept), "09:30") {
		t.Fatalf("DropPast kept started slots: %s", starts(kept))
	}
}

func TestFilterPropertiesAcrossGrid(t *testing.T) {
	date := model.NewDate(2026, time.October, 28)
	dow := date.Weekday()
	s := exampleSchedule()
	s.SlotIntervalMinutes = 15
	in := Input{
		Schedule:        s,
		Date:            date,
		DurationMinutes: 45,
		BufferMinutes:   10,
		Breaks: []model.Break{
			{StartTime: clk("12:00"), EndTime: clk("12:45"), IsRecurring: true, DayOfWeek: &dow},
			{StartTime: clk("15:10"), EndTime: clk("15:20"), Date: &date},
		},
		Blocked: []model.BlockedSlot{{Date: date, StartTime: clk("08:00"), EndTime: clk("08:50")}},
	}
	for _, sl := range Filter(Generate(s, date, 45), in) {
		end := sl.EndTime.Add(10)
		if sl.StartTime < s.StartTime || end > s.EndTime {
			t.Fatalf("slot %s-%s escapes working hours", sl.StartTime, end)
		}
		for _, b := range [][2]model.Clock{{clk("12:00"), clk("12:45")}, {clk("15:10"), clk("15:20")}, {clk("08:00"), clk("08:50")}} {
			if model.Overlaps(sl.StartTime, end, b[0], b[1]) {
				t.Fatalf("slot %s intersects block %s-%s", sl.StartTime, b[0], b[1])
			}
		}
	}
}
