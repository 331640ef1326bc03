package availability

import (
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// Input is everything the validity rules look at for one (provider, date).
type Input struct {
	Schedule        model.ProviderSchedule
	Date            model.Date
	DurationMinutes int
	BufferMinutes   int
	Breaks          []model.Break
	Blocked         []model.BlockedSlot
	Appointments    []model.Appointment
	Now             time.Time
	// Preview returns every candidate with IsAvailable and UnavailableReason set.
	Preview bool
}

type interval struct {
	start, end model.Clock
}

// day is Input reduced to what per-slot checks need.
type day struct {
	schedule model.ProviderSchedule
	date     model.Date
	loc      *time.Location
	buffer   int
	blocks   []interval
	busy     []interval
	now      time.Time
	// terminal is set when the whole date is unavailable.
	terminal string
}

func newDay(in Input) day {
	d := day{
		schedule: in.Schedule,
		date:     in.Date,
		loc:      in.Schedule.Location(),
		buffer:   max(in.BufferMinutes, 0),
		now:      in.Now,
	}

	if !in.Schedule.WorksOn(in.Date) {
		d.terminal = model.ReasonNonWorkingDay
		return d
	}
	if !in.Now.IsZero() && in.Date.Before(model.DateOf(in.Now.In(d.loc))) {
		d.terminal = model.ReasonPast
		return d
	}

	for _, b := range in.Breaks {
		if blk, ok := b.Materialize(in.Date); ok {
			d.blocks = append(d.blocks, interval{blk.StartTime, blk.EndTime})
		}
	}
	for _, b := range in.Blocked {
		if b.Date.Equal(in.Date) {
			d.blocks = append(d.blocks, interval{b.StartTime, b.EndTime})
		}
	}
	for _, a := range in.Appointments {
		if !a.Blocks() || a.ProviderID != in.Schedule.ProviderID || !a.Date.Equal(in.Date) {
			continue
		}
		s, e := a.Occupied()
		d.busy = append(d.busy, interval{s, e})
	}
	return d
}

// check applies the per-slot rules in order and returns the first failing reason, or "".
func (d day) check(start model.Clock, end model.Clock) string {
	if d.terminal != "" {
		return d.terminal
	}
	occupiedEnd := end.Add(d.buffer)

	if start < d.schedule.StartTime || occupiedEnd > d.schedule.EndTime {
		return model.ReasonOutsideHours
	}
	for _, b := range d.blocks {
		if model.Overlaps(start, occupiedEnd, b.start, b.end) {
			return model.ReasonBlocked
		}
	}
	for _, b := range d.busy {
		if model.Overlaps(start, occupiedEnd, b.start, b.end) {
			return model.ReasonOverlap
		}
	}
	if !d.now.IsZero() && !d.date.At(start, d.loc).After(d.now) {
		return model.ReasonPast
	}
	return ""
}

// Filter reduces candidates to bookable slots. It is pure: the same Input and Now always
// give the same output. A non-working date yields no slots without per-slot checks.
func Filter(candidates []model.TimeSlot, in Input) []model.TimeSlot {
	d := newDay(in)
	if d.terminal != "" && !in.Preview {
		return []model.TimeSlot{}
	}

	out := make([]model.TimeSlot, 0, len(candidates))
	for _, c := range candidates {
		reason := d.check(c.StartTime, c.EndTime)
		if reason == "" {
			c.IsAvailable = true
			c.UnavailableReason = ""
			out = append(out, c)
			continue
		}
		if in.Preview {
			c.IsAvailable = false
			c.UnavailableReason = reason
			out = append(out, c)
		}
	}
	return out
}

// Evaluate runs the same rules for a single slot starting at start and returns the first
// failing reason, or "" when the slot is bookable.
func Evaluate(start model.Clock, in Input) string {
	return newDay(in).check(start, start.Add(in.DurationMinutes))
}

// DropPast removes slots that have started by now. Used on cached lists, which are computed
// without a clock.
func DropPast(slots []model.TimeSlot, s model.ProviderSchedule, date model.Date, now time.Time) []model.TimeSlot {
	loc := s.Location()
	out := make([]model.TimeSlot, 0, len(slots))
	for _, sl := range slots {
		if sl.IsAvailable && !date.At(sl.StartTime, loc).After(now) {
			continue
		}
		out = append(out, sl)
	}
	return out
}
