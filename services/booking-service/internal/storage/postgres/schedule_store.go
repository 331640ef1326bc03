package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

type ScheduleStore struct {
	db DB
}

func NewScheduleStore(db DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func (s *ScheduleStore) GetSchedule(ctx context.Context, providerID string) (model.ProviderSchedule, error) {
	var (
		sched      model.ProviderSchedule
		days       []int16
		start, end int
	)
	err := s.db.QueryRow(ctx, `
		SELECT provider_id, working_days, start_minute, end_minute, slot_interval_minutes, timezone, updated_at
		FROM provider_schedules
		WHERE provider_id = $1
	`, providerID).Scan(&sched.ProviderID, &days, &start, &end, &sched.SlotIntervalMinutes, &sched.Timezone, &sched.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ProviderSchedule{}, model.ErrScheduleNotFound
	}
	if err != nil {
		return model.ProviderSchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	sched.StartTime, sched.EndTime = model.Clock(start), model.Clock(end)
	for _, d := range days {
		sched.WorkingDays = append(sched.WorkingDays, time.Weekday(d))
	}
	return sched, nil
}

func (s *ScheduleStore) PutSchedule(ctx context.Context, sched model.ProviderSchedule) error {
	days := make([]int16, 0, len(sched.WorkingDays))
	for _, d := range sched.WorkingDays {
		days = append(days, int16(d))
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO provider_schedules (provider_id, working_days, start_minute, end_minute, slot_interval_minutes, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (provider_id) DO UPDATE
		SET working_days = EXCLUDED.working_days,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			slot_interval_minutes = EXCLUDED.slot_interval_minutes,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, sched.ProviderID, days, int(sched.StartTime), int(sched.EndTime), sched.SlotIntervalMinutes, sched.Timezone)
	if err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

const breakColumns = `id, provider_id, name, start_minute, end_minute, is_recurring, day_of_week, date`

func scanBreak(row pgx.Row) (model.Break, error) {
	var (
		b          model.Break
		start, end int
		dow        *int16
		date       *time.Time
	)
	if err := row.Scan(&b.ID, &b.ProviderID, &b.Name, &start, &end, &b.IsRecurring, &dow, &date); err != nil {
		return model.Break{}, err
	}
	b.StartTime, b.EndTime = model.Clock(start), model.Clock(end)
	if dow != nil {
		wd := time.Weekday(*dow)
		b.DayOfWeek = &wd
	}
	if date != nil {
		d := dateOf(*date)
		b.Date = &d
	}
	return b, nil
}

func (s *ScheduleStore) ListBreaks(ctx context.Context, providerID string) ([]model.Break, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+breakColumns+`
		FROM provider_breaks
		WHERE provider_id = $1
		ORDER BY start_minute
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var out []model.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scan break: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) AddBreak(ctx context.Context, b model.Break) error {
	var dow *int16
	if b.DayOfWeek != nil {
		v := int16(*b.DayOfWeek)
		dow = &v
	}
	var date *time.Time
	if b.Date != nil {
		t := b.Date.Time()
		date = &t
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO provider_breaks (id, provider_id, name, start_minute, end_minute, is_recurring, day_of_week, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.ProviderID, b.Name, int(b.StartTime), int(b.EndTime), b.IsRecurring, dow, date)
	if err != nil {
		return fmt.Errorf("add break: %w", err)
	}
	return nil
}

func (s *ScheduleStore) DeleteBreak(ctx context.Context, providerID, breakID string) (model.Break, error) {
	b, err := scanBreak(s.db.QueryRow(ctx, `
		DELETE FROM provider_breaks
		WHERE provider_id = $1 AND id = $2
		RETURNING `+breakColumns, providerID, breakID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Break{}, model.ErrBreakNotFound
	}
	if err != nil {
		return model.Break{}, fmt.Errorf("delete break: %w", err)
	}
	return b, nil
}

const blockedColumns = `id, provider_id, date, start_minute, end_minute, reason`

func scanBlocked(row pgx.Row) (model.BlockedSlot, error) {
	var (
		b          model.BlockedSlot
		date       time.Time
		start, end int
	)
	if err := row.Scan(&b.ID, &b.ProviderID, &date, &start, &end, &b.Reason); err != nil {
		return model.BlockedSlot{}, err
	}
	b.Date = dateOf(date)
	b.StartTime, b.EndTime = model.Clock(start), model.Clock(end)
	return b, nil
}

func (s *ScheduleStore) ListBlocked(ctx context.Context, providerID string, date model.Date) ([]model.BlockedSlot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+blockedColumns+`
		FROM provider_blocked_slots
		WHERE provider_id = $1 AND date = $2
		ORDER BY start_minute
	`, providerID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list blocked slots: %w", err)
	}
	defer rows.Close()

	var out []model.BlockedSlot
	for rows.Next() {
		b, err := scanBlocked(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blocked slot: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) AddBlocked(ctx context.Context, b model.BlockedSlot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO provider_blocked_slots (id, provider_id, date, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.ProviderID, b.Date.Time(), int(b.StartTime), int(b.EndTime), b.Reason)
	if err != nil {
		return fmt.Errorf("add blocked slot: %w", err)
	}
	return nil
}

func (s *ScheduleStore) DeleteBlocked(ctx context.Context, providerID, blockID string) (model.BlockedSlot, error) {
	b, err := scanBlocked(s.db.QueryRow(ctx, `
		DELETE FROM provider_blocked_slots
		WHERE provider_id = $1 AND id = $2
		RETURNING `+blockedColumns, providerID, blockID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BlockedSlot{}, model.ErrBlockNotFound
	}
	if err != nil {
		return model.BlockedSlot{}, fmt.Errorf("delete blocked slot: %w", err)
	}
	return b, nil
}

func (s *ScheduleStore) GetService(ctx context.Context, serviceID string) (model.Service, error) {
	var svc model.Service
	err := s.db.QueryRow(ctx, `
		SELECT id, provider_id, name, duration_minutes, buffer_minutes, price_cents
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.DurationMinutes, &svc.BufferMinutes, &svc.PriceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, model.ErrServiceNotFound
	}
	if err != nil {
		return model.Service{}, fmt.Errorf("get service: %w", err)
	}
	return svc, nil
}

func (s *ScheduleStore) PutService(ctx context.Context, svc model.Service) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO services (id, provider_id, name, duration_minutes, buffer_minutes, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET provider_id = EXCLUDED.provider_id,
			name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			buffer_minutes = EXCLUDED.buffer_minutes,
			price_cents = EXCLUDED.price_cents
	`, svc.ID, svc.ProviderID, svc.Name, svc.DurationMinutes, svc.BufferMinutes, svc.PriceCents)
	if err != nil {
		return fmt.Errorf("put service: %w", err)
	}
	return nil
}
