package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotkeeper/libs/db"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/storage"
)

type AppointmentStore struct {
	db DB
}

func NewAppointmentStore(db DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

const appointmentColumns = `id, client_id, provider_id, service_id, date, start_minute, end_minute, buffer_minutes,
	status, payment_status, discount, original_price_cents, discount_amount_cents, created_at, updated_at, canceled_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a          model.Appointment
		date       time.Time
		start, end int
		status     string
		payment    string
	)
	err := row.Scan(&a.ID, &a.ClientID, &a.ProviderID, &a.ServiceID, &date, &start, &end, &a.BufferMinutes,
		&status, &payment, &a.Discount, &a.OriginalPriceCents, &a.DiscountAmountCents, &a.CreatedAt, &a.UpdatedAt, &a.CanceledAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = dateOf(date)
	a.StartTime, a.EndTime = model.Clock(start), model.Clock(end)
	a.Status, a.PaymentStatus = model.Status(status), model.PaymentStatus(payment)
	return a, nil
}

func getAppointment(ctx context.Context, q querier, id, suffix string) (model.Appointment, error) {
	a, err := scanAppointment(q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1`+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, model.ErrAppointmentNotFound
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func listProviderDay(ctx context.Context, q querier, providerID string, date model.Date) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND date = $2
		ORDER BY start_minute
	`, providerID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AppointmentStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, s.db, id, "")
}

func (s *AppointmentStore) ListProviderDay(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	return listProviderDay(ctx, s.db, providerID, date)
}

func (s *AppointmentStore) CountByStartTime(ctx context.Context, providerID string, weekday time.Weekday, from, to model.Date) (map[model.Clock]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT start_minute, count(*)
		FROM appointments
		WHERE provider_id = $1
			AND status <> 'canceled'
			AND date >= $2 AND date < $3
			AND extract(dow FROM date)::int = $4
		GROUP BY start_minute
	`, providerID, from.Time(), to.Time(), int(weekday))
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	defer rows.Close()

	counts := map[model.Clock]int{}
	for rows.Next() {
		var start, n int
		if err := rows.Scan(&start, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.Clock(start)] = n
	}
	return counts, rows.Err()
}

// WithinLock takes pg_advisory_xact_lock on key, so the lock is released with the
// transaction on commit, rollback or connection loss.
func (s *AppointmentStore) WithinLock(ctx context.Context, key string, fn func(ctx context.Context, tx storage.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if db.IsExclusionViolation(err) {
			return storage.ErrOverlap
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ListProviderDay(ctx context.Context, providerID string, date model.Date) ([]model.Appointment, error) {
	return listProviderDay(ctx, t.tx, providerID, date)
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return getAppointment(ctx, t.tx, id, " FOR UPDATE")
}

func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, client_id, provider_id, service_id, date, start_minute, end_minute, buffer_minutes,
			 status, payment_status, discount, original_price_cents, discount_amount_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`, a.ID, a.ClientID, a.ProviderID, a.ServiceID, a.Date.Time(), int(a.StartTime), int(a.EndTime), a.BufferMinutes,
		string(a.Status), string(a.PaymentStatus), a.Discount, a.OriginalPriceCents, a.DiscountAmountCents, a.CreatedAt)
	if db.IsExclusionViolation(err) {
		return storage.ErrOverlap
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			payment_status = $3,
			canceled_at = $4,
			updated_at = $5
		WHERE id = $1
	`, a.ID, string(a.Status), string(a.PaymentStatus), a.CanceledAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAppointmentNotFound
	}
	return nil
}

func (t *pgTx) GetReview(ctx context.Context, appointmentID string) (model.Review, bool, error) {
	var r model.Review
	err := t.tx.QueryRow(ctx, `
		SELECT appointment_id, client_id, provider_id, rating, comment, created_at
		FROM appointment_reviews
		WHERE appointment_id = $1
	`, appointmentID).Scan(&r.AppointmentID, &r.ClientID, &r.ProviderID, &r.Rating, &r.Comment, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Review{}, false, nil
	}
	if err != nil {
		return model.Review{}, false, fmt.Errorf("get review: %w", err)
	}
	return r, true, nil
}

func (t *pgTx) InsertReview(ctx context.Context, r model.Review) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointment_reviews (appointment_id, client_id, provider_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.AppointmentID, r.ClientID, r.ProviderID, r.Rating, r.Comment, r.CreatedAt)
	if db.IsUniqueViolation(err) {
		return model.ErrReviewAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// InsertEvent ignores a repeated event id so a retried transaction cannot duplicate a row.
func (t *pgTx) InsertEvent(ctx context.Context, e storage.OutboxEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`, e.ID, e.AggregateType, e.AggregateID, e.Type, e.Payload, e.Traceparent, e.Tracestate, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
