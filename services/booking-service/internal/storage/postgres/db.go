// Package postgres implements the stores on PostgreSQL via pgx. Non-overlap of
// appointments is backed by a GiST exclusion constraint; reservations additionally take a
// transaction-scoped advisory lock per (provider, date).
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// DB is the subset of *pgxpool.Pool the stores use, so tests can pass a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func dateOf(t time.Time) model.Date {
	return model.DateOf(t.UTC())
}
