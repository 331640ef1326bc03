// Package inbox remembers which inbound collaborator messages were already applied.
package inbox

import (
	"context"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/slotkeeper/libs/db"
)

type Inbox interface {
	// Record returns false when eventID was seen before.
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	// Release forgets eventID so a redelivery is applied again.
	Release(ctx context.Context, eventID string) error
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db execer
}

func NewRepository(db execer) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

func (r *Repository) Release(ctx context.Context, eventID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID)
	return err
}

// Memory keeps the most recent size event ids. Older ids fall out, so it only suppresses
// redeliveries that arrive while the id is still resident.
type Memory struct {
	seen *lru.Cache[string, string]
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 10000
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Memory{seen: c}, nil
}

func (m *Memory) Record(_ context.Context, eventID, eventType string) (bool, error) {
	found, _ := m.seen.ContainsOrAdd(eventID, eventType)
	return !found, nil
}

func (m *Memory) Release(_ context.Context, eventID string) error {
	m.seen.Remove(eventID)
	return nil
}
