package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO inbox_events").WithArgs("e1", "payments.status.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs("e1", "payments.status.v1").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs("e2", "payments.status.v1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec("DELETE FROM inbox_events").WithArgs("e1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewRepository(mock)
	ctx := context.Background()

	ok, err := repo.Record(ctx, "e1", "payments.status.v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Record(ctx, "e1", "payments.status.v1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Record(ctx, "e2", "payments.status.v1")
	assert.Error(t, err)

	require.NoError(t, repo.Release(ctx, "e1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryInbox(t *testing.T) {
	m, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	ok, _ := m.Record(ctx, "e1", "t")
	assert.True(t, ok)
	ok, _ = m.Record(ctx, "e1", "t")
	assert.False(t, ok)

	require.NoError(t, m.Release(ctx, "e1"))
	ok, _ = m.Record(ctx, "e1", "t")
	assert.True(t, ok)

	m.Record(ctx, "e2", "t")
	m.Record(ctx, "e3", "t")
	ok, _ = m.Record(ctx, "e1", "t")
	assert.True(t, ok, "evicted ids are accepted again")
}
