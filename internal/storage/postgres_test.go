package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresInsert(t *testing.T) {
	s, mock := newMockStore(t)
	smp := sample("e1", "SAT-001", 1000)

	mock.ExpectExec(regexp.QuoteMeta(pgInsert)).
		WithArgs("e1", "SAT-001", int64(1000), 50.0, 1, 100, 0.9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := s.Insert(context.Background(), smp)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(pgInsert)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := s.Insert(context.Background(), sample("e1", "SAT-001", 1000))
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuery(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"event_id", "sat_id", "ts_ms", "latency_ms", "dropped_packets", "sent_packets", "link_quality"}).
		AddRow("e1", "SAT-001", int64(1000), 40.0, 0, 100, 0.95).
		AddRow("e2", "SAT-001", int64(2000), 60.0, 2, 100, 0.85)
	mock.ExpectQuery(regexp.QuoteMeta(pgSelect)).
		WithArgs("SAT-001", int64(500)).
		WillReturnRows(rows)

	got, err := s.Query(context.Background(), "SAT-001", 500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[1].EventID)
	assert.Equal(t, 2, got[1].DroppedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryClassifiesErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(pgSelect)).
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})
	_, err := s.Query(context.Background(), "SAT-001", 0)
	assert.True(t, errors.Is(err, ErrUnreachable))

	mock.ExpectQuery(regexp.QuoteMeta(pgSelect)).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})
	_, err = s.Query(context.Background(), "SAT-001", 0)
	assert.True(t, errors.Is(err, ErrStore))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(pgSchema)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(pgIndexTs)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(pgIndexSat)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
