package audit

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()
	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)
	return stmt
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := &PostgresStore{
		db:         db,
		stmtInsert: mustPrepareStmt(t, db, mock, queryInsertBatchAudit),
	}
	return store, mock, db
}

func TestPostgresStore_RecordBatchInsertsRow(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	rec := Record{
		BatchID:         7,
		ChunkUUID:       uuid.New(),
		Transactions:    100,
		Events:          50,
		UniqueItems:     10,
		FrequentItems:   4,
		PatternTreeSize: 12,
		DurationMillis:  42,
		RecordedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta(queryInsertBatchAudit)).
		WithArgs(
			rec.BatchID,
			rec.ChunkUUID,
			rec.Transactions,
			rec.Events,
			rec.UniqueItems,
			rec.FrequentItems,
			rec.PatternTreeSize,
			rec.DurationMillis,
			rec.RecordedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordBatch(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordBatchWrapsExecError(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	execErr := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta(queryInsertBatchAudit)).
		WillReturnError(execErr)

	err := store.RecordBatch(context.Background(), Record{BatchID: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, execErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PingDelegatesToDB(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStore{db: db}
	mock.ExpectPing()

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopStore_NeverErrors(t *testing.T) {
	s := NoopStore{}
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.RecordBatch(context.Background(), Record{}))
}
