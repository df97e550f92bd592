package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // Register postgres driver
)

const connectPingTimeout = 5 * time.Second

// PostgresStore implements Store against a Postgres batch_audit table.
type PostgresStore struct {
	db         *sql.DB
	stmtInsert *sql.Stmt
}

// OpenDB opens dsn and verifies connectivity, without touching schema. The
// caller is expected to run internal/migrations against the returned *sql.DB
// before passing it to NewPostgresStoreFromDB.
func OpenDB(dsn string, maxOpenConns, maxIdleConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open postgres database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to ping postgres database: %w", err)
	}
	return db, nil
}

// NewPostgresStoreFromDB validates that db's batch_audit table exists and
// prepares the store's insert statement. Call this after running
// internal/migrations against db.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	if err := validateSchema(db); err != nil {
		return nil, fmt.Errorf("audit: schema validation failed - did you run migrations?: %w", err)
	}

	stmt, err := db.Prepare(queryInsertBatchAudit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to prepare insert statement: %w", err)
	}

	slog.Info("[audit] postgres store initialized")
	return &PostgresStore{db: db, stmtInsert: stmt}, nil
}

// NewPostgresStore opens dsn, verifies connectivity, validates the
// batch_audit table exists (run internal/migrations first), and prepares
// its insert statement. Equivalent to OpenDB followed by
// NewPostgresStoreFromDB, for callers that already know migrations have run.
func NewPostgresStore(dsn string, maxOpenConns, maxIdleConns int) (*PostgresStore, error) {
	db, err := OpenDB(dsn, maxOpenConns, maxIdleConns)
	if err != nil {
		return nil, err
	}
	store, err := NewPostgresStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// DB returns the underlying *sql.DB, for callers (e.g. internal/migrations)
// that need the raw connection.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func validateSchema(db *sql.DB) error {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'batch_audit'
		)
	`
	if err := db.QueryRow(query).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	if !exists {
		return fmt.Errorf("batch_audit table does not exist")
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordBatch inserts rec as one batch_audit row.
func (s *PostgresStore) RecordBatch(ctx context.Context, rec Record) error {
	_, err := s.stmtInsert.ExecContext(ctx,
		rec.BatchID,
		rec.ChunkUUID,
		rec.Transactions,
		rec.Events,
		rec.UniqueItems,
		rec.FrequentItems,
		rec.PatternTreeSize,
		rec.DurationMillis,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record batch %d: %w", rec.BatchID, err)
	}
	return nil
}

// Close releases the underlying database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
