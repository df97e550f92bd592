// Package audit records one row per finalized mining batch to an optional
// durable store, independent of the engine's own in-memory Pattern Tree.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one finalized batch's audit row.
type Record struct {
	BatchID         uint64
	ChunkUUID       uuid.UUID
	Transactions    uint64
	Events          uint64
	UniqueItems     int
	FrequentItems   int
	PatternTreeSize int
	DurationMillis  int64
	RecordedAt      time.Time
}

// Store records finalized batches and reports its own health.
type Store interface {
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// RecordBatch persists one batch's audit row.
	RecordBatch(ctx context.Context, rec Record) error
}
