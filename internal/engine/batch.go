package engine

import (
	"time"

	"github.com/google/uuid"
)

// RawTransaction is an unordered set of item names, as handed to the engine
// by an upstream producer before it is sorted into f_list order at the
// batch boundary.
type RawTransaction []string

// BatchMetadata describes one chunk of a batch. ChunkUUID is assigned by the
// upstream producer and carried through purely for log correlation; the
// engine never branches on it.
//
// StartNewWindow controls whether this batch's processing advances the
// Pattern Tree to a new quarter (the normal case) or folds its contribution
// into the window slot left open by the previous batch, for a producer
// re-submitting a correction to data it already sent. nil means "true" (the
// default from the original processBatchTransactions signature). Any chunk
// of the batch may set it; the last non-nil value seen is the one acted on
// at batch finalization.
type BatchMetadata struct {
	BatchID              uint64
	ChunkUUID            uuid.UUID
	IsLastChunk          bool
	ReceivedAt           time.Time
	ChunkIndex           int
	TransactionsPerEvent float64
	StartNewWindow       *bool
}

// Batch is one chunk of transactions belonging to a batch, as produced by
// the upstream parser/sample-mapper.
type Batch struct {
	Meta BatchMetadata
	Data []RawTransaction
}

// accumulator collects the chunks of a single in-flight batch until its
// IsLastChunk chunk arrives.
type accumulator struct {
	batchID              uint64
	transactions         []RawTransaction
	chunkCount           int
	transactionsPerEvent float64
	startNewWindow       bool
}

func newAccumulator(batchID uint64) *accumulator {
	return &accumulator{batchID: batchID, transactionsPerEvent: 1.0, startNewWindow: true}
}

func (a *accumulator) absorb(b Batch) {
	a.transactions = append(a.transactions, b.Data...)
	a.chunkCount++
	if b.Meta.TransactionsPerEvent > 0 {
		a.transactionsPerEvent = b.Meta.TransactionsPerEvent
	}
	if b.Meta.StartNewWindow != nil {
		a.startNewWindow = *b.Meta.StartNewWindow
	}
}
