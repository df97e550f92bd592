package engine

import "github.com/streamminer/streamminer/internal/item"

// Stats summarizes one completed batch for UI/monitoring consumers.
type Stats struct {
	DurationMillis  int64
	BatchID         uint64
	Transactions    uint64
	Events          uint64
	UniqueItems     int
	FrequentItems   int
	PatternTreeSize int
}

// EventSink receives the engine's signal surface. Implementations must not
// block; the engine calls these synchronously from the owning task.
type EventSink interface {
	// Analyzing fires when a batch starts (analyzing=true) and finishes
	// (analyzing=false) being processed.
	Analyzing(analyzing bool, batchID uint64)
	// StatsReported fires once per completed batch with summary counts.
	StatsReported(Stats)
	// ProcessedChunkOfBatch fires after each chunk is accepted, whether or
	// not it completed the batch; this is the backpressure acknowledgment.
	ProcessedChunkOfBatch(batchCompleted bool)
	// NewItemsEncountered fires once per batch that interned at least one
	// previously unseen item name.
	NewItemsEncountered(newIDs []item.ID)
}

// NopEventSink discards every event. It is the default sink for an Engine
// constructed without one.
type NopEventSink struct{}

func (NopEventSink) Analyzing(bool, uint64)            {}
func (NopEventSink) StatsReported(Stats)               {}
func (NopEventSink) ProcessedChunkOfBatch(bool)        {}
func (NopEventSink) NewItemsEncountered(ids []item.ID) {}
