// Package engine implements the FP-Stream incremental update loop: per
// batch it builds an FP-Tree, mines frequent itemsets via FP-Growth, merges
// them into a Pattern Tree, and prunes patterns whose tail support has
// decayed below the configured error bound.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/fptree"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/patterntree"
	"github.com/streamminer/streamminer/internal/ttw"
)

// ErrMidBatchSave is returned by SaveState when a batch has accepted chunks
// but has not yet seen its IsLastChunk chunk; state is only ever persisted
// at a batch boundary.
var ErrMidBatchSave = errors.New("engine: cannot save state mid-batch")

// ErrUnknownBatch is returned when a chunk (final or not) arrives for a
// batchID other than the one currently being accumulated.
var ErrUnknownBatch = errors.New("engine: chunk does not continue the in-flight batch")

// Params configures the thresholds an Engine mines and prunes with.
type Params struct {
	MinSupport      float64 // (0,1]
	MaxSupportError float64 // [0, MinSupport)
	StrictTailDrop  bool
}

// Engine is the FP-Stream orchestrator: one Pattern Tree, the running item
// interner, global f_list, and per-batch bookkeeping.
type Engine struct {
	mu sync.Mutex

	def    *ttw.Definition
	params Params

	interner *item.Interner
	tree     *patterntree.Tree

	transactionsPerBatch *ttw.Window
	eventsPerBatch       *ttw.Window

	constraintsPreprocess *constraints.Constraints
	constraintsReport     *constraints.Constraints

	itemSupport         map[item.ID]int64
	fList               []item.ID
	runningEvents       int64
	runningTransactions int64

	current        *accumulator
	currentBatchID uint64
	hasPending     bool

	sink EventSink
}

// New constructs an Engine. preprocess filters FP-Growth branch growth;
// report tags emitted frequent itemsets for consumers without pruning. Both
// may be nil (match-everything).
func New(def *ttw.Definition, params Params, interner *item.Interner, preprocess, report *constraints.Constraints) *Engine {
	if preprocess == nil {
		preprocess = constraints.New()
	}
	if report == nil {
		report = constraints.New()
	}
	return &Engine{
		def:                   def,
		params:                params,
		interner:              interner,
		tree:                  patterntree.New(def),
		transactionsPerBatch:  ttw.NewWindow(def),
		eventsPerBatch:        ttw.NewWindow(def),
		constraintsPreprocess: preprocess,
		constraintsReport:     report,
		itemSupport:           make(map[item.ID]int64),
		sink:                  NopEventSink{},
	}
}

// SetEventSink replaces the engine's event sink.
func (e *Engine) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = NopEventSink{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// PatternTree returns the engine's Pattern Tree for read-only range queries.
// Callers must not mutate it.
func (e *Engine) PatternTree() *patterntree.Tree { return e.tree }

// TransactionsInRange returns the batch-level transaction count over the
// given bucket range.
func (e *Engine) TransactionsInRange(from, to int) int64 {
	return e.transactionsPerBatch.GetSupportForRange(from, to)
}

// EventsInRange returns the batch-level event count over the given bucket
// range.
func (e *Engine) EventsInRange(from, to int) int64 {
	return e.eventsPerBatch.GetSupportForRange(from, to)
}

// PatternTreeSize returns the number of non-root pattern-tree nodes.
func (e *Engine) PatternTreeSize() int { return e.tree.NodeCount() }

// FrequentItemsetsInRange enumerates every pattern whose support over
// [from,to] clears the engine's configured MinSupport, scaled by however
// many events actually occurred in that range, and that satisfies c (nil
// matches everything). This is the query-time counterpart to the per-batch
// mining threshold: mining uses maxSupportError against the current batch,
// queries use minSupport against the queried range.
func (e *Engine) FrequentItemsetsInRange(c *constraints.Constraints, from, to int) []patterntree.FrequentItemset {
	threshold := int64(math.Floor(e.params.MinSupport * float64(e.eventsPerBatch.GetSupportForRange(from, to))))
	return e.tree.GetFrequentItemsetsForRange(threshold, c, from, to)
}

// AcceptChunkOfBatch absorbs one chunk of transactions. If the chunk is
// marked IsLastChunk, the full per-batch cycle runs synchronously before
// this call returns: f_list recompute, FP-Tree/FP-Growth, Pattern Tree
// merge, tail-drop sweep, and quarter advance. Either way,
// sink.ProcessedChunkOfBatch fires before returning, acknowledging the
// chunk per the backpressure contract.
func (e *Engine) AcceptChunkOfBatch(b Batch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		e.current = newAccumulator(b.Meta.BatchID)
	} else if e.current.batchID != b.Meta.BatchID {
		return fmt.Errorf("%w: in-flight batch %d, got chunk for batch %d",
			ErrUnknownBatch, e.current.batchID, b.Meta.BatchID)
	}

	e.current.absorb(b)
	e.hasPending = true
	slog.Debug("[Engine] chunk accepted", "batch_id", b.Meta.BatchID, "chunk_uuid", b.Meta.ChunkUUID, "chunk_index", b.Meta.ChunkIndex)

	if !b.Meta.IsLastChunk {
		e.sink.ProcessedChunkOfBatch(false)
		return nil
	}

	e.sink.Analyzing(true, b.Meta.BatchID)
	start := time.Now()

	e.runBatchCycle(e.current)
	e.currentBatchID = e.current.batchID
	e.current = nil
	e.hasPending = false

	e.sink.Analyzing(false, b.Meta.BatchID)
	e.sink.StatsReported(Stats{
		DurationMillis:  time.Since(start).Milliseconds(),
		BatchID:         e.currentBatchID,
		Transactions:    uint64(e.transactionsPerBatch.GetSupportForRange(0, 0)),
		Events:          uint64(e.eventsPerBatch.GetSupportForRange(0, 0)),
		UniqueItems:     e.interner.Len(),
		FrequentItems:   len(e.fList),
		PatternTreeSize: e.tree.NodeCount(),
	})
	e.sink.ProcessedChunkOfBatch(true)
	return nil
}

// runBatchCycle implements FP-Stream's per-batch cycle (spec §4.6 steps
// 2-8). Caller holds e.mu.
//
// If acc.startNewWindow is false, this batch is a correction to the
// previous batch's contribution rather than a new one: its support is
// folded into the window slot the previous batch left open (by reusing the
// previous batch's ID as the window/pattern-tree update ID, which the
// tilted time window's own fold-on-repeat-updateID rule picks up) and the
// Pattern Tree does not advance to a new quarter.
func (e *Engine) runBatchCycle(acc *accumulator) {
	batchID := acc.batchID
	windowUpdateID := batchID
	if !acc.startNewWindow {
		windowUpdateID = e.currentBatchID
	}
	newIDs := e.internTransactions(acc.transactions)
	if len(newIDs) > 0 {
		e.sink.NewItemsEncountered(newIDs)
	}

	interned := e.internIDs(acc.transactions)
	e.recomputeFList(interned)

	batchTransactionCount := int64(len(acc.transactions))
	batchEventCount := int64(math.Round(float64(batchTransactionCount) * acc.transactionsPerEvent))
	e.runningTransactions += batchTransactionCount
	e.runningEvents += batchEventCount

	sortedAndFiltered := e.sortAndFilterTransactions(interned, e.runningEvents)

	sigmaBatch := int64(math.Ceil(e.params.MaxSupportError * float64(batchEventCount)))
	if sigmaBatch < 1 {
		sigmaBatch = 1
	}

	localFreq := make(map[item.ID]int64)
	for _, txn := range sortedAndFiltered {
		for _, id := range txn {
			localFreq[id]++
		}
	}

	fpTree := fptree.Build(sortedAndFiltered, localFreq, sigmaBatch)
	visitor := &engineVisitor{engine: e, updateID: windowUpdateID}
	if !fpTree.Empty() {
		opts := fptree.Options{
			MinSupport: sigmaBatch,
			Preprocess: e.constraintsPreprocess,
			Report:     e.constraintsReport,
		}
		if err := fptree.Mine(fpTree, opts, visitor); err != nil {
			slog.Error("[Engine] FP-Growth mining failed", "batch_id", batchID, "error", err)
		}
	}

	e.transactionsPerBatch.Append(batchTransactionCount, windowUpdateID)
	e.eventsPerBatch.Append(batchEventCount, windowUpdateID)

	e.sweepTailDrops()
	if acc.startNewWindow {
		e.tree.NextQuarter()
	}
}

func (e *Engine) internTransactions(transactions []RawTransaction) []item.ID {
	for _, txn := range transactions {
		for _, name := range txn {
			e.interner.Intern(name)
		}
	}
	return e.interner.DrainNew()
}

func (e *Engine) internIDs(transactions []RawTransaction) [][]item.ID {
	out := make([][]item.ID, len(transactions))
	for i, txn := range transactions {
		ids := make([]item.ID, 0, len(txn))
		for _, name := range txn {
			id, ok := e.interner.LookupID(name)
			if !ok {
				continue
			}
			ids = append(ids, id)
			e.constraintsPreprocess.PreprocessItem(name, id)
			e.constraintsReport.PreprocessItem(name, id)
		}
		out[i] = ids
	}
	return out
}

func (e *Engine) recomputeFList(transactions [][]item.ID) {
	for _, txn := range transactions {
		seen := make(map[item.ID]struct{}, len(txn))
		for _, id := range txn {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			e.itemSupport[id]++
		}
	}

	ids := make([]item.ID, 0, len(e.itemSupport))
	for id := range e.itemSupport {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := e.itemSupport[ids[i]], e.itemSupport[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	e.fList = ids
}

func (e *Engine) sortAndFilterTransactions(transactions [][]item.ID, totalEvents int64) [][]item.ID {
	rank := make(map[item.ID]int, len(e.fList))
	for i, id := range e.fList {
		rank[id] = i
	}
	threshold := e.params.MaxSupportError * float64(totalEvents)

	out := make([][]item.ID, 0, len(transactions))
	for _, txn := range transactions {
		filtered := make([]item.ID, 0, len(txn))
		for _, id := range txn {
			if float64(e.itemSupport[id]) >= threshold {
				filtered = append(filtered, id)
			}
		}
		sort.Slice(filtered, func(i, j int) bool { return rank[filtered[i]] < rank[filtered[j]] })
		if len(filtered) > 0 {
			out = append(out, filtered)
		}
	}
	return out
}

// sweepTailDrops implements the end-of-batch tail-drop sweep (spec §4.6
// step 7): every pattern that has ever carried real data is checked against
// the droppable-tail rule; a node whose tail drops to nothing AND that has
// no children to preserve is removed outright. Path-only nodes (created as
// scaffolding for a deeper pattern but never themselves appended to) are
// left alone — removing them would discard the real data their descendants
// still carry.
func (e *Engine) sweepTailDrops() {
	lastBucket := e.tree.Definition().NumBuckets - 1
	numGranularities := e.tree.Definition().NumGranularities()

	all := e.tree.GetFrequentItemsetsForRange(-1, nil, 0, lastBucket)
	for _, fi := range all {
		w, ok := e.tree.GetPatternSupport(fi.Itemset)
		if !ok || !w.HasData() {
			continue
		}
		g := calculateDroppableTail(w, e.eventsPerBatch, e.params.MaxSupportError, e.params.StrictTailDrop)
		if g >= numGranularities {
			continue
		}
		w.DropTail(g)
		if w.GetSupportForRange(0, lastBucket) == 0 && !e.tree.HasChildren(fi.Itemset) {
			e.tree.RemovePattern(fi.Itemset)
		}
	}
}

// engineVisitor adapts fptree.Mine's emissions into Pattern Tree insertions.
// updateID is the window update ID to stamp new support with: the current
// batch's own ID when starting a new window, or the previous batch's ID when
// folding a correction into the window slot it already opened.
type engineVisitor struct {
	engine   *Engine
	updateID uint64
}

func (v *engineVisitor) FrequentItemset(itemset []item.ID, support int64, matchesConstraints bool) {
	if !matchesConstraints {
		return
	}
	v.engine.tree.AddPattern(itemset, support, v.updateID)
}

func (v *engineVisitor) BranchCompleted(itemset []item.ID) {}
