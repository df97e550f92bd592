package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/ttw"
)

func testDefinition(t *testing.T) *ttw.Definition {
	t.Helper()
	def, err := ttw.NewDefinition(900, []byte("QHDMY"), []int{4, 24, 31, 12, 1})
	require.NoError(t, err)
	return def
}

func newTestEngine(t *testing.T, params Params) *Engine {
	t.Helper()
	return New(testDefinition(t), params, item.NewInterner(), nil, nil)
}

func batchOf(batchID uint64, transactions ...RawTransaction) Batch {
	return Batch{
		Meta: BatchMetadata{BatchID: batchID, IsLastChunk: true},
		Data: transactions,
	}
}

func TestEngine_AcceptChunkOfBatchMinesFrequentItemsets(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.2, MaxSupportError: 0.1})

	err := e.AcceptChunkOfBatch(batchOf(1,
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread", "milk", "eggs"},
		RawTransaction{"bread", "milk", "eggs"},
		RawTransaction{"bread"},
	))
	require.NoError(t, err)

	bread, ok := e.interner.LookupID("bread")
	require.True(t, ok)
	milk, ok := e.interner.LookupID("milk")
	require.True(t, ok)

	w, ok := e.tree.GetPatternSupport([]item.ID{bread})
	require.True(t, ok)
	assert.Equal(t, int64(4), w.GetSupportForRange(0, 0))

	w, ok = e.tree.GetPatternSupport([]item.ID{bread, milk})
	require.True(t, ok)
	assert.Equal(t, int64(3), w.GetSupportForRange(0, 0))

	assert.Equal(t, 3, e.interner.Len())
	assert.Greater(t, e.PatternTreeSize(), 0)
}

func TestEngine_MultipleChunksAccumulateBeforeFinalChunk(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.1})

	err := e.AcceptChunkOfBatch(Batch{
		Meta: BatchMetadata{BatchID: 1, IsLastChunk: false, ChunkIndex: 0},
		Data: []RawTransaction{{"a", "b"}},
	})
	require.NoError(t, err)
	assert.True(t, e.hasPending)
	assert.Equal(t, 0, e.interner.Len(), "interning only happens when the batch's last chunk runs the cycle")

	err = e.AcceptChunkOfBatch(Batch{
		Meta: BatchMetadata{BatchID: 1, IsLastChunk: true, ChunkIndex: 1},
		Data: []RawTransaction{{"a", "b"}, {"a"}},
	})
	require.NoError(t, err)
	assert.False(t, e.hasPending)
	assert.Equal(t, 2, e.interner.Len())
}

func TestEngine_RejectsChunkForDifferentInFlightBatch(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.1})

	err := e.AcceptChunkOfBatch(Batch{
		Meta: BatchMetadata{BatchID: 1, IsLastChunk: false},
		Data: []RawTransaction{{"a"}},
	})
	require.NoError(t, err)

	err = e.AcceptChunkOfBatch(Batch{
		Meta: BatchMetadata{BatchID: 2, IsLastChunk: true},
		Data: []RawTransaction{{"a"}},
	})
	assert.ErrorIs(t, err, ErrUnknownBatch)
}

func TestEngine_ConstraintsFilterMinedItemsets(t *testing.T) {
	report := constraints.New()
	require.NoError(t, report.AddItemConstraint([]string{"milk"}, constraints.Negative))

	e := New(testDefinition(t), Params{MinSupport: 0.1, MaxSupportError: 0.1}, item.NewInterner(), nil, report)

	err := e.AcceptChunkOfBatch(batchOf(1,
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread"},
	))
	require.NoError(t, err)

	bread, ok := e.interner.LookupID("bread")
	require.True(t, ok)
	milk, ok := e.interner.LookupID("milk")
	require.True(t, ok)

	_, ok = e.tree.GetPatternSupport([]item.ID{bread})
	assert.True(t, ok, "bread alone does not intersect the negative group")

	_, ok = e.tree.GetPatternSupport([]item.ID{bread, milk})
	assert.False(t, ok, "a pattern containing milk must never reach AddPattern when milk is negatively constrained")
}

func TestEngine_TailDropSweepRemovesDecayedLeavesButKeepsScaffolding(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.5, StrictTailDrop: true})

	require.NoError(t, e.AcceptChunkOfBatch(batchOf(1,
		RawTransaction{"a", "b"},
		RawTransaction{"a", "b"},
		RawTransaction{"a"},
	)))

	a, ok := e.interner.LookupID("a")
	require.True(t, ok)
	b, ok := e.interner.LookupID("b")
	require.True(t, ok)

	_, ok = e.tree.GetPatternSupport([]item.ID{a})
	require.True(t, ok)
	_, ok = e.tree.GetPatternSupport([]item.ID{a, b})
	require.True(t, ok)

	for i := 0; i < 20; i++ {
		require.NoError(t, e.AcceptChunkOfBatch(batchOf(uint64(2+i),
			RawTransaction{"z"},
		)))
	}

	_, stillHasA := e.tree.GetPatternSupport([]item.ID{a})
	_, stillHasAB := e.tree.GetPatternSupport([]item.ID{a, b})
	if !stillHasA {
		assert.False(t, stillHasAB, "removing {a} must only happen once nothing real remains under it")
	}
}

func TestEngine_FrequentItemsetsInRangeUsesMinSupportThreshold(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.5, MaxSupportError: 0.1})

	require.NoError(t, e.AcceptChunkOfBatch(batchOf(1,
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread"},
		RawTransaction{"milk"},
	)))

	results := e.FrequentItemsetsInRange(nil, 0, 0)
	keys := map[string]int64{}
	for _, fi := range results {
		var key string
		for i, id := range fi.Itemset {
			name, _ := e.interner.Lookup(id)
			if i > 0 {
				key += "+"
			}
			key += name
		}
		keys[key] = fi.Support
	}

	assert.Contains(t, keys, "bread")
	assert.Contains(t, keys, "milk", "support 3 strictly exceeds a threshold of 2 (minSupport 0.5 * 4 events)")
	assert.NotContains(t, keys, "bread+milk", "support 2 does not strictly exceed a threshold of 2 (minSupport 0.5 * 4 events)")
}

func TestEngine_StartNewWindowFalseFoldsIntoPreviousWindowWithoutAdvancingQuarter(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.1})

	require.NoError(t, e.AcceptChunkOfBatch(batchOf(1,
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread"},
	)))
	quarterAfterFirstBatch := e.tree.CurrentQuarter()

	startNew := false
	require.NoError(t, e.AcceptChunkOfBatch(Batch{
		Meta: BatchMetadata{BatchID: 2, IsLastChunk: true, StartNewWindow: &startNew},
		Data: []RawTransaction{{"bread", "milk"}},
	}))

	assert.Equal(t, quarterAfterFirstBatch, e.tree.CurrentQuarter(),
		"a correction chunk must not advance the Pattern Tree to a new quarter")

	bread, ok := e.interner.LookupID("bread")
	require.True(t, ok)
	milk, ok := e.interner.LookupID("milk")
	require.True(t, ok)

	w, ok := e.tree.GetPatternSupport([]item.ID{bread, milk})
	require.True(t, ok)
	assert.Equal(t, int64(2), w.GetSupportForRange(0, 0),
		"the correction's support folds into the window slot the first batch opened")
}

func TestEngine_SaveStateRejectsMidBatchSave(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.1})

	require.NoError(t, e.AcceptChunkOfBatch(Batch{
		Meta: BatchMetadata{BatchID: 1, IsLastChunk: false},
		Data: []RawTransaction{{"a"}},
	}))

	dir := t.TempDir()
	err := e.SaveState(filepath.Join(dir, "state.jsonl"))
	assert.ErrorIs(t, err, ErrMidBatchSave)

	err = e.LoadState(filepath.Join(dir, "state.jsonl"))
	assert.ErrorIs(t, err, ErrMidBatchSave)
}

func TestEngine_SaveStateThenLoadStateRoundTrips(t *testing.T) {
	e := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.1})

	require.NoError(t, e.AcceptChunkOfBatch(batchOf(1,
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread", "milk"},
		RawTransaction{"bread"},
	)))

	path := filepath.Join(t.TempDir(), "state.jsonl")
	require.NoError(t, e.SaveState(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reserved":"transactionsPerBatch"`)
	assert.Contains(t, string(raw), `"reserved":"eventsPerBatch"`)

	e2 := newTestEngine(t, Params{MinSupport: 0.1, MaxSupportError: 0.1})
	require.NoError(t, e2.LoadState(path))

	bread, ok := e2.interner.LookupID("bread")
	require.True(t, ok)
	milk, ok := e2.interner.LookupID("milk")
	require.True(t, ok)

	w, ok := e2.tree.GetPatternSupport([]item.ID{bread})
	require.True(t, ok)
	assert.Equal(t, int64(3), w.GetSupportForRange(0, 0))

	w, ok = e2.tree.GetPatternSupport([]item.ID{bread, milk})
	require.True(t, ok)
	assert.Equal(t, int64(2), w.GetSupportForRange(0, 0))

	assert.Equal(t, int64(3), e2.runningTransactions)
	assert.Equal(t, int64(3), e2.runningEvents)

	var again bytes.Buffer
	require.NoError(t, e2.tree.Serialize(&again, e2.interner.Lookup))
	assert.NotEmpty(t, again.String())
}
