package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/patterntree"
	"github.com/streamminer/streamminer/internal/ttw"
)

// ErrDeserialization is returned by LoadState when the persisted state file
// is malformed. The engine is left untouched.
var ErrDeserialization = fmt.Errorf("engine: malformed persisted state")

// reservedTransactionsPerBatch and reservedEventsPerBatch mark a trailer line
// carrying one of the engine's two batch-level windows rather than a
// pattern-tree entry.
const (
	reservedTransactionsPerBatch = "transactionsPerBatch"
	reservedEventsPerBatch       = "eventsPerBatch"
)

type reservedWindowLine struct {
	Reserved string         `json:"reserved"`
	Window   ttw.VariantMap `json:"tilted time window"`
}

// SaveState writes the engine's Pattern Tree, transactionsPerBatch, and
// eventsPerBatch to path as a single text file: a JSON metadata line, one
// line per pattern, then two reserved trailer lines for the batch-level
// windows. The write is atomic: a temp file in the same directory is
// written and fsynced, then renamed over path.
//
// SaveState refuses to run while a batch has unacknowledged chunks in
// flight (ErrMidBatchSave): currentQuarter only advances at a batch
// boundary, so a save mid-batch could persist patterns from this batch
// without the quarter advance that is supposed to accompany them.
func (e *Engine) SaveState(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasPending {
		return ErrMidBatchSave
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".streamminer-state-*.tmp")
	if err != nil {
		return fmt.Errorf("engine: creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	bw := bufio.NewWriter(tmp)
	if err := e.tree.Serialize(bw, e.interner.Lookup); err != nil {
		tmp.Close()
		return fmt.Errorf("engine: serializing pattern tree: %w", err)
	}
	for _, rw := range []struct {
		name string
		w    *ttw.Window
	}{
		{reservedTransactionsPerBatch, e.transactionsPerBatch},
		{reservedEventsPerBatch, e.eventsPerBatch},
	} {
		b, err := json.Marshal(reservedWindowLine{Reserved: rw.name, Window: rw.w.ToVariantMap()})
		if err != nil {
			tmp.Close()
			return fmt.Errorf("engine: encoding %s: %w", rw.name, err)
		}
		if _, err := bw.Write(b); err != nil {
			tmp.Close()
			return err
		}
		if _, err := bw.Write([]byte{'\n'}); err != nil {
			tmp.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("engine: flushing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("engine: syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("engine: closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("engine: renaming temp state file into place: %w", err)
	}
	return nil
}

// LoadState replaces the engine's Pattern Tree and batch-level windows with
// the contents of path, as previously written by SaveState. Item names are
// re-interned through the engine's existing Interner, so an item that
// appeared in a previous process's persisted state keeps a stable identity
// only if names round-trip identically; new names are assigned fresh IDs.
//
// The f_list and per-item support counters are not persisted (the spec's
// wire format has no slot for them); they rebuild naturally from the first
// batch processed after load. runningEvents/runningTransactions are
// approximated as the sum of whatever the reloaded windows still have
// filled in, which is itself a lossy quantity by the tilted window's own
// design.
//
// LoadState refuses to run while a batch has unacknowledged chunks in
// flight (ErrMidBatchSave), matching SaveState.
func (e *Engine) LoadState(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasPending {
		return ErrMidBatchSave
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("engine: opening state file: %w", err)
	}
	defer f.Close()

	treeLines, reservedLines, err := splitReservedLines(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}

	tree, err := patterntree.Deserialize(bytes.NewReader(treeLines), e.interner.Intern, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}

	windows := map[string]*ttw.Window{}
	for _, line := range reservedLines {
		var rw reservedWindowLine
		if err := json.Unmarshal(line, &rw); err != nil {
			return fmt.Errorf("%w: decoding reserved line: %v", ErrDeserialization, err)
		}
		windows[rw.Reserved] = ttw.FromVariantMap(tree.Definition(), rw.Window)
	}
	txnWindow, ok := windows[reservedTransactionsPerBatch]
	if !ok {
		return fmt.Errorf("%w: missing %s trailer", ErrDeserialization, reservedTransactionsPerBatch)
	}
	evtWindow, ok := windows[reservedEventsPerBatch]
	if !ok {
		return fmt.Errorf("%w: missing %s trailer", ErrDeserialization, reservedEventsPerBatch)
	}

	e.def = tree.Definition()
	e.tree = tree
	e.transactionsPerBatch = txnWindow
	e.eventsPerBatch = evtWindow
	e.itemSupport = make(map[item.ID]int64)
	e.fList = nil

	lastBucket := tree.Definition().NumBuckets - 1
	e.runningTransactions = txnWindow.GetSupportForRange(0, lastBucket)
	e.runningEvents = evtWindow.GetSupportForRange(0, lastBucket)
	return nil
}

// splitReservedLines partitions r's lines into the pattern-tree portion
// (the metadata line plus every ordinary pattern line, suitable to hand to
// patterntree.Deserialize unchanged) and the reserved trailer lines.
func splitReservedLines(r io.Reader) (treeLines []byte, reserved [][]byte, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var tree bytes.Buffer
	for sc.Scan() {
		line := sc.Bytes()
		var probe struct {
			Reserved string `json:"reserved"`
		}
		if jerr := json.Unmarshal(line, &probe); jerr == nil && probe.Reserved != "" {
			reserved = append(reserved, append([]byte(nil), line...))
			continue
		}
		tree.Write(line)
		tree.WriteByte('\n')
	}
	if sc.Err() != nil {
		return nil, nil, sc.Err()
	}
	return tree.Bytes(), reserved, nil
}
