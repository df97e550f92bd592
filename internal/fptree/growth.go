package fptree

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/item"
)

// Visitor receives the two-channel emission FP-Growth produces per branch:
// FrequentItemset once per candidate suffix that clears minSupport, and
// BranchCompleted once the suffix's whole conditional subtree has been
// explored.
type Visitor interface {
	FrequentItemset(itemset []item.ID, support int64, matchesConstraints bool)
	BranchCompleted(itemset []item.ID)
}

// Options configures one FP-Growth run.
type Options struct {
	MinSupport int64
	// Preprocess, if non-nil, prunes suffix extensions that can never
	// satisfy it (constraintsToPreprocess).
	Preprocess *constraints.Constraints
	// Report, if non-nil, tags each emitted itemset with whether it
	// matches these constraints; it never prunes.
	Report *constraints.Constraints
}

// Mine runs FP-Growth over t, emitting every frequent itemset (of length
// >= 1 beyond the empty suffix) to visitor. It parallelizes expansion across
// the top-level header-table items and reduces their results back to the
// caller in deterministic header order before replaying them to visitor,
// matching the "parallel across items, reduce to the owning task" model.
func Mine(t *Tree, opts Options, visitor Visitor) error {
	return mine(t, nil, opts, visitor, true)
}

func mine(t *Tree, suffix []item.ID, opts Options, visitor Visitor, topLevel bool) error {
	items := t.HeaderItems()
	if len(items) == 0 {
		return nil
	}

	if !topLevel {
		return mineSequential(t, items, suffix, opts, visitor)
	}

	type result struct {
		records []record
	}
	results := make([]result, len(items))

	var g errgroup.Group
	for idx, id := range items {
		idx, id := idx, id
		g.Go(func() error {
			rec := &recorder{}
			if err := mineOne(t, items, idx, id, suffix, opts, rec); err != nil {
				return err
			}
			results[idx] = result{records: rec.records}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		for _, rec := range r.records {
			rec.replay(visitor)
		}
	}
	return nil
}

func mineSequential(t *Tree, items []item.ID, suffix []item.ID, opts Options, visitor Visitor) error {
	for idx, id := range items {
		if err := mineOne(t, items, idx, id, suffix, opts, visitor); err != nil {
			return err
		}
	}
	return nil
}

func mineOne(t *Tree, items []item.ID, idx int, id item.ID, suffix []item.ID, opts Options, visitor Visitor) error {
	support := t.Support(id)
	if support < opts.MinSupport {
		return nil
	}

	suffixPrime := appendSorted(suffix, id)

	if opts.Preprocess != nil {
		remaining := make([]item.ID, 0, len(items)-1)
		for i, other := range items {
			if i != idx {
				remaining = append(remaining, other)
			}
		}
		if !opts.Preprocess.CanSatisfy(suffixPrime, remaining) {
			return nil
		}
	}

	matches := opts.Report == nil || opts.Report.MatchItemset(suffixPrime)
	visitor.FrequentItemset(suffixPrime, support, matches)

	conditional := t.ConditionalTree(id, opts.MinSupport)
	if !conditional.Empty() {
		if err := mine(conditional, suffixPrime, opts, visitor, false); err != nil {
			return err
		}
	}

	visitor.BranchCompleted(suffixPrime)
	return nil
}

func appendSorted(suffix []item.ID, id item.ID) []item.ID {
	out := make([]item.ID, len(suffix)+1)
	copy(out, suffix)
	out[len(suffix)] = id
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// record captures one visitor call so parallel branches can be replayed
// onto the owning task in deterministic order after all goroutines finish.
type record struct {
	itemset   []item.ID
	support   int64
	matches   bool
	completed bool
}

func (r record) replay(v Visitor) {
	if r.completed {
		v.BranchCompleted(r.itemset)
		return
	}
	v.FrequentItemset(r.itemset, r.support, r.matches)
}

// recorder is a Visitor that buffers calls instead of applying them
// immediately, so a goroutine's results can be merged into the owning
// task's call sequence afterward.
type recorder struct {
	mu      sync.Mutex
	records []record
}

func (r *recorder) FrequentItemset(itemset []item.ID, support int64, matches bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record{itemset: itemset, support: support, matches: matches})
}

func (r *recorder) BranchCompleted(itemset []item.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record{itemset: itemset, completed: true})
}
