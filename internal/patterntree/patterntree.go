package patterntree

import (
	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/ttw"
)

// FrequentItemset is one result row from a range query: an itemset and its
// support summed over the queried bucket range.
type FrequentItemset struct {
	Itemset []item.ID
	Support int64
}

// Tree is a prefix tree of frequent itemsets. Every node below the root
// carries a TiltedTimeWindow recording that itemset's support history.
type Tree struct {
	root           *Node
	def            *ttw.Definition
	currentQuarter uint64
	nodeCount      int
}

// New returns an empty Tree using def to build every node's window.
func New(def *ttw.Definition) *Tree {
	return &Tree{
		root: newNode(item.Root, nil, def),
		def:  def,
	}
}

// Definition returns the TTWDefinition shared by every node's window.
func (t *Tree) Definition() *ttw.Definition { return t.def }

// NodeCount returns the number of non-root nodes currently in the tree.
func (t *Tree) NodeCount() int { return t.nodeCount }

// CurrentQuarter returns the tree's current quarter counter.
func (t *Tree) CurrentQuarter() uint64 { return t.currentQuarter }

// NextQuarter advances the tree's quarter counter. Sparse patterns that did
// not appear in the elapsed quarter are back-filled with a zero append the
// next time they are touched by AddPattern.
func (t *Tree) NextQuarter() { t.currentQuarter++ }

// AddPattern records support for itemset at updateID, creating any missing
// nodes along the path from the root. Before appending, granularity-0 slots
// are zero-filled up to the current quarter so patterns that skipped
// quarters entirely still line up with patterns that were touched every
// quarter.
func (t *Tree) AddPattern(itemset []item.ID, support int64, updateID uint64) {
	cur := t.root
	for _, id := range itemset {
		next, ok := cur.child(id)
		if !ok {
			next = newNode(id, cur, t.def)
			cur.addChild(next)
			t.nodeCount++
		}
		cur = next
	}

	w := cur.Window
	for uint64(w.UsageOf(0)) < t.currentQuarter {
		w.Append(0, 0)
	}
	w.Append(support, updateID)
}

// GetPatternSupport returns the window tracking itemset's support, and
// whether that exact itemset exists in the tree.
func (t *Tree) GetPatternSupport(itemset []item.ID) (*ttw.Window, bool) {
	n := t.findNode(itemset)
	if n == nil {
		return nil, false
	}
	return n.Window, true
}

func (t *Tree) findNode(itemset []item.ID) *Node {
	cur := t.root
	for _, id := range itemset {
		next, ok := cur.child(id)
		if !ok {
			return nil
		}
		cur = next
	}
	if cur == t.root {
		return nil
	}
	return cur
}

// GetSupportForRange returns itemset's support summed over [from,to], and
// whether itemset exists in the tree at all. itemset must be in the same
// ascending-ItemID order AddPattern inserted it in (every pattern mined by
// fptree.Mine already satisfies this).
func (t *Tree) GetSupportForRange(itemset []item.ID, from, to int) (int64, bool) {
	n := t.findNode(itemset)
	if n == nil {
		return 0, false
	}
	return n.Window.GetSupportForRange(from, to), true
}

// HasChildren reports whether itemset has any child pattern extending it.
// Used by the tail-drop sweep to avoid deleting a node whose own window
// emptied out but whose descendants still carry real data.
func (t *Tree) HasChildren(itemset []item.ID) bool {
	n := t.findNode(itemset)
	return n != nil && len(n.order) > 0
}

// RemovePattern deletes the subtree rooted at itemset, if it exists, and
// reports whether anything was removed.
func (t *Tree) RemovePattern(itemset []item.ID) bool {
	n := t.findNode(itemset)
	if n == nil {
		return false
	}
	t.removeNode(n)
	return true
}

func (t *Tree) removeNode(n *Node) {
	t.nodeCount -= 1 + n.numDescendants()
	p := n.parent
	delete(p.children, n.ItemID)
	for i, id := range p.order {
		if id == n.ItemID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// GetFrequentItemsetsForRange performs a depth-first traversal of the tree,
// emitting every node whose window support over [from,to] strictly exceeds
// minSupport and whose itemset satisfies c. Emission order is the
// depth-first traversal order (children in insertion order).
func (t *Tree) GetFrequentItemsetsForRange(minSupport int64, c *constraints.Constraints, from, to int) []FrequentItemset {
	var out []FrequentItemset
	t.rangeWalk(t.root, nil, minSupport, c, from, to, &out)
	return out
}

func (t *Tree) rangeWalk(n *Node, prefix []item.ID, minSupport int64, c *constraints.Constraints, from, to int, out *[]FrequentItemset) {
	var itemset []item.ID
	if n.ItemID != item.Root {
		itemset = append(append([]item.ID(nil), prefix...), n.ItemID)
		support := n.Window.GetSupportForRange(from, to)
		if support > minSupport && (c == nil || c.MatchItemset(itemset)) {
			*out = append(*out, FrequentItemset{Itemset: itemset, Support: support})
		}
	}
	for _, child := range n.Children() {
		t.rangeWalk(child, itemset, minSupport, c, from, to, out)
	}
}

// GetTotalSupportForRange sums, over the whole tree, the range support of
// every node that either has a matching descendant or, having none, matches
// c itself: matching is tried at the leaves first and retried at an
// ancestor only when nothing below it matched (so a subtree whose deeper
// patterns are all filtered out by a negative constraint can still
// contribute the support of its own matching nodes).
func (t *Tree) GetTotalSupportForRange(c *constraints.Constraints, from, to int) int64 {
	var total int64
	t.totalWalk(t.root, nil, c, from, to, &total)
	return total
}

func (t *Tree) totalWalk(n *Node, prefix []item.ID, c *constraints.Constraints, from, to int, total *int64) bool {
	itemset := prefix
	if n.ItemID != item.Root {
		itemset = append(append([]item.ID(nil), prefix...), n.ItemID)
	}

	matched := false
	for _, child := range n.Children() {
		if t.totalWalk(child, itemset, c, from, to, total) {
			matched = true
		}
	}

	if n.ItemID == item.Root {
		return matched
	}

	if !matched || len(n.order) == 0 {
		matched = c == nil || c.MatchItemset(itemset)
	}
	if matched {
		*total += n.Window.GetSupportForRange(from, to)
	}
	return matched
}
