// Package fptree implements per-batch FP-Tree construction and FP-Growth
// frequent itemset mining.
package fptree

import (
	"sort"
	"sync/atomic"

	"github.com/streamminer/streamminer/internal/item"
)

var nodeSeq uint64

func nextNodeID() uint64 {
	return atomic.AddUint64(&nodeSeq, 1)
}

// Node is one node of an FP-Tree: an item, its accumulated support count
// within this tree, a non-owning parent back-reference, and an insertion-
// ordered set of children. FP-Tree nodes also carry a sibling link (Next)
// threading every node for the same item into the header table's list.
type Node struct {
	ItemID   item.ID
	Support  int64
	NodeID   uint64
	parent   *Node
	children map[item.ID]*Node
	order    []item.ID
	Next     *Node
}

func newNode(id item.ID, parent *Node) *Node {
	return &Node{
		ItemID:   id,
		NodeID:   nextNodeID(),
		parent:   parent,
		children: make(map[item.ID]*Node),
	}
}

// Parent returns n's parent, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Child returns the child for id, creating it (with support 0) if absent.
// The returned bool reports whether the child was newly created.
func (n *Node) Child(id item.ID) (*Node, bool) {
	if c, ok := n.children[id]; ok {
		return c, false
	}
	c := newNode(id, n)
	n.children[id] = c
	n.order = append(n.order, id)
	return c, true
}

// Children returns n's children in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.order))
	for i, id := range n.order {
		out[i] = n.children[id]
	}
	return out
}

// headerEntry is one header-table slot: the total support accumulated for
// an item across the whole tree, and the head of its sibling list.
type headerEntry struct {
	itemID  item.ID
	support int64
	head    *Node
}

// orderedHeader sorts header entries by ascending support, tie-broken by
// ascending ItemID, matching the stability requirement for FP-Growth
// iteration order.
func orderedHeader(entries map[item.ID]*headerEntry) []*headerEntry {
	out := make([]*headerEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].support != out[j].support {
			return out[i].support < out[j].support
		}
		return out[i].itemID < out[j].itemID
	})
	return out
}
