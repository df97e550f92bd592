// Package patterntree implements the prefix tree of frequent itemsets, each
// node carrying a Tilted Time Window of that itemset's support history.
package patterntree

import (
	"sync/atomic"

	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/ttw"
)

var nodeSeq uint64

func nextNodeID() uint64 {
	return atomic.AddUint64(&nodeSeq, 1)
}

// Node is one node of a PatternTree: the item that extends its parent's
// itemset, and the TiltedTimeWindow tracking that itemset's support over
// time. The root node's ItemID is item.Root and it carries no window.
type Node struct {
	ItemID   item.ID
	Window   *ttw.Window
	NodeID   uint64
	parent   *Node
	children map[item.ID]*Node
	order    []item.ID
}

func newNode(id item.ID, parent *Node, def *ttw.Definition) *Node {
	n := &Node{
		ItemID:   id,
		NodeID:   nextNodeID(),
		parent:   parent,
		children: make(map[item.ID]*Node),
	}
	if id != item.Root {
		n.Window = ttw.NewWindow(def)
	}
	return n
}

// Parent returns n's parent, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns n's children in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.order))
	for i, id := range n.order {
		out[i] = n.children[id]
	}
	return out
}

func (n *Node) child(id item.ID) (*Node, bool) {
	c, ok := n.children[id]
	return c, ok
}

func (n *Node) addChild(c *Node) {
	n.children[c.ItemID] = c
	n.order = append(n.order, c.ItemID)
}

// numDescendants counts n's children, grandchildren, and so on.
func (n *Node) numDescendants() int {
	total := len(n.order)
	for _, c := range n.Children() {
		total += c.numDescendants()
	}
	return total
}

// itemsetFor reconstructs the itemset represented by n, walking up to the
// root.
func itemsetFor(n *Node) []item.ID {
	var out []item.ID
	for cur := n; cur != nil && cur.ItemID != item.Root; cur = cur.parent {
		out = append(out, cur.ItemID)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
