package fptree

import "github.com/streamminer/streamminer/internal/item"

// Tree is an FP-Tree built from one batch (or one FP-Growth conditional
// pattern base): a root node plus a header table mapping each item to its
// total support and the head of its sibling list.
type Tree struct {
	root   *Node
	header map[item.ID]*headerEntry
}

// newTree returns an empty Tree.
func newTree() *Tree {
	return &Tree{
		root:   newNode(item.Root, nil),
		header: make(map[item.ID]*headerEntry),
	}
}

// weightedPath is one transaction (or conditional-base prefix path) to
// insert, with a multiplicity greater than 1 when it originates from a
// conditional pattern base built from several identical prefixes.
type weightedPath struct {
	items []item.ID
	count int64
}

// Build constructs a Tree from transactions, each assumed already sorted by
// the caller's global frequency order (f_list). itemFreq is used to prune
// items below minSupport before insertion; transactions left empty by that
// pruning are rejected, never inserted as empty paths.
func Build(transactions [][]item.ID, itemFreq map[item.ID]int64, minSupport int64) *Tree {
	t := newTree()
	for _, txn := range transactions {
		filtered := make([]item.ID, 0, len(txn))
		for _, id := range txn {
			if itemFreq[id] >= minSupport {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			continue
		}
		t.insert(filtered, 1)
	}
	return t
}

func buildWeighted(paths []weightedPath) *Tree {
	t := newTree()
	for _, p := range paths {
		if len(p.items) == 0 {
			continue
		}
		t.insert(p.items, p.count)
	}
	return t
}

func (t *Tree) insert(items []item.ID, count int64) {
	cur := t.root
	for _, id := range items {
		child, created := cur.Child(id)
		child.Support += count
		if created {
			t.linkHeader(id, child)
		}
		t.header[id].support += count
		cur = child
	}
}

func (t *Tree) linkHeader(id item.ID, n *Node) {
	e, ok := t.header[id]
	if !ok {
		e = &headerEntry{itemID: id}
		t.header[id] = e
	}
	n.Next = e.head
	e.head = n
}

// Empty reports whether the tree has no transactions at all.
func (t *Tree) Empty() bool {
	return len(t.header) == 0
}

// HeaderItems returns the header-table items in the deterministic iteration
// order FP-Growth recursion requires: ascending support, ties broken by
// ascending ItemID.
func (t *Tree) HeaderItems() []item.ID {
	ordered := orderedHeader(t.header)
	out := make([]item.ID, len(ordered))
	for i, e := range ordered {
		out[i] = e.itemID
	}
	return out
}

// Support returns the total support accumulated for id in this tree.
func (t *Tree) Support(id item.ID) int64 {
	if e, ok := t.header[id]; ok {
		return e.support
	}
	return 0
}

// conditionalBase collects every prefix path leading to item id's nodes
// (excluding id itself), each weighted by that node's support.
func (t *Tree) conditionalBase(id item.ID) []weightedPath {
	e, ok := t.header[id]
	if !ok {
		return nil
	}
	var paths []weightedPath
	for n := e.head; n != nil; n = n.Next {
		var prefix []item.ID
		for p := n.parent; p != nil && p.ItemID != item.Root; p = p.parent {
			prefix = append(prefix, p.ItemID)
		}
		// prefix was collected leaf-to-root; reverse to root-to-leaf order.
		for i, j := 0, len(prefix)-1; i < j; i, j = i+1, j-1 {
			prefix[i], prefix[j] = prefix[j], prefix[i]
		}
		if len(prefix) > 0 {
			paths = append(paths, weightedPath{items: prefix, count: n.Support})
		}
	}
	return paths
}

// ConditionalTree builds the conditional FP-Tree for item id: the tree
// formed from id's prefix paths, pruned at minSupport.
func (t *Tree) ConditionalTree(id item.ID, minSupport int64) *Tree {
	paths := t.conditionalBase(id)
	freq := make(map[item.ID]int64)
	for _, p := range paths {
		for _, pid := range p.items {
			freq[pid] += p.count
		}
	}
	filtered := make([]weightedPath, 0, len(paths))
	for _, p := range paths {
		var items []item.ID
		for _, pid := range p.items {
			if freq[pid] >= minSupport {
				items = append(items, pid)
			}
		}
		if len(items) > 0 {
			filtered = append(filtered, weightedPath{items: items, count: p.count})
		}
	}
	return buildWeighted(filtered)
}
