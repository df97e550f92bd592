// Package constraints implements positive/negative itemset-matching groups
// used to filter frequent itemsets, rule antecedents, and rule consequents.
package constraints

import (
	"fmt"

	"github.com/streamminer/streamminer/internal/item"
)

// Type identifies which side of a matching predicate a group belongs to.
type Type int

const (
	// Positive groups require the itemset to intersect them.
	Positive Type = iota
	// Negative groups require the itemset to be disjoint from them.
	Negative
)

// group is one positive or negative constraint group: a set of item names,
// plus the ids that have been interned for those names so far.
type group struct {
	names map[string]struct{}
	ids   map[item.ID]struct{}
}

func newGroup() *group {
	return &group{
		names: make(map[string]struct{}),
		ids:   make(map[item.ID]struct{}),
	}
}

// Constraints holds the positive and negative groups an itemset is matched
// against. An empty Constraints matches everything.
type Constraints struct {
	groups map[Type][]*group
}

// New returns an empty Constraints.
func New() *Constraints {
	return &Constraints{groups: make(map[Type][]*group)}
}

// AddItemConstraint appends a new group of the given type. names must be
// non-empty.
func (c *Constraints) AddItemConstraint(names []string, t Type) error {
	if len(names) == 0 {
		return fmt.Errorf("constraints: empty constraint group")
	}
	g := newGroup()
	for _, n := range names {
		g.names[n] = struct{}{}
	}
	c.groups[t] = append(c.groups[t], g)
	return nil
}

// PreprocessItem records that name has been interned as id, adding id to
// every group (of any type) that names it.
func (c *Constraints) PreprocessItem(name string, id item.ID) {
	for _, groups := range c.groups {
		for _, g := range groups {
			if _, ok := g.names[name]; ok {
				g.ids[id] = struct{}{}
			}
		}
	}
}

// MatchItemset reports whether itemset satisfies every Positive group (it
// intersects each one) and every Negative group (it is disjoint from each
// one).
func (c *Constraints) MatchItemset(itemset []item.ID) bool {
	set := make(map[item.ID]struct{}, len(itemset))
	for _, id := range itemset {
		set[id] = struct{}{}
	}

	for _, g := range c.groups[Positive] {
		if !intersects(g.ids, set) {
			return false
		}
	}
	for _, g := range c.groups[Negative] {
		if intersects(g.ids, set) {
			return false
		}
	}
	return true
}

// MatchItemsetByName reports whether the set of item names satisfies the
// same predicate as MatchItemset, but matching directly on names rather
// than interned ids (useful before an item has been interned).
func (c *Constraints) MatchItemsetByName(names []string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	for _, g := range c.groups[Positive] {
		if !intersectsNames(g.names, set) {
			return false
		}
	}
	for _, g := range c.groups[Negative] {
		if intersectsNames(g.names, set) {
			return false
		}
	}
	return true
}

// CanSatisfy reports whether a growing FP-Growth suffix could still end up
// matching c once extended with items drawn from remainingCandidates. It is
// used by constraintsToPreprocess to prune branches early: a Negative group
// already intersected by current can never be escaped, and a Positive group
// neither intersected by current nor reachable from remainingCandidates can
// never be satisfied.
func (c *Constraints) CanSatisfy(current []item.ID, remainingCandidates []item.ID) bool {
	currentSet := make(map[item.ID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	reachable := make(map[item.ID]struct{}, len(current)+len(remainingCandidates))
	for id := range currentSet {
		reachable[id] = struct{}{}
	}
	for _, id := range remainingCandidates {
		reachable[id] = struct{}{}
	}

	for _, g := range c.groups[Negative] {
		if intersects(g.ids, currentSet) {
			return false
		}
	}
	for _, g := range c.groups[Positive] {
		if !intersects(g.ids, reachable) {
			return false
		}
	}
	return true
}

// Reset discards every group, restoring the match-everything state.
func (c *Constraints) Reset() {
	c.groups = make(map[Type][]*group)
}

// Empty reports whether c has no constraint groups at all.
func (c *Constraints) Empty() bool {
	return len(c.groups[Positive]) == 0 && len(c.groups[Negative]) == 0
}

func intersects(a map[item.ID]struct{}, b map[item.ID]struct{}) bool {
	for id := range b {
		if _, ok := a[id]; ok {
			return true
		}
	}
	return false
}

func intersectsNames(a map[string]struct{}, b map[string]struct{}) bool {
	for n := range b {
		if _, ok := a[n]; ok {
			return true
		}
	}
	return false
}
