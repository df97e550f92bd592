// Package rules mines association rules out of a frequent-itemset range
// snapshot: every non-empty proper antecedent/consequent split of a
// frequent itemset whose confidence clears a threshold.
package rules

import (
	"github.com/shopspring/decimal"

	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/patterntree"
)

// AssociationRule is one antecedent -> consequent rule mined from a
// frequent itemset: antecedent and consequent partition the itemset, both
// non-empty.
type AssociationRule struct {
	Antecedent []item.ID
	Consequent []item.ID
	Support    int64
	Confidence decimal.Decimal
}

// Miner holds the antecedent/consequent constraint groups rules are
// filtered against. Frequent-itemset constraints are applied earlier, by
// the Pattern Tree range query that produces MineRules' input.
type Miner struct {
	Antecedent *constraints.Constraints
	Consequent *constraints.Constraints
}

// New returns a Miner with empty (match-everything) constraint groups for
// any nil argument.
func New(antecedent, consequent *constraints.Constraints) *Miner {
	if antecedent == nil {
		antecedent = constraints.New()
	}
	if consequent == nil {
		consequent = constraints.New()
	}
	return &Miner{Antecedent: antecedent, Consequent: consequent}
}

// MineRules enumerates association rules over every itemset in
// frequentItemsets with two or more items. For each frequent itemset F, it
// walks every non-empty proper subset A (the antecedent), computes
// C = F \ A (the consequent), looks up supp(A) in tree over [from,to], and
// emits the rule iff its confidence clears minConfidence and both sides
// satisfy their constraint groups.
//
// frequentItemsets is expected to come from
// patterntree.Tree.GetFrequentItemsetsForRange(threshold, ...) over the
// same [from,to] range passed here; every itemset's support(F) is already
// known from that call, so only supp(A) needs a fresh tree lookup.
func (m *Miner) MineRules(tree *patterntree.Tree, frequentItemsets []patterntree.FrequentItemset, from, to int, minConfidence decimal.Decimal) []AssociationRule {
	var out []AssociationRule
	for _, fi := range frequentItemsets {
		if len(fi.Itemset) < 2 {
			continue
		}
		for _, split := range properNonEmptySubsets(fi.Itemset) {
			antecedent, consequent := split.subset, split.complement
			if !m.Antecedent.MatchItemset(antecedent) || !m.Consequent.MatchItemset(consequent) {
				continue
			}
			suppA, ok := tree.GetSupportForRange(antecedent, from, to)
			if !ok || suppA == 0 {
				continue
			}
			conf := decimal.NewFromInt(fi.Support).Div(decimal.NewFromInt(suppA))
			if conf.LessThan(minConfidence) {
				continue
			}
			out = append(out, AssociationRule{
				Antecedent: antecedent,
				Consequent: consequent,
				Support:    fi.Support,
				Confidence: conf,
			})
		}
	}
	return out
}

type subsetSplit struct {
	subset     []item.ID
	complement []item.ID
}

// properNonEmptySubsets enumerates every subset of itemset that is
// non-empty and not equal to itemset itself, paired with its complement.
// itemset is assumed small (a mined frequent itemset, not an arbitrary
// set), so the 2^n-2 enumeration is cheap.
func properNonEmptySubsets(itemset []item.ID) []subsetSplit {
	n := len(itemset)
	total := 1 << n
	out := make([]subsetSplit, 0, total-2)
	for mask := 1; mask < total-1; mask++ {
		var subset, complement []item.ID
		for i, id := range itemset {
			if mask&(1<<i) != 0 {
				subset = append(subset, id)
			} else {
				complement = append(complement, id)
			}
		}
		out = append(out, subsetSplit{subset: subset, complement: complement})
	}
	return out
}
