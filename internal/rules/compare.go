package rules

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/streamminer/streamminer/internal/item"
)

// ComparisonResult is the outcome of comparing association rules mined
// over an older range against a newer one.
type ComparisonResult struct {
	// Intersected holds the rules present in both ranges (same antecedent
	// and consequent), paired with their older and newer confidence and
	// support so the deltas below are reproducible from this alone.
	Intersected []RulePair
	// OlderOnly holds rules mined in the older range with no newer-range
	// counterpart.
	OlderOnly []AssociationRule
	// NewerOnly holds rules mined in the newer range with no older-range
	// counterpart.
	NewerOnly []AssociationRule
}

// RulePair is one rule present in both compared ranges, with the deltas
// spec'd by the comparison algorithm.
type RulePair struct {
	Antecedent []item.ID
	Consequent []item.ID

	OlderSupport int64
	NewerSupport int64

	OlderConfidence decimal.Decimal
	NewerConfidence decimal.Decimal

	// DeltaConfidence is NewerConfidence - OlderConfidence.
	DeltaConfidence decimal.Decimal
	// DeltaSupport is NewerSupport - OlderSupport.
	DeltaSupport int64
	// RelativeSupport is (NewerSupport/eventsInNewerRange) -
	// (OlderSupport/eventsInOlderRange): the change in support expressed
	// as a fraction of each range's own event volume, so ranges of very
	// different length remain comparable.
	RelativeSupport decimal.Decimal
}

func ruleKey(antecedent, consequent []item.ID) string {
	b := make([]byte, 0, (len(antecedent)+len(consequent))*8+1)
	for _, id := range antecedent {
		b = appendItemID(b, id)
	}
	b = append(b, '|')
	for _, id := range consequent {
		b = appendItemID(b, id)
	}
	return string(b)
}

func appendItemID(b []byte, id item.ID) []byte {
	v := int64(id)
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	if v == 0 {
		return append(b, '0', ',')
	}
	start := len(b)
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return append(b, ',')
}

// CompareRules pairs up olderRules and newerRules by (antecedent,
// consequent) identity and computes the deltas spec'd for comparison mode.
func CompareRules(olderRules, newerRules []AssociationRule, eventsInOlderRange, eventsInNewerRange int64) ComparisonResult {
	older := make(map[string]AssociationRule, len(olderRules))
	for _, r := range olderRules {
		older[ruleKey(r.Antecedent, r.Consequent)] = r
	}
	newer := make(map[string]AssociationRule, len(newerRules))
	for _, r := range newerRules {
		newer[ruleKey(r.Antecedent, r.Consequent)] = r
	}

	var result ComparisonResult
	olderEvents := decimal.NewFromInt(eventsInOlderRange)
	newerEvents := decimal.NewFromInt(eventsInNewerRange)

	for key, oldRule := range older {
		newRule, ok := newer[key]
		if !ok {
			result.OlderOnly = append(result.OlderOnly, oldRule)
			continue
		}
		relOld := decimal.Zero
		if eventsInOlderRange != 0 {
			relOld = decimal.NewFromInt(oldRule.Support).Div(olderEvents)
		}
		relNew := decimal.Zero
		if eventsInNewerRange != 0 {
			relNew = decimal.NewFromInt(newRule.Support).Div(newerEvents)
		}
		result.Intersected = append(result.Intersected, RulePair{
			Antecedent:      newRule.Antecedent,
			Consequent:      newRule.Consequent,
			OlderSupport:    oldRule.Support,
			NewerSupport:    newRule.Support,
			OlderConfidence: oldRule.Confidence,
			NewerConfidence: newRule.Confidence,
			DeltaConfidence: newRule.Confidence.Sub(oldRule.Confidence),
			DeltaSupport:    newRule.Support - oldRule.Support,
			RelativeSupport: relNew.Sub(relOld),
		})
	}
	for key, newRule := range newer {
		if _, ok := older[key]; !ok {
			result.NewerOnly = append(result.NewerOnly, newRule)
		}
	}

	sort.Slice(result.Intersected, func(i, j int) bool {
		return ruleKey(result.Intersected[i].Antecedent, result.Intersected[i].Consequent) <
			ruleKey(result.Intersected[j].Antecedent, result.Intersected[j].Consequent)
	})
	sort.Slice(result.OlderOnly, func(i, j int) bool {
		return ruleKey(result.OlderOnly[i].Antecedent, result.OlderOnly[i].Consequent) <
			ruleKey(result.OlderOnly[j].Antecedent, result.OlderOnly[j].Consequent)
	})
	sort.Slice(result.NewerOnly, func(i, j int) bool {
		return ruleKey(result.NewerOnly[i].Antecedent, result.NewerOnly[i].Consequent) <
			ruleKey(result.NewerOnly[j].Antecedent, result.NewerOnly[j].Consequent)
	})

	return result
}
