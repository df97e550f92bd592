package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	httperr "github.com/streamminer/streamminer/internal/core/errors"
	"github.com/streamminer/streamminer/internal/rules"
)

// ruleResponse is one association rule, with item ids resolved back to
// names for the wire response.
type ruleResponse struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Support    int64    `json:"support"`
	Confidence string   `json:"confidence"`
}

func (s *Service) toRuleResponse(r rules.AssociationRule) ruleResponse {
	return ruleResponse{
		Antecedent: s.resolveNames(r.Antecedent),
		Consequent: s.resolveNames(r.Consequent),
		Support:    r.Support,
		Confidence: r.Confidence.String(),
	}
}

// mineRulesQuery binds GET /v1/rules?from=&to=&min_confidence=.
// From/To intentionally have no "required" binding tag: 0 is a legitimate
// bucket index and go-playground/validator's required check treats a
// numeric zero value as absent.
type mineRulesQuery struct {
	From          int      `form:"from"`
	To            int      `form:"to"`
	MinConfidence *float64 `form:"min_confidence"`
}

func (s *Service) minConfidenceOrDefault(override *float64) decimal.Decimal {
	if override == nil {
		return s.defaultMinConfidence
	}
	return decimal.NewFromFloat(*override)
}

// mineRules runs the rule-mining algorithm over [from,to] using the
// service's current frequent-itemset/antecedent/consequent constraint
// groups. Caller must hold s.cmu for reading.
func (s *Service) mineRules(from, to int, minConfidence decimal.Decimal) []rules.AssociationRule {
	frequent := s.eng.FrequentItemsetsInRange(s.frequentItemsetCons, from, to)
	return s.miner.MineRules(s.eng.PatternTree(), frequent, from, to, minConfidence)
}

// MineRulesHandler handles GET /v1/rules?from=&to= (mineRules).
func (s *Service) MineRulesHandler(c *gin.Context) {
	var q mineRulesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "invalid rule query parameters",
			Details:   err.Error(),
		})
		return
	}

	s.cmu.RLock()
	mined := s.mineRules(q.From, q.To, s.minConfidenceOrDefault(q.MinConfidence))
	s.cmu.RUnlock()

	resp := make([]ruleResponse, len(mined))
	for i, r := range mined {
		resp[i] = s.toRuleResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"rules": resp})
}

// compareRulesQuery binds GET /v1/rules/compare.
type compareRulesQuery struct {
	FromOld       int      `form:"fromOld"`
	ToOld         int      `form:"toOld"`
	FromNew       int      `form:"fromNew"`
	ToNew         int      `form:"toNew"`
	MinConfidence *float64 `form:"min_confidence"`
}

type rulePairResponse struct {
	Antecedent      []string `json:"antecedent"`
	Consequent      []string `json:"consequent"`
	OlderSupport    int64    `json:"older_support"`
	NewerSupport    int64    `json:"newer_support"`
	OlderConfidence string   `json:"older_confidence"`
	NewerConfidence string   `json:"newer_confidence"`
	DeltaConfidence string   `json:"delta_confidence"`
	DeltaSupport    int64    `json:"delta_support"`
	RelativeSupport string   `json:"relative_support"`
}

// CompareRulesHandler handles GET /v1/rules/compare (mineAndCompareRules).
func (s *Service) CompareRulesHandler(c *gin.Context) {
	var q compareRulesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "invalid rule comparison query parameters",
			Details:   err.Error(),
		})
		return
	}

	minConf := s.minConfidenceOrDefault(q.MinConfidence)

	s.cmu.RLock()
	older := s.mineRules(q.FromOld, q.ToOld, minConf)
	newer := s.mineRules(q.FromNew, q.ToNew, minConf)
	s.cmu.RUnlock()

	eventsOld := s.eng.EventsInRange(q.FromOld, q.ToOld)
	eventsNew := s.eng.EventsInRange(q.FromNew, q.ToNew)
	result := rules.CompareRules(older, newer, eventsOld, eventsNew)

	intersected := make([]rulePairResponse, len(result.Intersected))
	for i, p := range result.Intersected {
		intersected[i] = rulePairResponse{
			Antecedent:      s.resolveNames(p.Antecedent),
			Consequent:      s.resolveNames(p.Consequent),
			OlderSupport:    p.OlderSupport,
			NewerSupport:    p.NewerSupport,
			OlderConfidence: p.OlderConfidence.String(),
			NewerConfidence: p.NewerConfidence.String(),
			DeltaConfidence: p.DeltaConfidence.String(),
			DeltaSupport:    p.DeltaSupport,
			RelativeSupport: p.RelativeSupport.String(),
		}
	}
	olderOnly := make([]ruleResponse, len(result.OlderOnly))
	for i, r := range result.OlderOnly {
		olderOnly[i] = s.toRuleResponse(r)
	}
	newerOnly := make([]ruleResponse, len(result.NewerOnly))
	for i, r := range result.NewerOnly {
		newerOnly[i] = s.toRuleResponse(r)
	}

	c.JSON(http.StatusOK, gin.H{
		"intersected": intersected,
		"older_only":  olderOnly,
		"newer_only":  newerOnly,
	})
}
