package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamminer/streamminer/internal/constraints"
	httperr "github.com/streamminer/streamminer/internal/core/errors"
)

const (
	kindFrequentItemset = "frequent-itemset"
	kindRuleAntecedent  = "rule-antecedent"
	kindRuleConsequent  = "rule-consequent"
)

type addConstraintRequest struct {
	Names []string `json:"names" binding:"required"`
	Type  string   `json:"type" binding:"required"` // "positive" or "negative"
}

// AddConstraintHandler handles POST /v1/constraints/{frequent-itemset,
// rule-antecedent, rule-consequent}, adding one new constraint group of the
// requested type to the named collection.
func (s *Service) AddConstraintHandler(c *gin.Context) {
	kind := c.Param("kind")
	var group *constraints.Constraints
	switch kind {
	case kindFrequentItemset:
		group = s.frequentItemsetCons
	case kindRuleAntecedent:
		group = s.miner.Antecedent
	case kindRuleConsequent:
		group = s.miner.Consequent
	default:
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "unknown constraint collection: " + kind,
		})
		return
	}

	var req addConstraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "invalid constraint group body",
			Details:   err.Error(),
		})
		return
	}

	var t constraints.Type
	switch req.Type {
	case "positive":
		t = constraints.Positive
	case "negative":
		t = constraints.Negative
	default:
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "type must be \"positive\" or \"negative\", got " + req.Type,
		})
		return
	}

	s.cmu.Lock()
	defer s.cmu.Unlock()

	if err := group.AddItemConstraint(req.Names, t); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   err.Error(),
		})
		return
	}
	// Preprocess names already interned; names not yet seen by the engine
	// are preprocessed as they arrive, via NewItemsEncountered.
	for _, name := range req.Names {
		if id, ok := s.interner.LookupID(name); ok {
			group.PreprocessItem(name, id)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"status": "added", "kind": kind})
}

// ResetConstraintsHandler handles DELETE /v1/constraints (resetConstraints):
// every constraint group this service owns is discarded, restoring
// match-everything semantics across the board.
func (s *Service) ResetConstraintsHandler(c *gin.Context) {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	s.frequentItemsetCons.Reset()
	s.miner.Antecedent.Reset()
	s.miner.Consequent.Reset()

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
