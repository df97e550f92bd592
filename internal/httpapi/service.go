// Package httpapi exposes the mining engine over HTTP: batch ingestion,
// rule mining and comparison, constraint management, and persisted-state
// save/load, wrapping gin-gonic/gin the way internal/server and
// internal/ingestion wrap it.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/streamminer/streamminer/internal/audit"
	"github.com/streamminer/streamminer/internal/constraints"
	"github.com/streamminer/streamminer/internal/engine"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/rules"
)

// Service wires an *engine.Engine up to the HTTP query surface. It also
// implements engine.EventSink so newly-interned item names stay
// preprocessed into this service's own constraint groups (frequent-itemset,
// rule-antecedent, rule-consequent), separate from whatever constraint
// groups the engine itself uses to steer FP-Growth, and so every finalized
// batch gets recorded into the audit store.
type Service struct {
	eng      *engine.Engine
	interner *item.Interner
	audit    audit.Store

	defaultMinConfidence decimal.Decimal

	cmu                 sync.RWMutex
	frequentItemsetCons *constraints.Constraints
	miner               *rules.Miner
}

// New constructs a Service. defaultMinConfidence is used by GET /v1/rules
// and /v1/rules/compare when the request omits min_confidence. auditStore
// may be nil, in which case audit.NoopStore{} is used.
//
// frequentItemsetCons, ruleAntecedentCons, and ruleConsequentCons seed the
// three constraint groups this service owns; any nil argument gets a fresh
// match-everything group. Passing the engine's own report constraints as
// frequentItemsetCons is a natural choice: "report" already determines
// which mined itemsets make it into the Pattern Tree at all, so the query
// surface's frequent-itemset filter and the mining-time report filter stay
// in lockstep instead of drifting into two constraint sets that mean the
// same thing.
func New(eng *engine.Engine, interner *item.Interner, auditStore audit.Store, defaultMinConfidence float64, frequentItemsetCons, ruleAntecedentCons, ruleConsequentCons *constraints.Constraints) *Service {
	if auditStore == nil {
		auditStore = audit.NoopStore{}
	}
	if frequentItemsetCons == nil {
		frequentItemsetCons = constraints.New()
	}
	s := &Service{
		eng:                  eng,
		interner:             interner,
		audit:                auditStore,
		defaultMinConfidence: decimal.NewFromFloat(defaultMinConfidence),
		frequentItemsetCons:  frequentItemsetCons,
		miner:                rules.New(ruleAntecedentCons, ruleConsequentCons),
	}
	eng.SetEventSink(s)
	return s
}

// RegisterRoutes registers the mining HTTP API on r.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.Use(requestIDMiddleware, requestLogger)
	r.GET("/health", s.healthHandler)
	r.POST("/v1/batches", s.AcceptChunkHandler)
	r.GET("/v1/rules", s.MineRulesHandler)
	r.GET("/v1/rules/compare", s.CompareRulesHandler)
	r.POST("/v1/constraints/:kind", s.AddConstraintHandler)
	r.DELETE("/v1/constraints", s.ResetConstraintsHandler)
	r.POST("/v1/state/save", s.SaveStateHandler)
	r.POST("/v1/state/load", s.LoadStateHandler)
}

func (s *Service) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.audit.Ping(ctx); err != nil {
		slog.Error("[httpapi] health check failed: audit store unreachable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "audit store unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"pattern_tree_size": s.eng.PatternTreeSize(),
	})
}

// Analyzing implements engine.EventSink.
func (s *Service) Analyzing(bool, uint64) {}

// StatsReported implements engine.EventSink: records the completed batch
// into the audit store, in addition to logging summary counts.
func (s *Service) StatsReported(stat engine.Stats) {
	slog.Info("[httpapi] batch processed",
		"batch_id", stat.BatchID,
		"duration_ms", stat.DurationMillis,
		"transactions", stat.Transactions,
		"events", stat.Events,
		"pattern_tree_size", stat.PatternTreeSize)

	rec := audit.Record{
		BatchID:         stat.BatchID,
		Transactions:    stat.Transactions,
		Events:          stat.Events,
		UniqueItems:     stat.UniqueItems,
		FrequentItems:   stat.FrequentItems,
		PatternTreeSize: stat.PatternTreeSize,
		DurationMillis:  stat.DurationMillis,
		RecordedAt:      time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.RecordBatch(ctx, rec); err != nil {
		slog.Error("[httpapi] failed to record batch audit row", "batch_id", stat.BatchID, "error", err)
	}
}

// ProcessedChunkOfBatch implements engine.EventSink.
func (s *Service) ProcessedChunkOfBatch(bool) {}

// NewItemsEncountered implements engine.EventSink: every newly-interned
// item name is fed into this service's own constraint groups, mirroring
// how the engine preprocesses its own groups during internIDs.
func (s *Service) NewItemsEncountered(ids []item.ID) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	for _, id := range ids {
		name, ok := s.interner.Lookup(id)
		if !ok {
			continue
		}
		s.frequentItemsetCons.PreprocessItem(name, id)
		s.miner.Antecedent.PreprocessItem(name, id)
		s.miner.Consequent.PreprocessItem(name, id)
	}
}

func (s *Service) resolveNames(ids []item.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		name, ok := s.interner.Lookup(id)
		if !ok {
			name = ""
		}
		out[i] = name
	}
	return out
}
