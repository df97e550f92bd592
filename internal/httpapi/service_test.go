package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamminer/streamminer/internal/engine"
	"github.com/streamminer/streamminer/internal/item"
	"github.com/streamminer/streamminer/internal/ttw"
)

func testEngine(t *testing.T) (*engine.Engine, *item.Interner) {
	t.Helper()
	def, err := ttw.NewDefinition(900, []byte("QHDMY"), []int{4, 24, 31, 12, 1})
	require.NoError(t, err)
	in := item.NewInterner()
	eng := engine.New(def, engine.Params{MinSupport: 0.01, MaxSupportError: 0.001}, in, nil, nil)
	return eng, in
}

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng, in := testEngine(t)
	svc := New(eng, in, nil, 0.4, nil, nil, nil)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r, svc
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func acceptOneBatch(t *testing.T, r *gin.Engine) {
	t.Helper()
	resp := postJSON(t, r, "/v1/batches", map[string]interface{}{
		"batch_id":      1,
		"is_last_chunk": true,
		"transactions": [][]string{
			{"a", "b"},
			{"a", "b"},
			{"a", "b"},
			{"a"},
			{"b"},
		},
	})
	require.Equal(t, http.StatusAccepted, resp.Code)
}

func TestHealthHandler_ReportsHealthyWithoutAudit(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAcceptChunkHandler_AcceptsLastChunkAndMines(t *testing.T) {
	r, svc := newTestRouter(t)
	acceptOneBatch(t, r)
	assert.Greater(t, svc.eng.PatternTreeSize(), 0)
}

func TestAcceptChunkHandler_UnknownBatchRejected(t *testing.T) {
	r, _ := newTestRouter(t)
	acceptOneBatch(t, r)

	resp := postJSON(t, r, "/v1/batches", map[string]interface{}{
		"batch_id":      1,
		"is_last_chunk": false,
		"transactions":  [][]string{{"c"}},
	})
	// batch 1 already completed; a non-final chunk starts a fresh
	// accumulator for batch 1, so this should be accepted, not rejected.
	assert.Equal(t, http.StatusAccepted, resp.Code)

	resp = postJSON(t, r, "/v1/batches", map[string]interface{}{
		"batch_id":      2,
		"is_last_chunk": true,
		"transactions":  [][]string{{"c"}},
	})
	// batch 1 is still in flight (its non-final chunk was accepted above),
	// so a chunk for a different batch id must be rejected.
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestMineRulesHandler_ReturnsRulesAboveThreshold(t *testing.T) {
	r, _ := newTestRouter(t)
	acceptOneBatch(t, r)

	req := httptest.NewRequest(http.MethodGet, "/v1/rules?from=0&to=0&min_confidence=0.1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Rules []ruleResponse `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Rules)
}

func TestConstraintsHandlers_AddAndReset(t *testing.T) {
	r, svc := newTestRouter(t)
	acceptOneBatch(t, r)

	resp := postJSON(t, r, "/v1/constraints/frequent-itemset", map[string]interface{}{
		"names": []string{"a"},
		"type":  "positive",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.False(t, svc.frequentItemsetCons.Empty())

	req := httptest.NewRequest(http.MethodDelete, "/v1/constraints", nil)
	delResp := httptest.NewRecorder()
	r.ServeHTTP(delResp, req)
	require.Equal(t, http.StatusOK, delResp.Code)
	assert.True(t, svc.frequentItemsetCons.Empty())
}

func TestConstraintsHandler_UnknownKindRejected(t *testing.T) {
	r, _ := newTestRouter(t)
	resp := postJSON(t, r, "/v1/constraints/bogus", map[string]interface{}{
		"names": []string{"a"},
		"type":  "positive",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStateHandlers_SaveThenLoadRoundTrips(t *testing.T) {
	r, svc := newTestRouter(t)
	acceptOneBatch(t, r)

	dir := t.TempDir()
	path := dir + "/state.jsonl"

	resp := postJSON(t, r, "/v1/state/save", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = postJSON(t, r, "/v1/state/load", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Greater(t, svc.eng.PatternTreeSize(), 0)
}
