package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httperr "github.com/streamminer/streamminer/internal/core/errors"
	"github.com/streamminer/streamminer/internal/engine"
)

// acceptChunkRequest is the JSON body for POST /v1/batches: one chunk of a
// batch, as produced by an upstream parser/sample-mapper. StartNewWindow is
// a pointer so an omitted field defaults to true (advance to a new Pattern
// Tree quarter), rather than false the way a plain bool's zero value would.
type acceptChunkRequest struct {
	BatchID              uint64     `json:"batch_id" binding:"required"`
	ChunkUUID            string     `json:"chunk_uuid"`
	IsLastChunk          bool       `json:"is_last_chunk"`
	ChunkIndex           int        `json:"chunk_index"`
	TransactionsPerEvent float64    `json:"transactions_per_event"`
	StartNewWindow       *bool      `json:"start_new_window"`
	Transactions         [][]string `json:"transactions" binding:"required"`
}

// AcceptChunkHandler handles POST /v1/batches (acceptChunkOfBatch).
func (s *Service) AcceptChunkHandler(c *gin.Context) {
	var req acceptChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "invalid batch chunk body",
			Details:   err.Error(),
		})
		return
	}

	chunkUUID := uuid.New()
	if req.ChunkUUID != "" {
		parsed, err := uuid.Parse(req.ChunkUUID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidJsonError,
				Message:   "invalid chunk_uuid",
				Details:   err.Error(),
			})
			return
		}
		chunkUUID = parsed
	}

	transactions := make([]engine.RawTransaction, len(req.Transactions))
	for i, t := range req.Transactions {
		transactions[i] = engine.RawTransaction(t)
	}

	b := engine.Batch{
		Meta: engine.BatchMetadata{
			BatchID:              req.BatchID,
			ChunkUUID:            chunkUUID,
			IsLastChunk:          req.IsLastChunk,
			ReceivedAt:           time.Now().UTC(),
			ChunkIndex:           req.ChunkIndex,
			TransactionsPerEvent: req.TransactionsPerEvent,
			StartNewWindow:       req.StartNewWindow,
		},
		Data: transactions,
	}

	if err := s.eng.AcceptChunkOfBatch(b); err != nil {
		if errors.Is(err, engine.ErrUnknownBatch) {
			c.JSON(http.StatusConflict, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnknownBatchError,
				Message:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "failed to accept batch chunk",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "chunk_uuid": chunkUUID.String()})
}
