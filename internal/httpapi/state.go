package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/streamminer/streamminer/internal/core/errors"
	"github.com/streamminer/streamminer/internal/engine"
)

type statePathRequest struct {
	Path string `json:"path" binding:"required"`
}

func (s *Service) bindStatePath(c *gin.Context) (string, bool) {
	var req statePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "invalid state request body",
			Details:   err.Error(),
		})
		return "", false
	}
	return req.Path, true
}

// SaveStateHandler handles POST /v1/state/save.
func (s *Service) SaveStateHandler(c *gin.Context) {
	path, ok := s.bindStatePath(c)
	if !ok {
		return
	}

	if err := s.eng.SaveState(path); err != nil {
		if errors.Is(err, engine.ErrMidBatchSave) {
			c.JSON(http.StatusConflict, httperr.ErrorResponse{
				ErrorType: httperr.HttpMidBatchError,
				Message:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "failed to save state",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved", "path": path})
}

// LoadStateHandler handles POST /v1/state/load.
func (s *Service) LoadStateHandler(c *gin.Context) {
	path, ok := s.bindStatePath(c)
	if !ok {
		return
	}

	if err := s.eng.LoadState(path); err != nil {
		if errors.Is(err, engine.ErrMidBatchSave) {
			c.JSON(http.StatusConflict, httperr.ErrorResponse{
				ErrorType: httperr.HttpMidBatchError,
				Message:   err.Error(),
			})
			return
		}
		if errors.Is(err, engine.ErrDeserialization) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpDeserializationError,
				Message:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "failed to load state",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "loaded", "path": path})
}
