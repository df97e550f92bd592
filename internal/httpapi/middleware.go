package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware stamps every request with a request ID, taken from the
// X-Request-Id header if the caller supplied one, otherwise minted fresh.
// It is attached to the gin context and echoed back on the response so
// callers can correlate a request with this service's logs.
func requestIDMiddleware(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Set("request_id", id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func requestLogger(c *gin.Context) {
	c.Next()
	if len(c.Errors) > 0 {
		slog.Error("[httpapi] request handled with errors",
			"request_id", c.GetString("request_id"),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"errors", c.Errors.String())
	}
}
