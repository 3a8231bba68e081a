package middleware

import (
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDKey = "request_id"
const LoggerKey = "logger"

// maxRequestIDLen bounds client-supplied request IDs so log lines stay sane.
const maxRequestIDLen = 64

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// RequestIDMiddleware propagates the client's X-Request-ID when it is
// well-formed, otherwise mints a fresh one. The ID is stored in the gin
// context, echoed back on the response, and bound into a per-request logger.
func RequestIDMiddleware(baseLogger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if !validRequestID(reqID) {
			reqID = uuid.New().String()
		}
		c.Set(RequestIDKey, reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)

		c.Set(LoggerKey, logging.WithRequestID(baseLogger, reqID))

		c.Next()
	}
}
