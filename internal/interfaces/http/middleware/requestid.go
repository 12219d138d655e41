package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tresoria/backend/internal/infrastructure/logger"
)

// RequestIDHeader is the header a caller may use to propagate its own
// correlation ID
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key the other middlewares read
const RequestIDKey = "request_id"

// RequestID assigns every request a correlation ID, honoring one supplied
// by the caller, and echoes it back on the response
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		ctx, _ := logger.WithRequestID(c.Request.Context(), logger.FromContext(c.Request.Context()), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID returns the request's correlation ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
