package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stocklot/internal/core/actor"
)

const HeaderRequestID = "X-Request-ID"

// Trace middleware extracts or generates a request ID and propagates it via
// context and response header.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := actor.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}
