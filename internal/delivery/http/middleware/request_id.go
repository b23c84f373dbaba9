package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Correlation header echoed on every response. Inbound values are kept so
// ids assigned by an upstream proxy survive into the logs.
const headerRequestID = "X-Request-ID"

// RequestID tags each request with a correlation id, minting a UUIDv7 when
// the caller did not send one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			v7, _ := uuid.NewV7()
			id = v7.String()
		}

		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}
