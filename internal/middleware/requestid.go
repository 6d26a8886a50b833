package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader propagates the request identifier to and from callers.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key the request ID is stored under,
	// read by LoggerMiddleware so every log line of a request carries it.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware tags every request with an identifier. Monitoring
// systems delivering alert events often retry through proxies; a caller-
// supplied X-Request-ID is honored so one delivery attempt correlates across
// their logs and ours, otherwise a fresh UUID is assigned. The ID is echoed
// in the response header and stored under RequestIDKey for the logger.
// Registered first in the chain (after recovery) so nothing logs without it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
