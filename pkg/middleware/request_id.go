package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/bookrag/pkg/id"
)

const (
	// HeaderXRequestID is the request ID header name.
	HeaderXRequestID = "X-Request-ID"

	// RequestIDKey is the gin context key holding the request ID.
	RequestIDKey = "request_id"
)

// RequestID returns a middleware that assigns a unique ID to each
// request. An incoming X-Request-ID header is honored.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = id.New()
		}
		c.Set(RequestIDKey, rid)
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}

// GetRequestID returns the request ID from the gin context.
func GetRequestID(c *gin.Context) string {
	if rid, ok := c.Get(RequestIDKey); ok {
		if s, ok := rid.(string); ok {
			return s
		}
	}
	return ""
}
