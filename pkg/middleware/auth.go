package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/bookrag/pkg/errors"
)

// BearerAuth returns a middleware that validates the Authorization
// header against a static key list. An empty key list disables
// authentication, which is only meant for local development.
func BearerAuth(keys []string) gin.HandlerFunc {
	if len(keys) == 0 {
		logger.Warnw("No API keys configured, authentication disabled")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			AbortWithError(c, errors.ErrUnauthorized)
			return
		}

		for _, key := range keys {
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
				c.Next()
				return
			}
		}
		AbortWithError(c, errors.ErrUnauthorized)
	}
}
