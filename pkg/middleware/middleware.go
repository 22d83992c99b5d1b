// Package middleware provides gin middleware shared by bookrag HTTP
// services.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/bookrag/pkg/errors"
)

// AbortWithError writes the Errno mapped from err and stops the
// handler chain.
func AbortWithError(c *gin.Context, err error) {
	errno := errors.FromError(err)
	c.AbortWithStatusJSON(errno.HTTPStatus(), errno)
}
