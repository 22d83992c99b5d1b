// Package router wires the bookrag HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/bookrag/internal/bookrag/handler"
	"github.com/kart-io/bookrag/pkg/middleware"
)

// Register mounts all routes on the engine. The health endpoint stays
// open; everything under /v1 requires a Bearer API key.
func Register(engine *gin.Engine, h *handler.Handler, apiKeys []string) {
	engine.GET("/health", h.Health)

	v1 := engine.Group("/v1", middleware.BearerAuth(apiKeys))
	{
		v1.POST("/query", h.Query)
		v1.GET("/books", h.Books)
		v1.GET("/stats", h.Stats)
	}

	logger.Infow("Routes registered", "auth_enabled", len(apiKeys) > 0)
}
