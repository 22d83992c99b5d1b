package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/bookrag/internal/bookrag/metrics"
	"github.com/kart-io/bookrag/internal/model"
)

// Health reports overall readiness and per-book status. It is served
// without authentication.
func (h *Handler) Health(c *gin.Context) {
	status := "initializing"
	if h.registry.AllReady() {
		status = "ready"
	}

	c.JSON(http.StatusOK, model.HealthResponse{
		Status: status,
		Model:  h.registry.ChatModel(),
		Books:  h.registry.Books(),
	})
}

// Books lists the configured books with their index sizes.
func (h *Handler) Books(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"books": h.registry.BookInfos()})
}

// Stats returns query counters.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.Get().Snapshot())
}
