package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"board-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, presence PresenceCounter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence/:board_id", func(c *gin.Context) {
		if presence == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"connections": presence.ConnectedClients(),
			"board_group": presence.GroupSize(c.Param("board_id")),
		})
	})
}

// PresenceCounter exposes hub occupancy for debugging.
type PresenceCounter interface {
	ConnectedClients() int
	GroupSize(boardID string) int
}
