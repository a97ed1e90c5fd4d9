package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboards are served from another origin (or a file:// bundle), so the
// whole surface is CORS-open like stock Moonraker in trusted-client mode.
func (h *Handler) corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
