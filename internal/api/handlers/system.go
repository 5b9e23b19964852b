package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Bridge is the subset of the bus controller the API needs.
type Bridge interface {
	Connected() bool
	Sources() []string
}

type SystemHandler struct {
	bridge  Bridge
	version string
}

func NewSystemHandler(bridge Bridge, version string) *SystemHandler {
	return &SystemHandler{bridge: bridge, version: version}
}

// Healthz reports process liveness.
func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Readyz reports whether the bus connection is established.
func (h *SystemHandler) Readyz(c *gin.Context) {
	if !h.bridge.Connected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"mqtt":   "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"mqtt":   "connected",
	})
}
