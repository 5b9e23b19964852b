package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SourceHandler struct {
	bridge Bridge
}

func NewSourceHandler(bridge Bridge) *SourceHandler {
	return &SourceHandler{bridge: bridge}
}

// List returns the source ids registered since startup.
func (h *SourceHandler) List(c *gin.Context) {
	sources := h.bridge.Sources()

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"count":   len(sources),
	})
}
