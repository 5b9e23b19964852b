package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/yaic/internal/api/handlers"
	"github.com/your-org/yaic/internal/api/ws"
	"github.com/your-org/yaic/internal/auth"
)

type RouterConfig struct {
	APIKey  string
	Bridge  handlers.Bridge
	Hub     *ws.Hub
	Version string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Bridge, cfg.Version)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Sources
	sourceH := handlers.NewSourceHandler(cfg.Bridge)
	v1.GET("/sources", sourceH.List)

	return r
}
