package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle-server/internal/config"
	"github.com/vovakirdan/huddle-server/internal/core"
)

// NewServer builds the HTTP server exposing the live channel and the request/response fallback.
// The websocket endpoint stays on the plain mux: it hijacks the connection,
// which gin's response writer refuses once the upgrade response is written.
func NewServer(manager *core.Manager, broker *core.Broker, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(manager, cfg, logger))
	mux.Handle("/", NewRouter(manager, broker, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers the health check and the /api routes on a fresh gin engine.
func NewRouter(manager *core.Manager, broker *core.Broker, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger), CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(manager, broker, logger)
	group := router.Group("/api")
	group.GET("/messages", api.GetMessages)
	group.POST("/messages", api.PostMessage)
	group.GET("/online", api.GetOnline)

	return router
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
}
