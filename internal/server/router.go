package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/auth"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/handler"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/hub"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/middleware"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/store"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/telemetry"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Metrics     *telemetry.Metrics
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	rooms := hub.New()
	chatHandler := &handler.ChatHandler{
		Store:       deps.Store,
		Hub:         rooms,
		TokenConfig: deps.TokenConfig,
		Metrics:     deps.Metrics,
	}

	startLimiter := middleware.NewRateLimiter(10, time.Minute)
	r.POST("/chat/start", middleware.RateLimitMiddleware(startLimiter), chatHandler.Start)

	protected := r.Group("/chat")
	protected.Use(middleware.RequireSessionToken(deps.TokenConfig))
	protected.POST("/send", chatHandler.Send)
	protected.POST("/close", chatHandler.Close)
	protected.GET("/:id/messages", chatHandler.Messages)

	wsHandler := &handler.WebSocketHandler{
		Hub:         rooms,
		Store:       deps.Store,
		TokenConfig: deps.TokenConfig,
		Metrics:     deps.Metrics,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
