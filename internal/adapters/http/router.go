package http

import (
	"context"
	"crypto/rand"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Media is what the router needs to serve the local self-view.
type Media struct {
	Open    core.DeviceOpener
	Encoder core.Encoder
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, media Media) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = rand.Text()
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: o, cfg: cfg, media: media}
	r.GET("/video_feed_self", h.selfFeed)

	api := r.Group("/api")
	api.GET("/session", h.session)
	api.POST("/session/join", h.join)
	api.POST("/session/switch", h.switchRoom)
	api.POST("/session/leave", h.leave)
	api.GET("/peers", h.peers)
	api.GET("/events", h.events)

	ws := signal.NewSignalWSController(o, cfg.PingPeriod, cfg.ReadLimit)
	api.GET("/ws/events", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws events endpoint hit")
		ws.HandleSignal(ctx, c)
	})

	return r
}
