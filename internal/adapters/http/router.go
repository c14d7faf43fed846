package http

import (
	"context"
	"net/http"

	"github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/auth"
	"github.com/dkeye/huddle/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const sessionName = "HuddleSession"

type Deps struct {
	Orch     *orch.Orchestrator
	Verifier *auth.Verifier
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.Auth.TokenTTL.Seconds()), HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": deps.Orch.Registry.Count()})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &meetingHandlers{orch: deps.Orch, verifier: deps.Verifier}
	ws := signal.NewSignalWSController(deps.Orch, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})

	api := r.Group("/api")
	api.POST("/session", h.createSession)
	api.DELETE("/session", h.deleteSession)

	authed := api.Group("", AuthMiddleware(deps.Verifier))
	authed.GET("/ws/signal", func(c *gin.Context) {
		ws.HandleSignal(ctx, c, identityFrom(c))
	})
	authed.POST("/meetings", h.create)
	authed.GET("/meetings/:id", h.get)
	authed.GET("/meetings/:id/participants", h.participants)
	authed.POST("/meetings/:id/start", h.start)
	authed.POST("/meetings/:id/end", h.end)
	authed.GET("/meetings/:id/messages", h.messages)

	return r
}
