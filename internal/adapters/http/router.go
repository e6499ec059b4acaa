package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avdeenkov/pairchat/internal/adapters/ws"
	"github.com/avdeenkov/pairchat/internal/app"
	"github.com/avdeenkov/pairchat/internal/config"
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

func SetupRouter(ctx context.Context, cfg *config.Config, reg *app.Registry, gw *app.Gateway) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PairchatSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	creations := NewCreateLimiter(cfg.CreateLimit, cfg.CreateWindow)
	r.POST("/create-room", creations.Middleware(), createRoom(reg))
	// GET fallback so a room can be minted from the address bar.
	r.GET("/create-room", creations.Middleware(), createRoom(reg))

	ctrl := ws.NewController(gw, cfg)
	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws endpoint hit")
		ctrl.Handle(ctx, c)
	})

	return r
}

// createRoom never rejects a ttl: absent or non-numeric input falls back
// to the default, out-of-range input gets clamped by the registry.
func createRoom(reg *app.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ttl := 0
		if c.Request.Method == http.MethodPost {
			var req struct {
				TTL int `json:"ttl"`
			}
			if err := c.ShouldBindJSON(&req); err == nil {
				ttl = req.TTL
			}
		} else if raw := c.Query("ttl"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				ttl = n
			}
		}
		c.JSON(http.StatusOK, reg.Create(ttl))
	}
}
