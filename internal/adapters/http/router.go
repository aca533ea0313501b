// Package http wires the request/response surface (REST + WS upgrade)
// with the coordination services.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"huddle/internal/adapters/signal"
	"huddle/internal/app"
	"huddle/internal/config"
)

// ClientTokenMiddleware issues a long-lived opaque token per browser;
// it keys the push-channel connection table.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, rooms *app.RoomService, control *app.ControlService, chat *app.ChatBuffer, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	h := &Handlers{Rooms: rooms, Control: control, Chat: chat, Hub: hub}
	wsCtl := signal.NewController(hub, rooms, control, chat, cfg.ReadLimit, cfg.PingPeriod)

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms/:id", h.GetRoom)
	api.POST("/rooms/:id/join", h.JoinRoom)
	api.POST("/rooms/:id/leave", h.LeaveRoom)
	api.GET("/rooms/:id/timeout", h.CheckTimeout)
	api.POST("/rooms/:id/end", h.EndMeeting)
	api.GET("/rooms/:id/participants", h.ListParticipants)

	api.PATCH("/participants/:id", h.UpdateOwnParticipant)
	api.POST("/participants/:id/kick", h.Kick)
	api.POST("/participants/:id/mute", h.Mute)
	api.POST("/participants/:id/video", h.VideoControl)
	api.POST("/participants/:id/screenshare", h.ScreenShareControl)

	api.POST("/rooms/:id/chat", h.SendChatMessage)
	api.GET("/rooms/:id/chat", h.ListChatMessages)
	api.DELETE("/rooms/:id/chat", h.ClearChatMessages)

	api.POST("/rooms/:id/signal", h.RelaySignal)

	api.GET("/ws", func(c *gin.Context) {
		wsCtl.HandleWS(ctx, c)
	})

	return r
}
