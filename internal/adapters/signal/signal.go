// Package signal is the push-channel adapter: it owns the websocket
// transport and translates envelopes into hub and service calls.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Hub        *app.Hub
	Rooms      *app.RoomService
	Control    *app.ControlService
	Chat       *app.ChatBuffer
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(hub *app.Hub, rooms *app.RoomService, control *app.ControlService, chat *app.ChatBuffer, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Hub:        hub,
		Rooms:      rooms,
		Control:    control,
		Chat:       chat,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and registers the connection under a
// fresh per-upgrade session id. The client-token cookie names the
// browser, not the connection: a reload or second tab must get its own
// registry entry instead of clobbering the previous one.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Hub.Connect(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError reports a failure to the offending connection only; it
// never propagates to other connections.
func (ctl *Controller) sendError(c *wsConn, msg string) {
	ctl.sendJSON(c, app.Event{Type: app.MsgError, Data: map[string]any{"message": msg}})
}
