package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/core"
	"huddle/internal/domain"
)

// handleMessage parses the envelope and dispatches by type. Malformed
// input is answered to the sender only and never crashes the hub.
func (ctl *Controller) handleMessage(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	if !ctl.Hub.Limiter.Allow(sid) {
		ctl.sendError(c, "rate limited, slow down")
		return
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "malformed message")
		return
	}

	switch env.Type {
	case app.MsgJoinRoom:
		ctl.handleJoinRoom(ctx, sid, c, env.Data)
	case app.MsgLeaveRoom:
		ctl.handleLeaveRoom(sid, c)
	case app.MsgChat:
		ctl.handleChat(sid, c, env.Data)
	case app.MsgSignal:
		ctl.handleSignalRelay(sid, c, env.Data)
	case app.MsgParticipantUpdate:
		ctl.handleSelfUpdate(ctx, sid, c, env.Data)
	case app.MsgParticipantControl:
		ctl.handleControl(ctx, sid, c, env.Data)
	case app.MsgParticipantKicked:
		ctl.handleKick(ctx, sid, c, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message type")
		ctl.sendError(c, "unknown message type")
	}
}

// reportError maps service failures onto the offending connection. The
// taxonomy buckets surface their message; anything else is logged and
// reported generically.
func (ctl *Controller) reportError(c *wsConn, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrGone),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrRateLimited):
		ctl.sendError(c, err.Error())
	default:
		log.Error().Err(err).Str("module", "signal").Msg("unhandled error")
		ctl.sendError(c, "internal error")
	}
}
