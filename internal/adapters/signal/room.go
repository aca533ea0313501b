package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/core"
	"huddle/internal/domain"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	var p struct {
		RoomID        domain.RoomID        `json:"roomId"`
		ParticipantID domain.ParticipantID `json:"participantId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.ParticipantID == "" {
		ctl.sendError(c, "join-room requires roomId and participantId")
		return
	}

	if err := ctl.Hub.JoinRoom(ctx, sid, p.RoomID, p.ParticipantID); err != nil {
		ctl.reportError(c, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("joined room")
}

// handleLeaveRoom unbinds without closing the transport; the client
// may join another room on the same connection.
func (ctl *Controller) handleLeaveRoom(sid core.SessionID, c *wsConn) {
	if !ctl.Hub.LeaveRoom(sid) {
		ctl.sendError(c, "not in a room")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("left room")
}

func (ctl *Controller) handleChat(sid core.SessionID, c *wsConn, data []byte) {
	roomID, _, ok := ctl.Hub.Registry.Binding(sid)
	if !ok {
		ctl.sendError(c, "join a room before chatting")
		return
	}
	var p struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(c, "malformed chat payload")
		return
	}

	msg, err := ctl.Chat.Append(roomID, p.Sender, p.Content)
	if err != nil {
		ctl.reportError(c, err)
		return
	}
	ctl.Hub.BroadcastChat(msg)
}

func (ctl *Controller) handleSignalRelay(sid core.SessionID, c *wsConn, data []byte) {
	roomID, pid, ok := ctl.Hub.Registry.Binding(sid)
	if !ok {
		ctl.sendError(c, "join a room before signaling")
		return
	}
	var payload app.SignalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.sendError(c, "malformed signal payload")
		return
	}
	if err := ctl.Hub.RelaySignal(pid, roomID, payload); err != nil {
		ctl.reportError(c, err)
	}
}
