package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"huddle/internal/app"
	"huddle/internal/core"
	"huddle/internal/domain"
)

// handleSelfUpdate writes the bound participant's own media flags; no
// authority checks apply to self-service updates.
func (ctl *Controller) handleSelfUpdate(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	_, pid, ok := ctl.Hub.Registry.Binding(sid)
	if !ok {
		ctl.sendError(c, "join a room first")
		return
	}
	var flags app.MediaFlags
	if err := json.Unmarshal(data, &flags); err != nil {
		ctl.sendError(c, "malformed participant-update payload")
		return
	}

	p, err := ctl.Rooms.UpdateOwn(ctx, pid, flags)
	if err != nil {
		ctl.reportError(c, err)
		return
	}
	ctl.Hub.NotifyUpdate(p)
}

type controlPayload struct {
	HostID        domain.ParticipantID `json:"hostId"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	Action        string               `json:"action"`
	// Enabled is the resulting flag value: for "mute" it is the
	// target's audio state, for "video"/"screenshare" the respective
	// flag.
	Enabled bool `json:"enabled"`
}

// handleControl applies a host action (mute, video, screenshare) and
// fans the effect out to the room.
func (ctl *Controller) handleControl(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	var p controlPayload
	if err := json.Unmarshal(data, &p); err != nil || p.HostID == "" || p.ParticipantID == "" {
		ctl.sendError(c, "malformed participant-control payload")
		return
	}

	var (
		target *domain.Participant
		err    error
	)
	switch p.Action {
	case "mute":
		target, err = ctl.Control.Mute(ctx, p.HostID, p.ParticipantID, !p.Enabled)
	case "video":
		target, err = ctl.Control.SetVideo(ctx, p.HostID, p.ParticipantID, p.Enabled)
	case "screenshare":
		target, err = ctl.Control.SetScreenShare(ctx, p.HostID, p.ParticipantID, p.Enabled)
	default:
		ctl.sendError(c, fmt.Sprintf("unknown control action %q", p.Action))
		return
	}
	if err != nil {
		ctl.reportError(c, err)
		return
	}
	ctl.Hub.NotifyControl(target, p.Action)
}

// handleKick removes a participant on the host's behalf and notifies
// both the target and the room.
func (ctl *Controller) handleKick(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	var p struct {
		HostID        domain.ParticipantID `json:"hostId"`
		ParticipantID domain.ParticipantID `json:"participantId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.HostID == "" || p.ParticipantID == "" {
		ctl.sendError(c, "malformed participant-kicked payload")
		return
	}

	target, err := ctl.Control.Kick(ctx, p.HostID, p.ParticipantID)
	if err != nil {
		ctl.reportError(c, err)
		return
	}
	ctl.Hub.NotifyKicked(target)
}
