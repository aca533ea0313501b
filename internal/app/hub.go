package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
	"huddle/internal/store"
)

// Push-channel message kinds. Client-originated: join-room,
// leave-room, chat, signal, participant-update, participant-control,
// participant-kicked. Server-originated: connected,
// participant-joined, participant-left, error, plus echoes of the
// relayed kinds.
const (
	MsgJoinRoom           = "join-room"
	MsgLeaveRoom          = "leave-room"
	MsgChat               = "chat"
	MsgSignal             = "signal"
	MsgParticipantUpdate  = "participant-update"
	MsgParticipantControl = "participant-control"
	MsgParticipantKicked  = "participant-kicked"

	MsgConnected         = "connected"
	MsgParticipantJoined = "participant-joined"
	MsgParticipantLeft   = "participant-left"
	MsgRoomClosed        = "room-closed"
	MsgError             = "error"
)

// Event is the envelope for every push-channel message, both
// directions: a type tag and a data payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SignalPayload is a WebRTC negotiation message relayed, never
// interpreted. A named target makes delivery point-to-point;
// otherwise the signal floods the room.
type SignalPayload struct {
	Type                string               `json:"type"`
	Data                json.RawMessage      `json:"data"`
	TargetParticipantID domain.ParticipantID `json:"targetParticipantId,omitempty"`
}

// Validate checks the payload is a well-formed offer, answer or ICE
// candidate without touching its meaning.
func (p SignalPayload) Validate() error {
	switch p.Type {
	case "offer", "answer":
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(p.Data, &sd); err != nil || sd.SDP == "" {
			return fmt.Errorf("%w: malformed session description", domain.ErrBadRequest)
		}
	case "ice-candidate":
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(p.Data, &ci); err != nil || ci.Candidate == "" {
			return fmt.Errorf("%w: malformed ice candidate", domain.ErrBadRequest)
		}
	default:
		return fmt.Errorf("%w: unknown signal type %q", domain.ErrBadRequest, p.Type)
	}
	return nil
}

// Hub routes events between live connections of the same room. All
// authority decisions re-read the store; the registry binding is used
// for routing only.
type Hub struct {
	Registry *Registry
	Store    store.Store
	Limiter  Limiter
}

func NewHub(reg *Registry, st store.Store, limiter Limiter) *Hub {
	return &Hub{Registry: reg, Store: st, Limiter: limiter}
}

// Connect registers a fresh connection and greets it with its id.
func (h *Hub) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	h.Registry.Connect(sid, conn, cancel)
	h.send(conn, Event{Type: MsgConnected, Data: map[string]any{"connectionId": string(sid)}})
}

// JoinRoom binds a connection to a (room, participant) pair after
// re-reading the authoritative records. The live-count cap is a soft
// secondary check; REST admission is the source of truth for capacity.
func (h *Hub) JoinRoom(ctx context.Context, sid core.SessionID, roomID domain.RoomID, pid domain.ParticipantID) error {
	room, err := h.Store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return domain.ErrGone
	}
	p, err := h.Store.GetParticipant(ctx, pid)
	if err != nil {
		return err
	}
	if p.RoomID != roomID {
		return fmt.Errorf("%w: participant does not belong to this room", domain.ErrBadRequest)
	}
	if !p.Present() {
		return domain.ErrGone
	}
	if h.Registry.LiveCount(roomID) >= room.MaxParticipants {
		return fmt.Errorf("%w: room is full", domain.ErrConflict)
	}
	if !h.Registry.BindRoom(sid, roomID, pid) {
		return domain.ErrNotFound
	}
	h.broadcast(roomID, sid, Event{Type: MsgParticipantJoined, Data: core.ToParticipantDTO(p)})
	return nil
}

// LeaveRoom unbinds without closing the transport; the connection may
// join a different room afterwards.
func (h *Hub) LeaveRoom(sid core.SessionID) bool {
	roomID, pid, ok := h.Registry.ClearRoom(sid)
	if !ok {
		return false
	}
	h.broadcastLeft(roomID, pid)
	return true
}

// OnDisconnect reaps a closed or dead connection. It converges with
// LeaveRoom: identical presence broadcast and live-count effect.
func (h *Hub) OnDisconnect(sid core.SessionID) {
	conn, roomID, pid, wasJoined := h.Registry.Drop(sid)
	h.Limiter.Forget(sid)
	if conn != nil {
		conn.Close()
	}
	if wasJoined {
		h.broadcastLeft(roomID, pid)
	}
}

// BroadcastChat fans a stored message out to every connection in the
// room, sender included, so all of a participant's tabs stay in sync.
func (h *Hub) BroadcastChat(msg *domain.ChatMessage) {
	h.broadcast(msg.RoomID, "", Event{Type: MsgChat, Data: msg})
}

// RelaySignal validates and routes a signal. Unknown targets are
// dropped silently with a log line; the peer may just have gone away.
func (h *Hub) RelaySignal(from domain.ParticipantID, roomID domain.RoomID, payload SignalPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	evt := Event{Type: MsgSignal, Data: map[string]any{
		"fromParticipantId": from,
		"type":              payload.Type,
		"data":              payload.Data,
	}}
	if payload.TargetParticipantID != "" {
		_, conn, ok := h.Registry.FindParticipant(roomID, payload.TargetParticipantID)
		if !ok {
			log.Warn().Str("module", "app.hub").Str("room", string(roomID)).Str("target", string(payload.TargetParticipantID)).Msg("signal target has no live connection, dropped")
			return nil
		}
		h.send(conn, evt)
		return nil
	}
	for _, m := range h.Registry.MembersOfRoom(roomID) {
		if m.ParticipantID == from {
			continue
		}
		h.send(m.Conn, evt)
	}
	return nil
}

// NotifyUpdate pushes a participant's current flags to the room.
func (h *Hub) NotifyUpdate(p *domain.Participant) {
	h.broadcast(p.RoomID, "", Event{Type: MsgParticipantUpdate, Data: core.ToParticipantDTO(p)})
}

// NotifyControl tells the affected participant what was done to them
// and refreshes everyone else's view. Delivery is best-effort; the
// state change has already been persisted.
func (h *Hub) NotifyControl(target *domain.Participant, action string) {
	dto := core.ToParticipantDTO(target)
	if _, conn, ok := h.Registry.FindParticipant(target.RoomID, target.ID); ok {
		h.send(conn, Event{Type: MsgParticipantControl, Data: map[string]any{
			"action":      action,
			"participant": dto,
		}})
	}
	h.broadcast(target.RoomID, "", Event{Type: MsgParticipantUpdate, Data: dto})
}

// NotifyKicked informs the kicked participant, unbinds their
// connection and announces the departure to the room.
func (h *Hub) NotifyKicked(target *domain.Participant) {
	roomID := target.RoomID
	if sid, conn, ok := h.Registry.FindParticipant(roomID, target.ID); ok {
		h.send(conn, Event{Type: MsgParticipantKicked, Data: map[string]any{
			"participantId": target.ID,
			"reason":        "removed by host",
		}})
		h.Registry.ClearRoom(sid)
	}
	h.broadcastLeft(roomID, target.ID)
}

// EvictRoom unbinds every connection of a terminated room so no relay
// path keeps serving it. Transports stay open; each client is told the
// room closed and may join another room on the same connection.
func (h *Hub) EvictRoom(roomID domain.RoomID) {
	for _, m := range h.Registry.MembersOfRoom(roomID) {
		h.Registry.ClearRoom(m.SID)
		h.send(m.Conn, Event{Type: MsgRoomClosed, Data: map[string]any{"roomId": roomID}})
	}
}

// RunReaper sweeps for connections that missed a full heartbeat
// interval and reaps them exactly like a disconnect. This is the only
// mechanism that catches network-level drops without a clean close.
func (h *Hub) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.hub").Msg("reaper stopped")
			return
		case <-ticker.C:
			for _, sid := range h.Registry.Stale(2 * interval) {
				log.Info().Str("module", "app.hub").Str("sid", string(sid)).Msg("reaping dead connection")
				h.OnDisconnect(sid)
			}
		}
	}
}

// Shutdown drains every live connection.
func (h *Hub) Shutdown() {
	h.Registry.CloseAll()
}

func (h *Hub) broadcastLeft(roomID domain.RoomID, pid domain.ParticipantID) {
	h.broadcast(roomID, "", Event{Type: MsgParticipantLeft, Data: map[string]any{
		"roomId":        roomID,
		"participantId": pid,
	}})
}

// broadcast sends to every connection bound to the room except the
// named session. Within one room, each connection observes events in
// enqueue order; its outbound queue never reorders.
func (h *Hub) broadcast(roomID domain.RoomID, except core.SessionID, evt Event) {
	for _, m := range h.Registry.MembersOfRoom(roomID) {
		if m.SID == except {
			continue
		}
		h.send(m.Conn, evt)
	}
}

func (h *Hub) send(conn core.SignalConnection, evt Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("marshal event")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("type", evt.Type).Msg("send dropped")
	}
}
