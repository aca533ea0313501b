package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"huddle/internal/core"
	"huddle/internal/domain"
)

// binding tracks what a transport channel currently represents. It is
// a derived, revocable relation to the store's participant record,
// never a second source of truth.
type binding struct {
	Conn          core.SignalConnection
	State         core.ConnState
	RoomID        domain.RoomID
	ParticipantID domain.ParticipantID
	LastHeartbeat time.Time
	Cancel        context.CancelFunc
}

// Registry is the process-scoped connection table: init at startup,
// drained on shutdown, injected where needed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*binding
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*binding),
		now:      time.Now,
	}
}

// Connect registers a fresh, unbound connection.
func (r *Registry) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &binding{
		Conn:          conn,
		State:         core.StateConnected,
		LastHeartbeat: r.now(),
		Cancel:        cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("connection registered")
}

// BindRoom moves a connection into StateJoined for the given pair.
func (r *Registry) BindRoom(sid core.SessionID, roomID domain.RoomID, pid domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.State == core.StateClosed {
		return false
	}
	e.State = core.StateJoined
	e.RoomID = roomID
	e.ParticipantID = pid
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Str("participant", string(pid)).Msg("bound to room")
	return true
}

// ClearRoom returns a connection to StateConnected without closing the
// transport, reporting the pair it was bound to.
func (r *Registry) ClearRoom(sid core.SessionID) (domain.RoomID, domain.ParticipantID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.State != core.StateJoined {
		return "", "", false
	}
	roomID, pid := e.RoomID, e.ParticipantID
	e.State = core.StateConnected
	e.RoomID = ""
	e.ParticipantID = ""
	return roomID, pid, true
}

// Drop removes the session entirely (StateClosed is terminal) and
// reports the room binding it held, if any.
func (r *Registry) Drop(sid core.SessionID) (core.SignalConnection, domain.RoomID, domain.ParticipantID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, "", "", false
	}
	delete(r.sessions, sid)
	wasJoined := e.State == core.StateJoined
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("connection dropped")
	if !wasJoined {
		return e.Conn, "", "", false
	}
	return e.Conn, e.RoomID, e.ParticipantID, true
}

func (r *Registry) Binding(sid core.SessionID) (domain.RoomID, domain.ParticipantID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.State != core.StateJoined {
		return "", "", false
	}
	return e.RoomID, e.ParticipantID, true
}

func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// MemberConn is a snapshot of one live room binding.
type MemberConn struct {
	SID           core.SessionID
	ParticipantID domain.ParticipantID
	Conn          core.SignalConnection
}

func (r *Registry) MembersOfRoom(roomID domain.RoomID) []MemberConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberConn, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.State == core.StateJoined && e.RoomID == roomID {
			out = append(out, MemberConn{SID: sid, ParticipantID: e.ParticipantID, Conn: e.Conn})
		}
	}
	return out
}

// FindParticipant resolves the live connection currently representing
// a participant in a room, if one exists.
func (r *Registry) FindParticipant(roomID domain.RoomID, pid domain.ParticipantID) (core.SessionID, core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sid, e := range r.sessions {
		if e.State == core.StateJoined && e.RoomID == roomID && e.ParticipantID == pid {
			return sid, e.Conn, true
		}
	}
	return "", nil, false
}

func (r *Registry) LiveCount(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.State == core.StateJoined && e.RoomID == roomID {
			n++
		}
	}
	return n
}

// Heartbeat refreshes a connection's liveness stamp.
func (r *Registry) Heartbeat(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.LastHeartbeat = r.now()
	}
}

// Stale reports connections whose last heartbeat is older than the
// given age. They are considered dead and due for reaping.
func (r *Registry) Stale(age time.Duration) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := r.now().Add(-age)
	var out []core.SessionID
	for sid, e := range r.sessions {
		if e.LastHeartbeat.Before(cutoff) {
			out = append(out, sid)
		}
	}
	return out
}

// CloseAll drains the table on shutdown, closing every transport.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, e := range r.sessions {
		if e.Cancel != nil {
			e.Cancel()
		}
		e.Conn.Close()
		delete(r.sessions, sid)
	}
	log.Info().Str("module", "app.registry").Msg("all connections drained")
}
