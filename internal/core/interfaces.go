package core

import (
	"time"

	"huddle/internal/domain"
)

// Frame is a marshaled outbound message.
type Frame []byte

// SessionID is the opaque per-connection identity, minted on every
// websocket upgrade. It names a transport channel, never a participant
// or a browser.
type SessionID string

// SignalConnection abstracts the push-channel transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// ConnState is the per-connection state machine. A connection may
// return from StateJoined to StateConnected via explicit leave and
// later join a different room; StateClosed is terminal.
type ConnState int

const (
	StateConnected ConnState = iota
	StateJoined
	StateClosed
)

// ParticipantDTO is a read-only view for APIs and fan-out payloads.
type ParticipantDTO struct {
	ID              domain.ParticipantID `json:"id"`
	RoomID          domain.RoomID        `json:"roomId"`
	Name            string               `json:"name"`
	IsHost          bool                 `json:"isHost"`
	IsAudioEnabled  bool                 `json:"isAudioEnabled"`
	IsVideoEnabled  bool                 `json:"isVideoEnabled"`
	IsScreenSharing bool                 `json:"isScreenSharing"`
	JoinedAt        time.Time            `json:"joinedAt"`
}

func ToParticipantDTO(p *domain.Participant) ParticipantDTO {
	return ParticipantDTO{
		ID:              p.ID,
		RoomID:          p.RoomID,
		Name:            p.Name,
		IsHost:          p.IsHost,
		IsAudioEnabled:  p.IsAudioEnabled,
		IsVideoEnabled:  p.IsVideoEnabled,
		IsScreenSharing: p.IsScreenSharing,
		JoinedAt:        p.JoinedAt,
	}
}

// RoomDTO exposes hasPassword only; the hash never leaves the store.
type RoomDTO struct {
	ID                 domain.RoomID `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	HasPassword        bool          `json:"hasPassword"`
	MaxParticipants    int           `json:"maxParticipants"`
	IsRecordingEnabled bool          `json:"isRecordingEnabled"`
	IsActive           bool          `json:"isActive"`
	CreatedAt          time.Time     `json:"createdAt"`
}

func ToRoomDTO(r *domain.Room) RoomDTO {
	return RoomDTO{
		ID:                 r.ID,
		Title:              r.Title,
		Description:        r.Description,
		HasPassword:        r.HasPassword(),
		MaxParticipants:    r.MaxParticipants,
		IsRecordingEnabled: r.IsRecordingEnabled,
		IsActive:           r.IsActive,
		CreatedAt:          r.CreatedAt,
	}
}
