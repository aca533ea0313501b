package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxParticipantNameLen = 36

	// HostDisplayName is the display name the creator participant is
	// registered under. The creator's browser re-enters its own session
	// by joining with this name (name-based reconciliation).
	HostDisplayName = "Host"
)

type ParticipantID string

// Participant is one joined member of a room. LeftAt is nil while
// present and set exactly once; a departed record is never reused.
type Participant struct {
	ID              ParticipantID
	RoomID          RoomID
	Name            string
	IsHost          bool
	IsAudioEnabled  bool
	IsVideoEnabled  bool
	IsScreenSharing bool
	JoinedAt        time.Time
	LeftAt          *time.Time
}

// NewParticipant sanitizes the display name and starts the member with
// audio and video on, screen share off.
func NewParticipant(roomID RoomID, name string, isHost bool, now time.Time) (*Participant, error) {
	name = SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: participant name is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(name) > MaxParticipantNameLen {
		return nil, fmt.Errorf("%w: participant name exceeds %d characters", ErrBadRequest, MaxParticipantNameLen)
	}
	return &Participant{
		ID:             ParticipantID(uuid.NewString()),
		RoomID:         roomID,
		Name:           name,
		IsHost:         isHost,
		IsAudioEnabled: true,
		IsVideoEnabled: true,
		JoinedAt:       now,
	}, nil
}

func (p *Participant) Present() bool { return p.LeftAt == nil }

// SanitizeName trims surrounding whitespace and strips control runes.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
}
