package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxChatContentLen = 500
	MaxChatSenderLen  = MaxParticipantNameLen
)

// ChatMessage carries the sender's display name, not a participant
// identity. The binding is deliberately weak.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessage(roomID RoomID, sender, content string, now time.Time) (*ChatMessage, error) {
	sender = SanitizeName(sender)
	if sender == "" {
		return nil, fmt.Errorf("%w: sender is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(sender) > MaxChatSenderLen {
		return nil, fmt.Errorf("%w: sender exceeds %d characters", ErrBadRequest, MaxChatSenderLen)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(content) > MaxChatContentLen {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrBadRequest, MaxChatContentLen)
	}
	return &ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: now,
	}, nil
}
