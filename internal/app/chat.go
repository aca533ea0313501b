package app

import (
	"sync"
	"time"

	"huddle/internal/domain"
)

// ChatBuffer keeps the last N messages per room, insertion ordered.
// It is intentionally non-durable; a process restart loses history,
// an accepted tradeoff for 30-minute-capped sessions.
type ChatBuffer struct {
	mu    sync.RWMutex
	cap   int
	rooms map[domain.RoomID][]domain.ChatMessage
	now   func() time.Time
}

func NewChatBuffer(capacity int) *ChatBuffer {
	return &ChatBuffer{
		cap:   capacity,
		rooms: make(map[domain.RoomID][]domain.ChatMessage),
		now:   time.Now,
	}
}

// Append validates, stamps and stores a message, evicting the oldest
// entry once the room's sequence exceeds the cap.
func (b *ChatBuffer) Append(roomID domain.RoomID, sender, content string) (*domain.ChatMessage, error) {
	msg, err := domain.NewChatMessage(roomID, sender, content, b.now())
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	seq := append(b.rooms[roomID], *msg)
	if len(seq) > b.cap {
		seq = seq[len(seq)-b.cap:]
	}
	b.rooms[roomID] = seq
	return msg, nil
}

// List returns the retained sequence oldest first; empty for rooms
// with no history.
func (b *ChatBuffer) List(roomID domain.RoomID) []domain.ChatMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seq := b.rooms[roomID]
	out := make([]domain.ChatMessage, len(seq))
	copy(out, seq)
	return out
}

// Clear drops a room's history entirely; called when a session ends.
func (b *ChatBuffer) Clear(roomID domain.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, roomID)
}
