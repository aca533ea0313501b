// Package app holds the coordination services: room lifecycle, host
// authority, chat history and the realtime fan-out hub.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"huddle/internal/domain"
	"huddle/internal/store"
)

// roomIDAlphabet avoids ambiguous symbols (0/O, 1/l). 12 characters
// over 32 symbols give 60 bits of entropy; uniqueness is still
// verified against the store on creation.
const (
	roomIDAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"
	roomIDLen      = 12

	createRoomAttempts = 5
)

// RoomService owns room lifecycle: creation, join admission, leave,
// lazy timeout expiry and host-initiated termination. Multi-step
// admissions are serialized through a single mutex; the process is the
// only authority over the store.
type RoomService struct {
	mu    sync.Mutex
	store store.Store
	chat  *ChatBuffer
	ttl   time.Duration
	now   func() time.Time
}

func NewRoomService(st store.Store, chat *ChatBuffer, ttl time.Duration) *RoomService {
	return &RoomService{
		store: st,
		chat:  chat,
		ttl:   ttl,
		now:   time.Now,
	}
}

type CreateRoomInput struct {
	Title              string
	Description        string
	Password           string
	IsRecordingEnabled bool
	MaxParticipants    int
}

// Create validates the input and atomically creates the room together
// with its host participant. The returned participant id is the
// caller's only way to re-identify as host later.
func (s *RoomService) Create(ctx context.Context, in CreateRoomInput) (*domain.Room, *domain.Participant, error) {
	now := s.now()
	room, err := domain.NewRoom(in.Title, in.Description, in.Password, in.IsRecordingEnabled, in.MaxParticipants, now)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		id, err := newRoomID()
		if err != nil {
			return nil, nil, fmt.Errorf("generate room id: %w", err)
		}
		room.ID = id

		host, err := domain.NewParticipant(id, domain.HostDisplayName, true, now)
		if err != nil {
			return nil, nil, err
		}

		err = s.store.CreateRoom(ctx, room, host)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("create room: %w", err)
		}
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("host", string(host.ID)).Msg("room created")
		return room, host, nil
	}
	return nil, nil, fmt.Errorf("create room: id space exhausted after %d attempts", createRoomAttempts)
}

// Join admits a participant. An active participant with the exact same
// display name is returned as-is instead of creating a duplicate; this
// keeps the creator's browser attached to its own session across
// reloads and is a deliberate, name-based best-effort match.
func (s *RoomService) Join(ctx context.Context, roomID domain.RoomID, name, password string) (*domain.Room, *domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if !room.IsActive {
		return nil, nil, domain.ErrGone
	}
	if room.HasPassword() && !room.CheckPassword(password) {
		return nil, nil, fmt.Errorf("%w: wrong password", domain.ErrForbidden)
	}

	count, err := s.store.CountActiveParticipants(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if count >= room.MaxParticipants {
		return nil, nil, fmt.Errorf("%w: room is full", domain.ErrConflict)
	}

	if existing, err := s.store.FindActiveParticipantByName(ctx, roomID, domain.SanitizeName(name)); err == nil {
		return room, existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	isHost := false
	if _, err := s.store.ActiveHost(ctx, roomID); errors.Is(err, domain.ErrNotFound) {
		isHost = true
	} else if err != nil {
		return nil, nil, err
	}

	p, err := domain.NewParticipant(roomID, name, isHost, s.now())
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("participant", string(p.ID)).Bool("host", isHost).Msg("participant joined")
	return room, p, nil
}

// Leave is idempotent and always safe to retry; unknown or already
// departed participants are a no-op.
func (s *RoomService) Leave(ctx context.Context, id domain.ParticipantID) error {
	return s.store.MarkLeft(ctx, id, s.now())
}

type TimeoutStatus struct {
	ShouldClose      bool `json:"shouldClose"`
	RemainingMinutes int  `json:"remainingMinutes"`
}

// CheckTimeout reports remaining session time and, once the timeout
// has elapsed, performs the expiry itself: the room is deactivated and
// every still-present participant is marked left. Expiry is lazy and
// pull-driven; no background sweep exists.
func (s *RoomService) CheckTimeout(ctx context.Context, roomID domain.RoomID) (TimeoutStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if errors.Is(err, domain.ErrNotFound) {
		return TimeoutStatus{ShouldClose: true}, nil
	}
	if err != nil {
		return TimeoutStatus{}, err
	}
	if !room.IsActive {
		return TimeoutStatus{ShouldClose: true}, nil
	}

	elapsed := s.now().Sub(room.CreatedAt)
	if elapsed >= s.ttl {
		if err := s.store.DeactivateRoom(ctx, roomID, s.now()); err != nil {
			return TimeoutStatus{}, err
		}
		s.chat.Clear(roomID)
		log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Msg("room expired")
		return TimeoutStatus{ShouldClose: true}, nil
	}

	remaining := int(s.ttl.Minutes()) - int(elapsed.Minutes())
	if remaining < 0 {
		remaining = 0
	}
	return TimeoutStatus{RemainingMinutes: remaining}, nil
}

// End terminates the meeting. Only the active host may call it; the
// transition is terminal and later joins fail with ErrGone.
func (s *RoomService) End(ctx context.Context, roomID domain.RoomID, participantID domain.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return domain.ErrGone
	}

	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if p.RoomID != roomID || !p.Present() || !p.IsHost {
		return fmt.Errorf("%w: only the host can end the meeting", domain.ErrForbidden)
	}

	if err := s.store.DeactivateRoom(ctx, roomID, s.now()); err != nil {
		return err
	}
	s.chat.Clear(roomID)
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("host", string(participantID)).Msg("meeting ended by host")
	return nil
}

func (s *RoomService) Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	return s.store.GetRoom(ctx, roomID)
}

// ListParticipants returns active members ordered by join time.
func (s *RoomService) ListParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.ListActiveParticipants(ctx, roomID)
}

// MediaFlags is a partial self-service update; nil means unchanged.
type MediaFlags struct {
	IsAudioEnabled  *bool `json:"isAudioEnabled"`
	IsVideoEnabled  *bool `json:"isVideoEnabled"`
	IsScreenSharing *bool `json:"isScreenSharing"`
}

func (f MediaFlags) empty() bool {
	return f.IsAudioEnabled == nil && f.IsVideoEnabled == nil && f.IsScreenSharing == nil
}

// UpdateOwn writes a participant's own media flags. No authority
// checks apply to self-service updates.
func (s *RoomService) UpdateOwn(ctx context.Context, id domain.ParticipantID, flags MediaFlags) (*domain.Participant, error) {
	if flags.empty() {
		return nil, fmt.Errorf("%w: at least one field is required", domain.ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Present() {
		return nil, domain.ErrGone
	}
	if flags.IsAudioEnabled != nil {
		p.IsAudioEnabled = *flags.IsAudioEnabled
	}
	if flags.IsVideoEnabled != nil {
		p.IsVideoEnabled = *flags.IsVideoEnabled
	}
	if flags.IsScreenSharing != nil {
		p.IsScreenSharing = *flags.IsScreenSharing
	}
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func newRoomID() (domain.RoomID, error) {
	b := make([]byte, roomIDLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = roomIDAlphabet[int(b[i])%len(roomIDAlphabet)]
	}
	return domain.RoomID(b), nil
}
