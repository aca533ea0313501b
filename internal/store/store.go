// Package store is the single source of truth for room and participant
// records. Backends are selected by config; the memory backend is the
// default for single-process ephemeral deployments.
package store

import (
	"context"
	"time"

	"huddle/internal/domain"
)

// Store defines persistence for rooms and participants. All lookups
// return domain.ErrNotFound for unknown ids; MarkLeft and
// DeactivateRoom are idempotent and treat missing records as success.
type Store interface {
	// CreateRoom atomically creates the room together with its host
	// participant so no window exists where a room has no host.
	// Returns domain.ErrConflict if the room id is already taken.
	CreateRoom(ctx context.Context, room *domain.Room, host *domain.Participant) error
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)

	// DeactivateRoom flips isActive off and marks every still-present
	// participant as left at the given instant, as one logical unit.
	DeactivateRoom(ctx context.Context, id domain.RoomID, at time.Time) error

	CreateParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error)
	SaveParticipant(ctx context.Context, p *domain.Participant) error

	// MarkLeft sets leftAt if currently null. Unknown or already-left
	// participants are a no-op, never an error.
	MarkLeft(ctx context.Context, id domain.ParticipantID, at time.Time) error

	// ListActiveParticipants returns present members ordered by join
	// time ascending.
	ListActiveParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error)
	CountActiveParticipants(ctx context.Context, roomID domain.RoomID) (int, error)
	FindActiveParticipantByName(ctx context.Context, roomID domain.RoomID, name string) (*domain.Participant, error)
	ActiveHost(ctx context.Context, roomID domain.RoomID) (*domain.Participant, error)

	Ping(ctx context.Context) error
	Close() error
}
