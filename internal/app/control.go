package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"huddle/internal/domain"
	"huddle/internal/store"
)

// ControlService validates and applies host-only actions. It mutates
// store state only; event fan-out is the caller's concern, so state
// updates land even when no live connection exists to notify.
type ControlService struct {
	store store.Store
	now   func() time.Time
}

func NewControlService(st store.Store) *ControlService {
	return &ControlService{store: st, now: time.Now}
}

// admit runs the shared admission template: the actor must be an
// active host, the target an active participant of the same room.
// A host is never a valid target; host authority is not
// peer-actionable, even in pathological multi-host states.
func (s *ControlService) admit(ctx context.Context, hostID, targetID domain.ParticipantID) (*domain.Participant, error) {
	host, err := s.store.GetParticipant(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if !host.Present() || !host.IsHost {
		return nil, fmt.Errorf("%w: host authority required", domain.ErrForbidden)
	}

	target, err := s.store.GetParticipant(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.RoomID != host.RoomID || !target.Present() {
		return nil, fmt.Errorf("%w: target is not an active participant of this room", domain.ErrBadRequest)
	}
	if target.IsHost {
		return nil, fmt.Errorf("%w: a host cannot be targeted", domain.ErrForbidden)
	}
	return target, nil
}

// Kick removes the target from its room.
func (s *ControlService) Kick(ctx context.Context, hostID, targetID domain.ParticipantID) (*domain.Participant, error) {
	target, err := s.admit(ctx, hostID, targetID)
	if err != nil {
		return nil, err
	}
	t := s.now()
	if err := s.store.MarkLeft(ctx, targetID, t); err != nil {
		return nil, err
	}
	target.LeftAt = &t
	log.Info().Str("module", "app.control").Str("host", string(hostID)).Str("target", string(targetID)).Msg("participant kicked")
	return target, nil
}

// Mute sets the target's audio flag; mute=true disables audio.
func (s *ControlService) Mute(ctx context.Context, hostID, targetID domain.ParticipantID, mute bool) (*domain.Participant, error) {
	target, err := s.admit(ctx, hostID, targetID)
	if err != nil {
		return nil, err
	}
	target.IsAudioEnabled = !mute
	if err := s.store.SaveParticipant(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// SetVideo enables or disables the target's video.
func (s *ControlService) SetVideo(ctx context.Context, hostID, targetID domain.ParticipantID, enable bool) (*domain.Participant, error) {
	target, err := s.admit(ctx, hostID, targetID)
	if err != nil {
		return nil, err
	}
	target.IsVideoEnabled = enable
	if err := s.store.SaveParticipant(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// SetScreenShare enables or blocks the target's screen share.
func (s *ControlService) SetScreenShare(ctx context.Context, hostID, targetID domain.ParticipantID, enable bool) (*domain.Participant, error) {
	target, err := s.admit(ctx, hostID, targetID)
	if err != nil {
		return nil, err
	}
	target.IsScreenSharing = enable
	if err := s.store.SaveParticipant(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}
