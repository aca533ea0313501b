package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/domain"
	"huddle/internal/store"
)

type controlFixture struct {
	store   *store.MemoryStore
	rooms   *RoomService
	control *ControlService
	room    *domain.Room
	host    *domain.Participant
	bob     *domain.Participant
}

func newControlFixture(t *testing.T) *controlFixture {
	t.Helper()
	st := store.NewMemoryStore()
	rooms := NewRoomService(st, NewChatBuffer(100), 30*time.Minute)
	ctx := context.Background()

	room, host, err := rooms.Create(ctx, CreateRoomInput{Title: "Standup"})
	require.NoError(t, err)
	_, bob, err := rooms.Join(ctx, room.ID, "Bob", "")
	require.NoError(t, err)

	return &controlFixture{
		store:   st,
		rooms:   rooms,
		control: NewControlService(st),
		room:    room,
		host:    host,
		bob:     bob,
	}
}

func TestControl_Kick(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	kicked, err := f.control.Kick(ctx, f.host.ID, f.bob.ID)
	require.NoError(t, err)
	require.NotNil(t, kicked.LeftAt)

	stored, err := f.store.GetParticipant(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, stored.Present())

	// The target is gone, so repeating the kick fails admission.
	_, err = f.control.Kick(ctx, f.host.ID, f.bob.ID)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestControl_MuteCycle(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	muted, err := f.control.Mute(ctx, f.host.ID, f.bob.ID, true)
	require.NoError(t, err)
	assert.False(t, muted.IsAudioEnabled)

	unmuted, err := f.control.Mute(ctx, f.host.ID, f.bob.ID, false)
	require.NoError(t, err)
	assert.True(t, unmuted.IsAudioEnabled)
}

func TestControl_VideoAndScreenShare(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	p, err := f.control.SetVideo(ctx, f.host.ID, f.bob.ID, false)
	require.NoError(t, err)
	assert.False(t, p.IsVideoEnabled)

	p, err = f.control.SetScreenShare(ctx, f.host.ID, f.bob.ID, true)
	require.NoError(t, err)
	assert.True(t, p.IsScreenSharing)
	assert.False(t, p.IsVideoEnabled, "flags are independent")
}

func TestControl_NonHostActorForbidden(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	_, carol, err := f.rooms.Join(ctx, f.room.ID, "Carol", "")
	require.NoError(t, err)

	_, err = f.control.Mute(ctx, f.bob.ID, carol.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := f.store.GetParticipant(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAudioEnabled, "state untouched on rejection")
}

func TestControl_HostCannotTargetHost(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	// A self-kick is the simplest host-targets-host case.
	_, err := f.control.Kick(ctx, f.host.ID, f.host.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Force a pathological two-host state directly in the store and
	// verify host authority is still not peer-actionable.
	f.bob.IsHost = true
	require.NoError(t, f.store.SaveParticipant(ctx, f.bob))

	_, err = f.control.Mute(ctx, f.host.ID, f.bob.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := f.store.GetParticipant(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAudioEnabled)
	assert.True(t, stored.Present())
}

func TestControl_LeftActorLosesAuthority(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rooms.Leave(ctx, f.host.ID))

	_, err := f.control.Mute(ctx, f.host.ID, f.bob.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestControl_CrossRoomTargetRejected(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	other, _, err := f.rooms.Create(ctx, CreateRoomInput{Title: "Other"})
	require.NoError(t, err)
	_, dave, err := f.rooms.Join(ctx, other.ID, "Dave", "")
	require.NoError(t, err)

	_, err = f.control.Kick(ctx, f.host.ID, dave.ID)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestControl_UnknownIDs(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	_, err := f.control.Kick(ctx, "ghost", f.bob.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.control.Kick(ctx, f.host.ID, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Host actions mutate the store even when the target has no live
// realtime connection; the flag is simply waiting when they reconnect.
func TestControl_AppliesWithoutLiveConnection(t *testing.T) {
	f := newControlFixture(t)
	ctx := context.Background()

	_, err := f.control.Mute(ctx, f.host.ID, f.bob.ID, true)
	require.NoError(t, err)

	stored, err := f.store.GetParticipant(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAudioEnabled)
}
