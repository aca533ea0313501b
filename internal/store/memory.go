package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"huddle/internal/domain"
)

// MemoryStore keeps all records in process memory. Values are copied
// on the way in and out so callers never alias store-owned structs.
type MemoryStore struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*domain.Room
	participants map[domain.ParticipantID]*domain.Participant
	byRoom       map[domain.RoomID][]domain.ParticipantID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[domain.RoomID]*domain.Room),
		participants: make(map[domain.ParticipantID]*domain.Participant),
		byRoom:       make(map[domain.RoomID][]domain.ParticipantID),
	}
}

func copyParticipant(p *domain.Participant) *domain.Participant {
	cp := *p
	if p.LeftAt != nil {
		t := *p.LeftAt
		cp.LeftAt = &t
	}
	return &cp
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *domain.Room, host *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return domain.ErrConflict
	}
	r := *room
	s.rooms[room.ID] = &r
	s.participants[host.ID] = copyParticipant(host)
	s.byRoom[room.ID] = append(s.byRoom[room.ID], host.ID)
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) DeactivateRoom(_ context.Context, id domain.RoomID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil
	}
	r.IsActive = false
	for _, pid := range s.byRoom[id] {
		if p := s.participants[pid]; p != nil && p.LeftAt == nil {
			t := at
			p.LeftAt = &t
		}
	}
	return nil
}

func (s *MemoryStore) CreateParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; ok {
		return domain.ErrConflict
	}
	s.participants[p.ID] = copyParticipant(p)
	s.byRoom[p.RoomID] = append(s.byRoom[p.RoomID], p.ID)
	return nil
}

func (s *MemoryStore) GetParticipant(_ context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyParticipant(p), nil
}

func (s *MemoryStore) SaveParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return domain.ErrNotFound
	}
	s.participants[p.ID] = copyParticipant(p)
	return nil
}

func (s *MemoryStore) MarkLeft(_ context.Context, id domain.ParticipantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok || p.LeftAt != nil {
		return nil
	}
	t := at
	p.LeftAt = &t
	return nil
}

func (s *MemoryStore) ListActiveParticipants(_ context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0, len(s.byRoom[roomID]))
	for _, pid := range s.byRoom[roomID] {
		if p := s.participants[pid]; p != nil && p.LeftAt == nil {
			out = append(out, *copyParticipant(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *MemoryStore) CountActiveParticipants(_ context.Context, roomID domain.RoomID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, pid := range s.byRoom[roomID] {
		if p := s.participants[pid]; p != nil && p.LeftAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) FindActiveParticipantByName(_ context.Context, roomID domain.RoomID, name string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pid := range s.byRoom[roomID] {
		if p := s.participants[pid]; p != nil && p.LeftAt == nil && p.Name == name {
			return copyParticipant(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) ActiveHost(_ context.Context, roomID domain.RoomID) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pid := range s.byRoom[roomID] {
		if p := s.participants[pid]; p != nil && p.LeftAt == nil && p.IsHost {
			return copyParticipant(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
