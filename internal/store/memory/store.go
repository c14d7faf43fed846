// Package memory is an in-process store. Rooms are copied on the way in and out
// so callers never share an aggregate with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/huddle/internal/domain"
)

type Store struct {
	mu         sync.RWMutex
	rooms      map[domain.RoomID]*domain.Room
	messages   map[domain.MessageID]domain.ChatMessage
	byRoom     map[domain.RoomID][]domain.MessageID
	identities map[domain.IdentityID]domain.Identity
}

func New() *Store {
	return &Store{
		rooms:      make(map[domain.RoomID]*domain.Room),
		messages:   make(map[domain.MessageID]domain.ChatMessage),
		byRoom:     make(map[domain.RoomID][]domain.MessageID),
		identities: make(map[domain.IdentityID]domain.Identity),
	}
}

func (s *Store) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return domain.ErrRoomExists
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *Store) FindRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r.Clone(), nil
}

func (s *Store) SaveRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *Store) CreateMessage(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
	s.byRoom[msg.RoomID] = append(s.byRoom[msg.RoomID], msg.ID)
	return nil
}

func (s *Store) FindMessage(_ context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.ChatMessage{}, domain.ErrMessageNotFound
	}
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byRoom[room]
	out := make([]domain.ChatMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.messages[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) PutIdentity(id domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.ID] = id
}

func (s *Store) FindIdentity(_ context.Context, id domain.IdentityID) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[id]
	if !ok {
		return domain.Identity{}, domain.ErrIdentityNotFound
	}
	return ident, nil
}

func (s *Store) Close(context.Context) error { return nil }
