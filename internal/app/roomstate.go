package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// CreateRoomRequest is what a host supplies when creating a meeting.
type CreateRoomRequest struct {
	Title           string
	MaxParticipants int
	Settings        domain.Settings
	Password        string
}

// RoomState is the only writer of persisted room membership. Every mutation
// loads the room, applies a pure transition and saves it before returning.
type RoomState struct {
	store    core.RoomStore
	locks    *keyLock
	now      func() time.Time
	hashCost int
}

type RoomStateOption func(*RoomState)

func WithClock(now func() time.Time) RoomStateOption {
	return func(s *RoomState) { s.now = now }
}

func WithHashCost(cost int) RoomStateOption {
	return func(s *RoomState) { s.hashCost = cost }
}

func NewRoomState(store core.RoomStore, opts ...RoomStateOption) *RoomState {
	s := &RoomState{
		store:    store,
		locks:    newKeyLock(),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RoomState) Create(ctx context.Context, host domain.Identity, req CreateRoomRequest) (*domain.Room, error) {
	settings := req.Settings
	settings.RequirePassword = req.Password != ""
	settings.PasswordHash = ""
	if settings.RequirePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("hash meeting password: %w", err)
		}
		settings.PasswordHash = string(hash)
	}
	room, err := domain.NewRoom(domain.RoomID(uuid.NewString()), host, req.Title, req.MaxParticipants, settings, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("module", "app.roomstate").Str("meeting", string(room.ID)).Str("host", string(host.ID)).Msg("meeting created")
	return room, nil
}

func (s *RoomState) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return s.store.FindRoom(ctx, id)
}

// Roster returns the persisted active participants.
func (s *RoomState) Roster(ctx context.Context, id domain.RoomID) ([]domain.Participant, error) {
	room, err := s.store.FindRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	return room.ActiveParticipants(), nil
}

// mutate runs one read-modify-write cycle under the room's lock. When fn fails
// nothing is saved and the loaded room is returned with the error.
func (s *RoomState) mutate(ctx context.Context, id domain.RoomID, fn func(*domain.Room) (*domain.Room, error)) (*domain.Room, error) {
	unlock := s.locks.Lock(string(id))
	defer unlock()

	room, err := s.store.FindRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(room)
	if err != nil {
		return room, err
	}
	if err := s.store.SaveRoom(ctx, next); err != nil {
		return room, fmt.Errorf("save room %s: %w", id, err)
	}
	return next, nil
}

// Join checks the password, then applies the join. ErrAlreadyJoined comes back
// with the existing participant; callers treat it as success.
func (s *RoomState) Join(ctx context.Context, id domain.RoomID, who domain.Identity, password string) (*domain.Room, domain.Participant, error) {
	var joined domain.Participant
	room, err := s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		if r.Settings.RequirePassword {
			if bcrypt.CompareHashAndPassword([]byte(r.Settings.PasswordHash), []byte(password)) != nil {
				return nil, domain.ErrWrongPassword
			}
		}
		next, p, err := domain.ApplyJoin(r, who, s.now())
		joined = p
		return next, err
	})
	if err == nil {
		log.Info().Str("module", "app.roomstate").Str("meeting", string(id)).Str("identity", string(who.ID)).Msg("participant joined")
	}
	return room, joined, err
}

func (s *RoomState) Leave(ctx context.Context, id domain.RoomID, who domain.IdentityID) (*domain.Room, error) {
	room, err := s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		return domain.ApplyLeave(r, who, s.now())
	})
	if err == nil {
		ev := log.Info().Str("module", "app.roomstate").Str("meeting", string(id)).Str("identity", string(who))
		if room.Status() == domain.StatusEnded {
			ev = ev.Bool("ended", true)
		}
		ev.Msg("participant left")
	}
	return room, err
}

func (s *RoomState) SetMediaFlag(ctx context.Context, id domain.RoomID, who domain.IdentityID, flag domain.MediaFlag, value bool) (domain.Participant, error) {
	var updated domain.Participant
	_, err := s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		next, p, err := domain.ApplyMediaFlag(r, who, flag, value)
		updated = p
		return next, err
	})
	return updated, err
}

func (s *RoomState) SetHostMute(ctx context.Context, id domain.RoomID, host, target domain.IdentityID, muted bool) (*domain.Room, domain.Participant, error) {
	var updated domain.Participant
	room, err := s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		next, p, err := domain.ApplyHostMute(r, host, target, muted)
		updated = p
		return next, err
	})
	return room, updated, err
}

func (s *RoomState) Remove(ctx context.Context, id domain.RoomID, host, target domain.IdentityID) (*domain.Room, domain.Participant, error) {
	var removed domain.Participant
	room, err := s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		next, p, err := domain.ApplyRemove(r, host, target, s.now())
		removed = p
		return next, err
	})
	return room, removed, err
}

func (s *RoomState) Start(ctx context.Context, id domain.RoomID, by domain.IdentityID) (*domain.Room, error) {
	return s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		return domain.ApplyStart(r, by, s.now())
	})
}

func (s *RoomState) End(ctx context.Context, id domain.RoomID, by domain.IdentityID) (*domain.Room, error) {
	return s.mutate(ctx, id, func(r *domain.Room) (*domain.Room, error) {
		return domain.ApplyEnd(r, by, s.now())
	})
}

// IsJoinSuccess reports whether err from Join still means the identity is in.
func IsJoinSuccess(err error) bool {
	return err == nil || errors.Is(err, domain.ErrAlreadyJoined)
}
