package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/store/memory"
	"golang.org/x/crypto/bcrypt"
)

func newRoomState(t *testing.T) (*RoomState, *memory.Store) {
	t.Helper()
	store := memory.New()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewRoomState(store, WithHashCost(bcrypt.MinCost), WithClock(func() time.Time { return fixed })), store
}

func TestRoomStateCreateHashesPassword(t *testing.T) {
	s, store := newRoomState(t)
	ctx := context.Background()
	room, err := s.Create(ctx, ident("host"), CreateRoomRequest{Title: " daily ", Password: "pw", Settings: domain.DefaultSettings()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	stored, err := store.FindRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("FindRoom() error = %v", err)
	}
	if stored.Title != "daily" || stored.MaxParticipants != domain.DefaultMaxParticipants {
		t.Fatalf("stored room = %+v", stored)
	}
	if !stored.Settings.RequirePassword || stored.Settings.PasswordHash == "pw" || stored.Settings.PasswordHash == "" {
		t.Fatalf("password not hashed: %+v", stored.Settings)
	}
	if stored.Status() != domain.StatusScheduled {
		t.Fatalf("status = %s", stored.Status())
	}

	if _, _, err := s.Join(ctx, room.ID, ident("guest"), "nope"); !errors.Is(err, domain.ErrWrongPassword) {
		t.Fatalf("Join(wrong password) error = %v", err)
	}
	if _, _, err := s.Join(ctx, room.ID, ident("guest"), "pw"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
}

func TestRoomStateCreateRejectsBadInput(t *testing.T) {
	s, _ := newRoomState(t)
	_, err := s.Create(context.Background(), ident("host"), CreateRoomRequest{MaxParticipants: 1})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("Create(max=1) error = %v", err)
	}
}

func TestRoomStateJoinIsIdempotent(t *testing.T) {
	s, _ := newRoomState(t)
	ctx := context.Background()
	room, _ := s.Create(ctx, ident("host"), CreateRoomRequest{Settings: domain.DefaultSettings()})

	if _, _, err := s.Join(ctx, room.ID, ident("a"), ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	got, p, err := s.Join(ctx, room.ID, ident("a"), "")
	if !errors.Is(err, domain.ErrAlreadyJoined) || !IsJoinSuccess(err) {
		t.Fatalf("second Join() error = %v", err)
	}
	if p.IdentityID != "a" || got.ActiveCount() != 1 {
		t.Fatalf("second Join() = %+v, count %d", p, got.ActiveCount())
	}
}

func TestRoomStateCapacityUnderConcurrency(t *testing.T) {
	s, store := newRoomState(t)
	ctx := context.Background()
	room, _ := s.Create(ctx, ident("host"), CreateRoomRequest{MaxParticipants: 5, Settings: domain.DefaultSettings()})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Join(ctx, room.ID, ident(string(rune('a'+i))), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrRoomFull):
				full++
			default:
				t.Errorf("Join() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 5 || full != 15 {
		t.Fatalf("ok=%d full=%d, want 5/15", ok, full)
	}
	stored, _ := store.FindRoom(ctx, room.ID)
	if stored.ActiveCount() != 5 {
		t.Fatalf("active count = %d", stored.ActiveCount())
	}
}

func TestRoomStateFailedMutationIsNotSaved(t *testing.T) {
	s, store := newRoomState(t)
	ctx := context.Background()
	room, _ := s.Create(ctx, ident("host"), CreateRoomRequest{Settings: domain.DefaultSettings()})
	s.Join(ctx, room.ID, ident("host"), "")
	s.Join(ctx, room.ID, ident("guest"), "")

	if _, _, err := s.Remove(ctx, room.ID, "guest", "host"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("Remove(by guest) error = %v", err)
	}
	if _, err := s.End(ctx, room.ID, "host"); !errors.Is(err, domain.ErrMeetingInactive) {
		t.Fatalf("End(scheduled) error = %v", err)
	}
	stored, _ := store.FindRoom(ctx, room.ID)
	if stored.ActiveCount() != 2 || stored.IsActive {
		t.Fatalf("room mutated by failed calls: %+v", stored)
	}
}

func TestRoomStateLeaveEndsActiveMeeting(t *testing.T) {
	s, _ := newRoomState(t)
	ctx := context.Background()
	room, _ := s.Create(ctx, ident("host"), CreateRoomRequest{Settings: domain.DefaultSettings()})
	s.Join(ctx, room.ID, ident("host"), "")
	if _, err := s.Start(ctx, room.ID, "host"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	got, err := s.Leave(ctx, room.ID, "host")
	if err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if got.IsActive || got.EndedAt == nil || got.Status() != domain.StatusEnded {
		t.Fatalf("room after last leave = %+v", got)
	}
	if _, err := s.Leave(ctx, room.ID, "host"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("second Leave() error = %v", err)
	}
}

func TestRoomStateUnknownRoom(t *testing.T) {
	s, _ := newRoomState(t)
	if _, _, err := s.Join(context.Background(), "missing", ident("a"), ""); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("Join(missing) error = %v", err)
	}
}
