package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

func TestRoomsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	room := &domain.Room{ID: "m1", HostID: "h", MaxParticipants: 3}
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if err := s.CreateRoom(ctx, room); !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("duplicate CreateRoom() error = %v", err)
	}
	room.Participants = append(room.Participants, domain.Participant{IdentityID: "x"})

	got, err := s.FindRoom(ctx, "m1")
	if err != nil {
		t.Fatalf("FindRoom() error = %v", err)
	}
	if len(got.Participants) != 0 {
		t.Fatalf("store aliased caller's room: %+v", got.Participants)
	}
	got.Title = "changed"
	again, _ := s.FindRoom(ctx, "m1")
	if again.Title != "" {
		t.Fatalf("store aliased returned room")
	}
	if _, err := s.FindRoom(ctx, "nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("FindRoom(unknown) error = %v", err)
	}
}

func TestListMessagesKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []domain.MessageID{"a", "b", "c"} {
		_ = s.CreateMessage(ctx, domain.ChatMessage{ID: id, RoomID: "m1", CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	_ = s.CreateMessage(ctx, domain.ChatMessage{ID: "z", RoomID: "other", CreatedAt: base})

	got, err := s.ListMessages(ctx, "m1", 2)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("ListMessages() = %+v", got)
	}
	if _, err := s.FindMessage(ctx, "missing"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("FindMessage(missing) error = %v", err)
	}
}
