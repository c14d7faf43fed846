package core

import (
	"context"

	"github.com/dkeye/huddle/internal/domain"
)

// RoomStore persists the meeting aggregate as a whole document.
// FindRoom returns domain.ErrRoomNotFound for unknown ids.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	FindRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	SaveRoom(ctx context.Context, room *domain.Room) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg domain.ChatMessage) error
	FindMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error)
	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error)
}

type IdentityStore interface {
	FindIdentity(ctx context.Context, id domain.IdentityID) (domain.Identity, error)
}

type Store interface {
	RoomStore
	MessageStore
	IdentityStore
	Close(ctx context.Context) error
}
