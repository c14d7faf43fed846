package orch

import (
	"context"
	"errors"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// SendMessage stores a chat message and delivers it to the whole meeting,
// sender included.
func (o *Orchestrator) SendMessage(ctx context.Context, snap app.ConnSnapshot, m *protocol.SendMessage) error {
	if err := requireRoom(snap, m.MeetingID); err != nil {
		return err
	}
	room, err := o.Rooms.Get(ctx, m.MeetingID)
	if err != nil {
		return err
	}
	if !room.Settings.AllowChat {
		return domain.ErrChatDisabled
	}
	if room.ActiveParticipant(snap.Identity.ID) < 0 {
		return domain.ErrNotParticipant
	}
	if m.ReplyTo != "" {
		parent, err := o.Messages.FindMessage(ctx, m.ReplyTo)
		if err != nil {
			return err
		}
		if parent.RoomID != m.MeetingID {
			return domain.ErrMessageNotFound
		}
	}
	msg, err := domain.NewChatMessage(domain.MessageID(uuid.NewString()), m.MeetingID, snap.Identity, m.Content, m.ReplyTo, o.now())
	if err != nil {
		return err
	}
	if err := o.Messages.CreateMessage(ctx, msg); err != nil {
		return err
	}
	o.broadcast(m.MeetingID, &protocol.NewMessage{ChatMessage: msg}, "")
	return nil
}

func (o *Orchestrator) Typing(snap app.ConnSnapshot, m *protocol.Typing) error {
	if err := requireRoom(snap, m.MeetingID); err != nil {
		return err
	}
	o.broadcast(m.MeetingID, &protocol.UserTyping{
		IdentityID:  snap.Identity.ID,
		DisplayName: snap.Identity.DisplayName,
		Active:      m.Active,
	}, snap.ID)
	return nil
}

// History returns recent chat messages to anyone who has been in the meeting.
func (o *Orchestrator) History(ctx context.Context, who domain.IdentityID, meeting domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	room, err := o.Rooms.Get(ctx, meeting)
	if err != nil {
		return nil, err
	}
	if !room.IsHost(who) && !everJoined(room, who) {
		return nil, domain.ErrNotParticipant
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	msgs, err := o.Messages.ListMessages(ctx, meeting, limit)
	if err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
		return nil, err
	}
	return msgs, nil
}

func everJoined(room *domain.Room, who domain.IdentityID) bool {
	for _, p := range room.Participants {
		if p.IdentityID == who {
			return true
		}
	}
	return false
}
