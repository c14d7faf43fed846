package domain

import (
	"strings"
	"time"
)

const MaxMessageLen = 2000

type MessageID string

// ChatMessage is a message on a meeting's chat side-channel.
type ChatMessage struct {
	ID         MessageID  `json:"id"`
	RoomID     RoomID     `json:"meetingId"`
	SenderID   IdentityID `json:"senderId"`
	SenderName string     `json:"senderName"`
	Content    string     `json:"content"`
	ReplyTo    MessageID  `json:"replyTo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func NewChatMessage(id MessageID, room RoomID, sender Identity, content string, replyTo MessageID, now time.Time) (ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ChatMessage{}, Validation("message is empty")
	}
	if len(content) > MaxMessageLen {
		return ChatMessage{}, Validation("message too long")
	}
	return ChatMessage{
		ID:         id,
		RoomID:     room,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Content:    content,
		ReplyTo:    replyTo,
		CreatedAt:  now,
	}, nil
}
