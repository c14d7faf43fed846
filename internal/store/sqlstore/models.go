package sqlstore

import (
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

type roomRecord struct {
	ID               string `gorm:"primaryKey;size:36"`
	Title            string `gorm:"size:120"`
	HostID           string `gorm:"index;size:64"`
	IsActive         bool
	CreatedAt        time.Time
	StartedAt        *time.Time
	EndedAt          *time.Time
	MaxParticipants  int
	AllowChat        bool
	AllowScreenShare bool
	RequirePassword  bool
	PasswordHash     string
	WaitingRoom      bool
	MuteOnEntry      bool
	Participants     []participantRecord `gorm:"foreignKey:RoomID"`
}

func (roomRecord) TableName() string { return "meetings" }

// participantRecord rows are append-only per room, so Seq (the position in
// the participant list) is a stable key.
type participantRecord struct {
	RoomID          string `gorm:"primaryKey;size:36"`
	Seq             int    `gorm:"primaryKey;autoIncrement:false"`
	IdentityID      string `gorm:"index;size:64"`
	DisplayName     string `gorm:"size:64"`
	IsHost          bool
	JoinedAt        time.Time
	LeftAt          *time.Time
	IsVideoEnabled  bool
	IsAudioEnabled  bool
	IsScreenSharing bool
	HostMuted       bool
}

func (participantRecord) TableName() string { return "meeting_participants" }

type messageRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	RoomID     string `gorm:"index:idx_messages_room_created;size:36"`
	SenderID   string `gorm:"size:64"`
	SenderName string `gorm:"size:64"`
	Content    string
	ReplyTo    string    `gorm:"size:36"`
	CreatedAt  time.Time `gorm:"index:idx_messages_room_created"`
}

func (messageRecord) TableName() string { return "chat_messages" }

type userRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:64"`
	IsActive    bool
}

func (userRecord) TableName() string { return "users" }

func toRoomRecord(r *domain.Room) roomRecord {
	rec := roomRecord{
		ID:               string(r.ID),
		Title:            r.Title,
		HostID:           string(r.HostID),
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		EndedAt:          r.EndedAt,
		MaxParticipants:  r.MaxParticipants,
		AllowChat:        r.Settings.AllowChat,
		AllowScreenShare: r.Settings.AllowScreenShare,
		RequirePassword:  r.Settings.RequirePassword,
		PasswordHash:     r.Settings.PasswordHash,
		WaitingRoom:      r.Settings.WaitingRoom,
		MuteOnEntry:      r.Settings.MuteOnEntry,
	}
	for i, p := range r.Participants {
		rec.Participants = append(rec.Participants, participantRecord{
			RoomID:          rec.ID,
			Seq:             i,
			IdentityID:      string(p.IdentityID),
			DisplayName:     p.DisplayName,
			IsHost:          p.IsHost,
			JoinedAt:        p.JoinedAt,
			LeftAt:          p.LeftAt,
			IsVideoEnabled:  p.IsVideoEnabled,
			IsAudioEnabled:  p.IsAudioEnabled,
			IsScreenSharing: p.IsScreenSharing,
			HostMuted:       p.HostMuted,
		})
	}
	return rec
}

func (rec roomRecord) toDomain() *domain.Room {
	r := &domain.Room{
		ID:              domain.RoomID(rec.ID),
		Title:           rec.Title,
		HostID:          domain.IdentityID(rec.HostID),
		IsActive:        rec.IsActive,
		CreatedAt:       rec.CreatedAt,
		StartedAt:       rec.StartedAt,
		EndedAt:         rec.EndedAt,
		MaxParticipants: rec.MaxParticipants,
		Settings: domain.Settings{
			AllowChat:        rec.AllowChat,
			AllowScreenShare: rec.AllowScreenShare,
			RequirePassword:  rec.RequirePassword,
			PasswordHash:     rec.PasswordHash,
			WaitingRoom:      rec.WaitingRoom,
			MuteOnEntry:      rec.MuteOnEntry,
		},
		Participants: make([]domain.Participant, len(rec.Participants)),
	}
	for i, p := range rec.Participants {
		r.Participants[i] = domain.Participant{
			IdentityID:      domain.IdentityID(p.IdentityID),
			DisplayName:     p.DisplayName,
			IsHost:          p.IsHost,
			JoinedAt:        p.JoinedAt,
			LeftAt:          p.LeftAt,
			IsVideoEnabled:  p.IsVideoEnabled,
			IsAudioEnabled:  p.IsAudioEnabled,
			IsScreenSharing: p.IsScreenSharing,
			HostMuted:       p.HostMuted,
		}
	}
	return r
}

func toMessageRecord(m domain.ChatMessage) messageRecord {
	return messageRecord{
		ID:         string(m.ID),
		RoomID:     string(m.RoomID),
		SenderID:   string(m.SenderID),
		SenderName: m.SenderName,
		Content:    m.Content,
		ReplyTo:    string(m.ReplyTo),
		CreatedAt:  m.CreatedAt,
	}
}

func (rec messageRecord) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         domain.MessageID(rec.ID),
		RoomID:     domain.RoomID(rec.RoomID),
		SenderID:   domain.IdentityID(rec.SenderID),
		SenderName: rec.SenderName,
		Content:    rec.Content,
		ReplyTo:    domain.MessageID(rec.ReplyTo),
		CreatedAt:  rec.CreatedAt,
	}
}
