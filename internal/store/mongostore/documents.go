package mongostore

import (
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

type settingsDoc struct {
	AllowChat        bool   `bson:"allowChat"`
	AllowScreenShare bool   `bson:"allowScreenShare"`
	RequirePassword  bool   `bson:"requirePassword"`
	PasswordHash     string `bson:"passwordHash,omitempty"`
	WaitingRoom      bool   `bson:"waitingRoom"`
	MuteOnEntry      bool   `bson:"muteOnEntry"`
}

type participantDoc struct {
	UserID          string     `bson:"user"`
	DisplayName     string     `bson:"displayName"`
	IsHost          bool       `bson:"isHost"`
	JoinedAt        time.Time  `bson:"joinedAt"`
	LeftAt          *time.Time `bson:"leftAt,omitempty"`
	IsVideoEnabled  bool       `bson:"isVideoEnabled"`
	IsAudioEnabled  bool       `bson:"isAudioEnabled"`
	IsScreenSharing bool       `bson:"isScreenSharing"`
	HostMuted       bool       `bson:"hostMuted"`
}

type roomDoc struct {
	ID              string           `bson:"_id"`
	Title           string           `bson:"title"`
	HostID          string           `bson:"hostId"`
	IsActive        bool             `bson:"isActive"`
	CreatedAt       time.Time        `bson:"createdAt"`
	StartTime       *time.Time       `bson:"startTime,omitempty"`
	EndTime         *time.Time       `bson:"endTime,omitempty"`
	MaxParticipants int              `bson:"maxParticipants"`
	Settings        settingsDoc      `bson:"settings"`
	Participants    []participantDoc `bson:"participants"`
}

type messageDoc struct {
	ID         string    `bson:"_id"`
	RoomID     string    `bson:"roomId"`
	SenderID   string    `bson:"sender"`
	SenderName string    `bson:"senderName"`
	Content    string    `bson:"content"`
	ReplyTo    string    `bson:"replyTo,omitempty"`
	CreatedAt  time.Time `bson:"createdAt"`
}

type userDoc struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	IsActive bool   `bson:"isActive"`
}

func toRoomDoc(r *domain.Room) roomDoc {
	d := roomDoc{
		ID:              string(r.ID),
		Title:           r.Title,
		HostID:          string(r.HostID),
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		StartTime:       r.StartedAt,
		EndTime:         r.EndedAt,
		MaxParticipants: r.MaxParticipants,
		Settings:        settingsDoc(r.Settings),
		Participants:    make([]participantDoc, len(r.Participants)),
	}
	for i, p := range r.Participants {
		d.Participants[i] = participantDoc{
			UserID:          string(p.IdentityID),
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
	return d
}

func (d roomDoc) toDomain() *domain.Room {
	r := &domain.Room{
		ID:              domain.RoomID(d.ID),
		Title:           d.Title,
		HostID:          domain.IdentityID(d.HostID),
		IsActive:        d.IsActive,
		CreatedAt:       d.CreatedAt,
		StartedAt:       d.StartTime,
		EndedAt:         d.EndTime,
		MaxParticipants: d.MaxParticipants,
		Settings:        domain.Settings(d.Settings),
		Participants:    make([]domain.Participant, len(d.Participants)),
	}
	for i, p := range d.Participants {
		r.Participants[i] = domain.Participant{
			IdentityID:      domain.IdentityID(p.UserID),
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

func toMessageDoc(m domain.ChatMessage) messageDoc {
	return messageDoc{
		ID:         string(m.ID),
		RoomID:     string(m.RoomID),
		SenderID:   string(m.SenderID),
		SenderName: m.SenderName,
		Content:    m.Content,
		ReplyTo:    string(m.ReplyTo),
		CreatedAt:  m.CreatedAt,
	}
}

func (d messageDoc) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         domain.MessageID(d.ID),
		RoomID:     domain.RoomID(d.RoomID),
		SenderID:   domain.IdentityID(d.SenderID),
		SenderName: d.SenderName,
		Content:    d.Content,
		ReplyTo:    domain.MessageID(d.ReplyTo),
		CreatedAt:  d.CreatedAt,
	}
}
