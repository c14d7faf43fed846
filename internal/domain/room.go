package domain

import (
	"time"
)

type RoomID string

const (
	DefaultMaxParticipants = 50
	MinParticipants        = 2
	MaxParticipantsLimit   = 500
	MaxTitleLen            = 120
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
)

type Settings struct {
	AllowChat        bool   `json:"allowChat"`
	AllowScreenShare bool   `json:"allowScreenShare"`
	RequirePassword  bool   `json:"requirePassword"`
	PasswordHash     string `json:"-"`
	WaitingRoom      bool   `json:"waitingRoom"`
	MuteOnEntry      bool   `json:"muteOnEntry"`
}

// DefaultSettings mirrors what a freshly created meeting gets.
func DefaultSettings() Settings {
	return Settings{AllowChat: true, AllowScreenShare: true}
}

// Participant is a membership entry. It is never hard-deleted: LeftAt marks
// the end of the membership.
type Participant struct {
	IdentityID      IdentityID `json:"identityId"`
	DisplayName     string     `json:"displayName"`
	IsHost          bool       `json:"isHost"`
	JoinedAt        time.Time  `json:"joinedAt"`
	LeftAt          *time.Time `json:"leftAt,omitempty"`
	IsVideoEnabled  bool       `json:"isVideoEnabled"`
	IsAudioEnabled  bool       `json:"isAudioEnabled"`
	IsScreenSharing bool       `json:"isScreenSharing"`
	HostMuted       bool       `json:"hostMuted"`
}

func (p *Participant) Active() bool { return p.LeftAt == nil }

// Room is the persisted meeting aggregate.
type Room struct {
	ID              RoomID        `json:"id"`
	Title           string        `json:"title"`
	HostID          IdentityID    `json:"hostId"`
	IsActive        bool          `json:"isActive"`
	CreatedAt       time.Time     `json:"createdAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	MaxParticipants int           `json:"maxParticipants"`
	Settings        Settings      `json:"settings"`
	Participants    []Participant `json:"participants"`
}

func (r *Room) Status() Status {
	switch {
	case r.EndedAt != nil:
		return StatusEnded
	case r.IsActive:
		return StatusActive
	default:
		return StatusScheduled
	}
}

func (r *Room) IsHost(id IdentityID) bool { return r.HostID == id }

// ActiveParticipant returns the index of id's non-left participant record, or -1.
func (r *Room) ActiveParticipant(id IdentityID) int {
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.IdentityID == id && p.Active() {
			return i
		}
	}
	return -1
}

func (r *Room) ActiveCount() int {
	n := 0
	for i := range r.Participants {
		if r.Participants[i].Active() {
			n++
		}
	}
	return n
}

func (r *Room) ActiveParticipants() []Participant {
	out := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// HostName is the display name the host joined with, falling back to "host".
func (r *Room) HostName() string {
	for i := len(r.Participants) - 1; i >= 0; i-- {
		if p := r.Participants[i]; p.IdentityID == r.HostID && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return "host"
}

// Clone returns a deep copy so transitions never alias the stored aggregate.
func (r *Room) Clone() *Room {
	c := *r
	c.StartedAt = cloneTime(r.StartedAt)
	c.EndedAt = cloneTime(r.EndedAt)
	c.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		p.LeftAt = cloneTime(p.LeftAt)
		c.Participants[i] = p
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RoomView is the public projection of a room; it never carries the password hash.
type RoomView struct {
	ID              RoomID        `json:"id"`
	Title           string        `json:"title"`
	HostID          IdentityID    `json:"hostId"`
	Status          Status        `json:"status"`
	IsActive        bool          `json:"isActive"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	MaxParticipants int           `json:"maxParticipants"`
	Settings        Settings      `json:"settings"`
	Participants    []Participant `json:"participants"`
}

func (r *Room) View() RoomView {
	return RoomView{
		ID:              r.ID,
		Title:           r.Title,
		HostID:          r.HostID,
		Status:          r.Status(),
		IsActive:        r.IsActive,
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		MaxParticipants: r.MaxParticipants,
		Settings:        r.Settings,
		Participants:    r.ActiveParticipants(),
	}
}
