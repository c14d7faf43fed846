package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

const (
	KindMeetingJoined        Kind = "meeting-joined"
	KindMeetingLeft          Kind = "meeting-left"
	KindMeetingStarted       Kind = "meeting-started"
	KindUserJoined           Kind = "user-joined"
	KindUserLeft             Kind = "user-left"
	KindUserDisconnected     Kind = "user-disconnected"
	KindVideoToggled         Kind = "participant-video-toggled"
	KindAudioToggled         Kind = "participant-audio-toggled"
	KindScreenShareStarted   Kind = "participant-started-screen-share"
	KindScreenShareStopped   Kind = "participant-stopped-screen-share"
	KindVoiceActivityChanged Kind = "participant-voice-activity"
	KindMeetingEnded         Kind = "meeting-ended"
	KindRemovedFromMeeting   Kind = "removed-from-meeting"
	KindParticipantRemoved   Kind = "participant-removed"
	KindHostMutedYou         Kind = "host-muted-you"
	KindHostUnmutedYou       Kind = "host-unmuted-you"
	KindNewMessage           Kind = "new-message"
	KindUserTypingStart      Kind = "user-typing-start"
	KindUserTypingStop       Kind = "user-typing-stop"
	KindError                Kind = "error"
	KindPong                 Kind = "pong"
)

// Outbound is a server to client event.
type Outbound interface {
	Kind() Kind
	isOutbound()
}

var outboundKinds = map[Kind]func() Outbound{
	KindMeetingJoined:        func() Outbound { return &MeetingJoined{} },
	KindMeetingLeft:          func() Outbound { return &MeetingLeft{} },
	KindMeetingStarted:       func() Outbound { return &MeetingStarted{} },
	KindUserJoined:           func() Outbound { return &UserJoined{} },
	KindUserLeft:             func() Outbound { return &UserLeft{} },
	KindUserDisconnected:     func() Outbound { return &UserDisconnected{} },
	KindOffer:                func() Outbound { return &RelayedSignal{Type: KindOffer} },
	KindAnswer:               func() Outbound { return &RelayedSignal{Type: KindAnswer} },
	KindICECandidate:         func() Outbound { return &RelayedSignal{Type: KindICECandidate} },
	KindVideoToggled:         func() Outbound { return &VideoToggled{} },
	KindAudioToggled:         func() Outbound { return &AudioToggled{} },
	KindScreenShareStarted:   func() Outbound { return &ScreenShareChanged{Active: true} },
	KindScreenShareStopped:   func() Outbound { return &ScreenShareChanged{Active: false} },
	KindVoiceActivityChanged: func() Outbound { return &VoiceActivityChanged{} },
	KindMeetingEnded:         func() Outbound { return &MeetingEnded{} },
	KindRemovedFromMeeting:   func() Outbound { return &RemovedFromMeeting{} },
	KindParticipantRemoved:   func() Outbound { return &ParticipantRemoved{} },
	KindHostMutedYou:         func() Outbound { return &HostMutedYou{Muted: true} },
	KindHostUnmutedYou:       func() Outbound { return &HostMutedYou{Muted: false} },
	KindNewMessage:           func() Outbound { return &NewMessage{} },
	KindUserTypingStart:      func() Outbound { return &UserTyping{Active: true} },
	KindUserTypingStop:       func() Outbound { return &UserTyping{Active: false} },
	KindError:                func() Outbound { return &Error{} },
	KindPong:                 func() Outbound { return &Pong{} },
}

// RosterEntry describes one participant as other clients see it.
type RosterEntry struct {
	IdentityID      domain.IdentityID `json:"identityId"`
	DisplayName     string            `json:"displayName"`
	IsHost          bool              `json:"isHost"`
	IsVideoEnabled  bool              `json:"isVideoEnabled"`
	IsAudioEnabled  bool              `json:"isAudioEnabled"`
	IsScreenSharing bool              `json:"isScreenSharing"`
	HostMuted       bool              `json:"hostMuted"`
	Online          bool              `json:"online"`
}

func EntryFromParticipant(p domain.Participant, online bool) RosterEntry {
	return RosterEntry{
		IdentityID:      p.IdentityID,
		DisplayName:     p.DisplayName,
		IsHost:          p.IsHost,
		IsVideoEnabled:  p.IsVideoEnabled,
		IsAudioEnabled:  p.IsAudioEnabled,
		IsScreenSharing: p.IsScreenSharing,
		HostMuted:       p.HostMuted,
		Online:          online,
	}
}

type MeetingJoined struct {
	Room   domain.RoomView `json:"room"`
	Roster []RosterEntry   `json:"roster"`
}

func (*MeetingJoined) Kind() Kind  { return KindMeetingJoined }
func (*MeetingJoined) isOutbound() {}

type MeetingLeft struct {
	MeetingID domain.RoomID `json:"meetingId"`
}

func (*MeetingLeft) Kind() Kind  { return KindMeetingLeft }
func (*MeetingLeft) isOutbound() {}

type MeetingStarted struct {
	MeetingID domain.RoomID `json:"meetingId"`
	StartedAt time.Time     `json:"startedAt"`
}

func (*MeetingStarted) Kind() Kind  { return KindMeetingStarted }
func (*MeetingStarted) isOutbound() {}

type UserJoined struct {
	IdentityID domain.IdentityID `json:"identityId"`
	Profile    RosterEntry       `json:"profile"`
}

func (*UserJoined) Kind() Kind  { return KindUserJoined }
func (*UserJoined) isOutbound() {}

type UserLeft struct {
	IdentityID domain.IdentityID `json:"identityId"`
}

func (*UserLeft) Kind() Kind  { return KindUserLeft }
func (*UserLeft) isOutbound() {}

type UserDisconnected struct {
	IdentityID domain.IdentityID `json:"identityId"`
}

func (*UserDisconnected) Kind() Kind  { return KindUserDisconnected }
func (*UserDisconnected) isOutbound() {}

// RelayedSignal is a forwarded offer, answer or ICE candidate.
type RelayedSignal struct {
	Type           Kind              `json:"-"`
	FromIdentityID domain.IdentityID `json:"fromIdentityId"`
	Payload        json.RawMessage   `json:"payload"`
}

func (m *RelayedSignal) Kind() Kind { return m.Type }
func (*RelayedSignal) isOutbound()  {}

type VideoToggled struct {
	IdentityID domain.IdentityID `json:"identityId"`
	Enabled    bool              `json:"enabled"`
}

func (*VideoToggled) Kind() Kind  { return KindVideoToggled }
func (*VideoToggled) isOutbound() {}

type AudioToggled struct {
	IdentityID  domain.IdentityID `json:"identityId"`
	Enabled     bool              `json:"enabled"`
	MutedByHost bool              `json:"mutedByHost,omitempty"`
}

func (*AudioToggled) Kind() Kind  { return KindAudioToggled }
func (*AudioToggled) isOutbound() {}

type ScreenShareChanged struct {
	IdentityID domain.IdentityID `json:"identityId"`
	Active     bool              `json:"-"`
}

func (m *ScreenShareChanged) Kind() Kind {
	if m.Active {
		return KindScreenShareStarted
	}
	return KindScreenShareStopped
}
func (*ScreenShareChanged) isOutbound() {}

type VoiceActivityChanged struct {
	IdentityID domain.IdentityID `json:"identityId"`
	IsSpeaking bool              `json:"isSpeaking"`
}

func (*VoiceActivityChanged) Kind() Kind  { return KindVoiceActivityChanged }
func (*VoiceActivityChanged) isOutbound() {}

type MeetingEnded struct {
	Message  string `json:"message"`
	HostName string `json:"hostName"`
}

func (*MeetingEnded) Kind() Kind  { return KindMeetingEnded }
func (*MeetingEnded) isOutbound() {}

type RemovedFromMeeting struct {
	Message  string `json:"message"`
	HostName string `json:"hostName"`
}

func (*RemovedFromMeeting) Kind() Kind  { return KindRemovedFromMeeting }
func (*RemovedFromMeeting) isOutbound() {}

type ParticipantRemoved struct {
	TargetIdentityID domain.IdentityID `json:"targetIdentityId"`
	RemovedBy        domain.IdentityID `json:"removedBy"`
}

func (*ParticipantRemoved) Kind() Kind  { return KindParticipantRemoved }
func (*ParticipantRemoved) isOutbound() {}

type HostMutedYou struct {
	Message  string `json:"message"`
	HostName string `json:"hostName"`
	Muted    bool   `json:"-"`
}

func (m *HostMutedYou) Kind() Kind {
	if m.Muted {
		return KindHostMutedYou
	}
	return KindHostUnmutedYou
}
func (*HostMutedYou) isOutbound() {}

type NewMessage struct {
	domain.ChatMessage
}

func (*NewMessage) Kind() Kind  { return KindNewMessage }
func (*NewMessage) isOutbound() {}

type UserTyping struct {
	IdentityID  domain.IdentityID `json:"identityId"`
	DisplayName string            `json:"displayName"`
	Active      bool              `json:"-"`
}

func (m *UserTyping) Kind() Kind {
	if m.Active {
		return KindUserTypingStart
	}
	return KindUserTypingStop
}
func (*UserTyping) isOutbound() {}

// Error reports a failed event to the connection that sent it.
type Error struct {
	Code    domain.ErrorKind `json:"code"`
	Message string           `json:"message"`
}

func (*Error) Kind() Kind  { return KindError }
func (*Error) isOutbound() {}

func ErrorFrom(err error) *Error {
	return &Error{Code: domain.KindOf(err), Message: domain.PublicMessage(err)}
}

type Pong struct{}

func (*Pong) Kind() Kind  { return KindPong }
func (*Pong) isOutbound() {}
