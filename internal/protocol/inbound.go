package protocol

import (
	"encoding/json"

	"github.com/dkeye/huddle/internal/domain"
)

const (
	KindJoinMeeting           Kind = "join-meeting"
	KindLeaveMeeting          Kind = "leave-meeting"
	KindOffer                 Kind = "offer"
	KindAnswer                Kind = "answer"
	KindICECandidate          Kind = "ice-candidate"
	KindToggleVideo           Kind = "toggle-video"
	KindToggleAudio           Kind = "toggle-audio"
	KindStartScreenShare      Kind = "start-screen-share"
	KindStopScreenShare       Kind = "stop-screen-share"
	KindVoiceActivity         Kind = "voice-activity"
	KindStartMeeting          Kind = "start-meeting"
	KindEndMeeting            Kind = "end-meeting"
	KindRemoveParticipant     Kind = "remove-participant"
	KindHostMuteParticipant   Kind = "host-mute-participant"
	KindHostUnmuteParticipant Kind = "host-unmute-participant"
	KindSendMessage           Kind = "send-message"
	KindTypingStart           Kind = "typing-start"
	KindTypingStop            Kind = "typing-stop"
	KindPing                  Kind = "ping"
)

// Inbound is a client to server event.
type Inbound interface {
	Kind() Kind
	Validate() error
	isInbound()
}

var inboundKinds = map[Kind]func() Inbound{
	KindJoinMeeting:           func() Inbound { return &JoinMeeting{} },
	KindLeaveMeeting:          func() Inbound { return &LeaveMeeting{} },
	KindOffer:                 func() Inbound { return &Signal{Type: KindOffer} },
	KindAnswer:                func() Inbound { return &Signal{Type: KindAnswer} },
	KindICECandidate:          func() Inbound { return &Signal{Type: KindICECandidate} },
	KindToggleVideo:           func() Inbound { return &ToggleMedia{Flag: domain.FlagVideo} },
	KindToggleAudio:           func() Inbound { return &ToggleMedia{Flag: domain.FlagAudio} },
	KindStartScreenShare:      func() Inbound { return &ScreenShare{Active: true} },
	KindStopScreenShare:       func() Inbound { return &ScreenShare{Active: false} },
	KindVoiceActivity:         func() Inbound { return &VoiceActivity{} },
	KindStartMeeting:          func() Inbound { return &StartMeeting{} },
	KindEndMeeting:            func() Inbound { return &EndMeeting{} },
	KindRemoveParticipant:     func() Inbound { return &RemoveParticipant{} },
	KindHostMuteParticipant:   func() Inbound { return &HostMute{Mute: true} },
	KindHostUnmuteParticipant: func() Inbound { return &HostMute{Mute: false} },
	KindSendMessage:           func() Inbound { return &SendMessage{} },
	KindTypingStart:           func() Inbound { return &Typing{Active: true} },
	KindTypingStop:            func() Inbound { return &Typing{Active: false} },
	KindPing:                  func() Inbound { return &Ping{} },
}

var errMeetingIDRequired = domain.Validation("meetingId is required")

func requireMeeting(id domain.RoomID) error {
	if id == "" {
		return errMeetingIDRequired
	}
	return nil
}

type JoinMeeting struct {
	MeetingID domain.RoomID `json:"meetingId"`
	Password  string        `json:"password,omitempty"`
}

func (*JoinMeeting) Kind() Kind        { return KindJoinMeeting }
func (m *JoinMeeting) Validate() error { return requireMeeting(m.MeetingID) }
func (*JoinMeeting) isInbound()        {}

type LeaveMeeting struct {
	MeetingID domain.RoomID `json:"meetingId"`
}

func (*LeaveMeeting) Kind() Kind        { return KindLeaveMeeting }
func (m *LeaveMeeting) Validate() error { return requireMeeting(m.MeetingID) }
func (*LeaveMeeting) isInbound()        {}

// Signal is an offer, answer or ICE candidate. The payload is opaque to the server.
// Without a target it is delivered to everyone else in the sender's meeting.
type Signal struct {
	Type             Kind              `json:"-"`
	MeetingID        domain.RoomID     `json:"meetingId"`
	TargetIdentityID domain.IdentityID `json:"targetIdentityId,omitempty"`
	Payload          json.RawMessage   `json:"payload"`
}

func (m *Signal) Kind() Kind { return m.Type }
func (m *Signal) Validate() error {
	switch m.Type {
	case KindOffer, KindAnswer, KindICECandidate:
	default:
		return domain.Validation("unsupported signal %q", m.Type)
	}
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return domain.Validation("%s payload is required", m.Type)
	}
	return requireMeeting(m.MeetingID)
}
func (*Signal) isInbound() {}

type ToggleMedia struct {
	Flag      domain.MediaFlag `json:"-"`
	MeetingID domain.RoomID    `json:"meetingId"`
	Enabled   bool             `json:"enabled"`
}

func (m *ToggleMedia) Kind() Kind {
	if m.Flag == domain.FlagAudio {
		return KindToggleAudio
	}
	return KindToggleVideo
}
func (m *ToggleMedia) Validate() error {
	if m.Flag != domain.FlagAudio && m.Flag != domain.FlagVideo {
		return domain.Validation("unsupported media flag %q", m.Flag)
	}
	return requireMeeting(m.MeetingID)
}
func (*ToggleMedia) isInbound() {}

type ScreenShare struct {
	MeetingID domain.RoomID `json:"meetingId"`
	Active    bool          `json:"-"`
}

func (m *ScreenShare) Kind() Kind {
	if m.Active {
		return KindStartScreenShare
	}
	return KindStopScreenShare
}
func (m *ScreenShare) Validate() error { return requireMeeting(m.MeetingID) }
func (*ScreenShare) isInbound()        {}

type VoiceActivity struct {
	MeetingID  domain.RoomID `json:"meetingId"`
	IsSpeaking bool          `json:"isSpeaking"`
}

func (*VoiceActivity) Kind() Kind        { return KindVoiceActivity }
func (m *VoiceActivity) Validate() error { return requireMeeting(m.MeetingID) }
func (*VoiceActivity) isInbound()        {}

type StartMeeting struct {
	MeetingID domain.RoomID `json:"meetingId"`
}

func (*StartMeeting) Kind() Kind        { return KindStartMeeting }
func (m *StartMeeting) Validate() error { return requireMeeting(m.MeetingID) }
func (*StartMeeting) isInbound()        {}

type EndMeeting struct {
	MeetingID domain.RoomID `json:"meetingId"`
}

func (*EndMeeting) Kind() Kind        { return KindEndMeeting }
func (m *EndMeeting) Validate() error { return requireMeeting(m.MeetingID) }
func (*EndMeeting) isInbound()        {}

func requireTarget(meeting domain.RoomID, target domain.IdentityID) error {
	if target == "" {
		return domain.Validation("targetIdentityId is required")
	}
	return requireMeeting(meeting)
}

type RemoveParticipant struct {
	MeetingID        domain.RoomID     `json:"meetingId"`
	TargetIdentityID domain.IdentityID `json:"targetIdentityId"`
}

func (*RemoveParticipant) Kind() Kind { return KindRemoveParticipant }
func (m *RemoveParticipant) Validate() error {
	return requireTarget(m.MeetingID, m.TargetIdentityID)
}
func (*RemoveParticipant) isInbound() {}

type HostMute struct {
	MeetingID        domain.RoomID     `json:"meetingId"`
	TargetIdentityID domain.IdentityID `json:"targetIdentityId"`
	Mute             bool              `json:"-"`
}

func (m *HostMute) Kind() Kind {
	if m.Mute {
		return KindHostMuteParticipant
	}
	return KindHostUnmuteParticipant
}
func (m *HostMute) Validate() error { return requireTarget(m.MeetingID, m.TargetIdentityID) }
func (*HostMute) isInbound()        {}

type SendMessage struct {
	MeetingID domain.RoomID    `json:"meetingId"`
	Content   string           `json:"content"`
	ReplyTo   domain.MessageID `json:"replyTo,omitempty"`
}

func (*SendMessage) Kind() Kind { return KindSendMessage }
func (m *SendMessage) Validate() error {
	if m.Content == "" {
		return domain.Validation("content is required")
	}
	return requireMeeting(m.MeetingID)
}
func (*SendMessage) isInbound() {}

type Typing struct {
	MeetingID domain.RoomID `json:"meetingId"`
	Active    bool          `json:"-"`
}

func (m *Typing) Kind() Kind {
	if m.Active {
		return KindTypingStart
	}
	return KindTypingStop
}
func (m *Typing) Validate() error { return requireMeeting(m.MeetingID) }
func (*Typing) isInbound()        {}

type Ping struct{}

func (*Ping) Kind() Kind      { return KindPing }
func (*Ping) Validate() error { return nil }
func (*Ping) isInbound()      {}
