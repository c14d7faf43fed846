package domain

import (
	"strings"
	"time"
)

// The Apply* functions are the only place room membership is merged. Each one
// takes the stored aggregate, returns an updated copy and never touches storage.

type MediaFlag string

const (
	FlagVideo       MediaFlag = "video"
	FlagAudio       MediaFlag = "audio"
	FlagScreenShare MediaFlag = "screen-share"
)

// NewRoom validates the creation input and returns a scheduled room.
func NewRoom(id RoomID, host Identity, title string, maxParticipants int, settings Settings, now time.Time) (*Room, error) {
	if id == "" {
		return nil, Validation("meeting id empty")
	}
	title = strings.TrimSpace(title)
	if len(title) > MaxTitleLen {
		return nil, Validation("title too long")
	}
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxParticipants
	}
	if maxParticipants < MinParticipants || maxParticipants > MaxParticipantsLimit {
		return nil, Validation("maxParticipants must be between %d and %d", MinParticipants, MaxParticipantsLimit)
	}
	if settings.RequirePassword && settings.PasswordHash == "" {
		return nil, Validation("password required")
	}
	return &Room{
		ID:              id,
		Title:           title,
		HostID:          host.ID,
		CreatedAt:       now,
		MaxParticipants: maxParticipants,
		Settings:        settings,
	}, nil
}

// ApplyJoin adds identity as a participant. An identity that is already active
// gets ErrAlreadyJoined together with its existing record and the room unchanged.
func ApplyJoin(r *Room, who Identity, now time.Time) (*Room, Participant, error) {
	if r.Status() == StatusEnded {
		return r, Participant{}, ErrMeetingEnded
	}
	if i := r.ActiveParticipant(who.ID); i >= 0 {
		return r, r.Participants[i], ErrAlreadyJoined
	}
	if r.ActiveCount() >= r.MaxParticipants {
		return r, Participant{}, ErrRoomFull
	}
	isHost := r.IsHost(who.ID)
	p := Participant{
		IdentityID:     who.ID,
		DisplayName:    who.DisplayName,
		IsHost:         isHost,
		JoinedAt:       now,
		IsVideoEnabled: true,
		IsAudioEnabled: isHost || !r.Settings.MuteOnEntry,
	}
	next := r.Clone()
	next.Participants = append(next.Participants, p)
	return next, p, nil
}

// ApplyLeave soft-deletes id's participant record. When the last active
// participant leaves an active meeting, the meeting ends.
func ApplyLeave(r *Room, id IdentityID, now time.Time) (*Room, error) {
	i := r.ActiveParticipant(id)
	if i < 0 {
		return r, ErrNotParticipant
	}
	next := r.Clone()
	leave(&next.Participants[i], now)
	if next.IsActive && next.ActiveCount() == 0 {
		next.IsActive = false
		next.EndedAt = &now
	}
	return next, nil
}

// ApplyMediaFlag is a self-initiated media change. A host-muted participant
// cannot turn audio back on.
func ApplyMediaFlag(r *Room, id IdentityID, flag MediaFlag, value bool) (*Room, Participant, error) {
	i := r.ActiveParticipant(id)
	if i < 0 {
		return r, Participant{}, ErrNotParticipant
	}
	next := r.Clone()
	p := &next.Participants[i]
	switch flag {
	case FlagVideo:
		p.IsVideoEnabled = value
	case FlagAudio:
		if value && p.HostMuted {
			return r, r.Participants[i], ErrHostMuted
		}
		p.IsAudioEnabled = value
	case FlagScreenShare:
		if value && !r.Settings.AllowScreenShare {
			return r, r.Participants[i], ErrScreenShareDisabled
		}
		p.IsScreenSharing = value
	default:
		return r, Participant{}, Validation("unknown media flag %q", flag)
	}
	return next, *p, nil
}

func checkHostTarget(r *Room, host, target IdentityID) (int, error) {
	if !r.IsHost(host) {
		return -1, ErrNotHost
	}
	if host == target {
		return -1, ErrSelfTarget
	}
	i := r.ActiveParticipant(target)
	if i < 0 {
		return -1, ErrNotParticipant
	}
	return i, nil
}

// ApplyHostMute sets or clears the host mute lock on target.
func ApplyHostMute(r *Room, host, target IdentityID, muted bool) (*Room, Participant, error) {
	i, err := checkHostTarget(r, host, target)
	if err != nil {
		return r, Participant{}, err
	}
	next := r.Clone()
	p := &next.Participants[i]
	p.HostMuted = muted
	p.IsAudioEnabled = !muted
	return next, *p, nil
}

// ApplyRemove marks target as left on behalf of the host.
func ApplyRemove(r *Room, host, target IdentityID, now time.Time) (*Room, Participant, error) {
	i, err := checkHostTarget(r, host, target)
	if err != nil {
		return r, Participant{}, err
	}
	next := r.Clone()
	p := &next.Participants[i]
	leave(p, now)
	return next, *p, nil
}

func ApplyStart(r *Room, by IdentityID, now time.Time) (*Room, error) {
	if !r.IsHost(by) {
		return r, ErrNotHost
	}
	switch r.Status() {
	case StatusEnded:
		return r, ErrMeetingEnded
	case StatusActive:
		return r, ErrMeetingActive
	}
	next := r.Clone()
	next.IsActive = true
	next.StartedAt = &now
	return next, nil
}

// ApplyEnd ends an active meeting and soft-leaves everyone still in it.
func ApplyEnd(r *Room, by IdentityID, now time.Time) (*Room, error) {
	if !r.IsHost(by) {
		return r, ErrNotHost
	}
	if r.Status() != StatusActive {
		return r, ErrMeetingInactive
	}
	next := r.Clone()
	next.IsActive = false
	next.EndedAt = &now
	for i := range next.Participants {
		if next.Participants[i].Active() {
			leave(&next.Participants[i], now)
		}
	}
	return next, nil
}

func leave(p *Participant, now time.Time) {
	t := now
	p.LeftAt = &t
	p.IsScreenSharing = false
}
