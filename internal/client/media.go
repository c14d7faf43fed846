package client

import (
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

// SetAudioEnabled mutes or unmutes the microphone on every connection. While
// the host has muted us, turning audio back on is refused locally.
func (m *PeerManager) SetAudioEnabled(enabled bool) error {
	m.mu.Lock()
	if m.meeting == "" {
		m.mu.Unlock()
		return ErrNotInMeeting
	}
	if enabled && m.hostMuted {
		m.mu.Unlock()
		return domain.ErrHostMuted
	}
	m.audioEnabled = enabled
	m.applyAudioLocked()
	meeting := m.meeting
	m.mu.Unlock()
	return m.signaler.Send(&protocol.ToggleMedia{Flag: domain.FlagAudio, MeetingID: meeting, Enabled: enabled})
}

func (m *PeerManager) applyAudioLocked() {
	var track webrtc.TrackLocal
	if m.audioEnabled {
		track = m.media.Microphone
	}
	for _, p := range m.peers {
		if p.audio != nil {
			_ = p.audio.ReplaceTrack(track)
		}
	}
}

func (m *PeerManager) SetVideoEnabled(enabled bool) error {
	m.mu.Lock()
	if m.meeting == "" {
		m.mu.Unlock()
		return ErrNotInMeeting
	}
	m.videoEnabled = enabled
	m.applyVideoLocked()
	meeting := m.meeting
	m.mu.Unlock()
	return m.signaler.Send(&protocol.ToggleMedia{Flag: domain.FlagVideo, MeetingID: meeting, Enabled: enabled})
}

func (m *PeerManager) applyVideoLocked() {
	track := m.outgoingVideo()
	for _, p := range m.peers {
		if p.video != nil {
			_ = p.video.ReplaceTrack(track)
		}
	}
}

// StartScreenShare swaps the outgoing video on every open connection for the
// screen track. No connection is renegotiated.
func (m *PeerManager) StartScreenShare(screen webrtc.TrackLocal) error {
	m.mu.Lock()
	if m.meeting == "" {
		m.mu.Unlock()
		return ErrNotInMeeting
	}
	m.screen = screen
	m.applyVideoLocked()
	meeting := m.meeting
	m.mu.Unlock()
	return m.signaler.Send(&protocol.ScreenShare{MeetingID: meeting, Active: true})
}

func (m *PeerManager) StopScreenShare() error {
	m.mu.Lock()
	if m.meeting == "" {
		m.mu.Unlock()
		return ErrNotInMeeting
	}
	m.screen = nil
	m.applyVideoLocked()
	meeting := m.meeting
	m.mu.Unlock()
	return m.signaler.Send(&protocol.ScreenShare{MeetingID: meeting, Active: false})
}

// HandleHostMuted applies a host mute or unmute. The server turns audio back
// on with the unmute, so the local track follows.
func (m *PeerManager) HandleHostMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostMuted = muted
	m.audioEnabled = !muted
	m.applyAudioLocked()
}

func (m *PeerManager) HostMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hostMuted
}

func (m *PeerManager) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioEnabled
}
