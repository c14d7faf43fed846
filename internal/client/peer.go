// Package client drives one participant's side of a meeting: the signaling
// session and a peer connection per remote participant.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type PeerState int

const (
	StateNoConnection PeerState = iota
	StateOfferSent
	StateOfferReceived
	StateConnected
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "no-connection"
	}
}

var (
	ErrUnexpectedAnswer = errors.New("answer without a pending offer")
	ErrNotInMeeting     = errors.New("not in a meeting")
)

// Signaler delivers events to the signaling server.
type Signaler interface {
	Send(msg protocol.Inbound) error
}

type PeerFactory interface {
	NewPeerConnection(remote domain.IdentityID) (core.PeerConnection, error)
}

// LocalMedia holds the tracks attached to every new peer connection. Nil
// tracks are skipped.
type LocalMedia struct {
	Camera     webrtc.TrackLocal
	Microphone webrtc.TrackLocal
}

type peer struct {
	pc        core.PeerConnection
	state     PeerState
	video     core.TrackSender
	audio     core.TrackSender
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// PeerManager keeps one peer connection per remote identity and runs the
// offer/answer exchange for each. All correctness of the negotiation lives
// here; the server only forwards payloads.
type PeerManager struct {
	mu       sync.Mutex
	self     domain.IdentityID
	meeting  domain.RoomID
	factory  PeerFactory
	signaler Signaler
	notify   func(Event)
	peers    map[domain.IdentityID]*peer

	media        LocalMedia
	screen       webrtc.TrackLocal
	audioEnabled bool
	videoEnabled bool
	hostMuted    bool
}

func NewPeerManager(self domain.IdentityID, factory PeerFactory, signaler Signaler, media LocalMedia, notify func(Event)) *PeerManager {
	if notify == nil {
		notify = func(Event) {}
	}
	return &PeerManager{
		self:         self,
		factory:      factory,
		signaler:     signaler,
		notify:       notify,
		peers:        make(map[domain.IdentityID]*peer),
		media:        media,
		audioEnabled: true,
		videoEnabled: true,
	}
}

// SetMeeting sets the meeting outgoing signals are addressed in.
func (m *PeerManager) SetMeeting(id domain.RoomID) {
	m.mu.Lock()
	m.meeting = id
	m.mu.Unlock()
}

func (m *PeerManager) Meeting() domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meeting
}

func (m *PeerManager) State(id domain.IdentityID) PeerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[id]; ok {
		return p.state
	}
	return StateNoConnection
}

// Peers returns the identities with an open connection.
func (m *PeerManager) Peers() []domain.IdentityID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IdentityID, 0, len(m.peers))
	for id := range m.peers {
		out = append(out, id)
	}
	return out
}

// newPeer creates a connection to remote with the current local tracks
// attached. Callers hold m.mu.
func (m *PeerManager) newPeer(remote domain.IdentityID) (*peer, error) {
	pc, err := m.factory.NewPeerConnection(remote)
	if err != nil {
		return nil, fmt.Errorf("new peer connection for %s: %w", remote, err)
	}
	p := &peer{pc: pc}

	// The video sender exists even while the camera is off, so a later camera
	// or screen switch reaches this peer through ReplaceTrack.
	if video := m.videoSource(); video != nil {
		if p.video, err = pc.AddTrack(video); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add video track: %w", err)
		}
		if m.outgoingVideo() == nil {
			_ = p.video.ReplaceTrack(nil)
		}
	}
	if m.media.Microphone != nil {
		if p.audio, err = pc.AddTrack(m.media.Microphone); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add audio track: %w", err)
		}
		if !m.audioEnabled {
			_ = p.audio.ReplaceTrack(nil)
		}
	}

	meeting := m.meeting
	pc.OnICECandidate(func(c webrtc.ICECandidateInit) {
		m.sendSignal(meeting, protocol.KindICECandidate, remote, c)
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.onConnectionState(remote, p, s)
	})
	pc.OnTrack(func(t *webrtc.TrackRemote) {
		m.notify(Event{Kind: EventRemoteTrack, IdentityID: remote, Track: t})
	})
	m.peers[remote] = p
	return p, nil
}

// videoSource is the track a new video sender is created with.
func (m *PeerManager) videoSource() webrtc.TrackLocal {
	if m.screen != nil {
		return m.screen
	}
	return m.media.Camera
}

// outgoingVideo is the screen track while sharing, else the camera when enabled.
func (m *PeerManager) outgoingVideo() webrtc.TrackLocal {
	if m.screen != nil {
		return m.screen
	}
	if m.videoEnabled {
		return m.media.Camera
	}
	return nil
}

func (m *PeerManager) onConnectionState(remote domain.IdentityID, p *peer, s webrtc.PeerConnectionState) {
	m.mu.Lock()
	if m.peers[remote] != p {
		m.mu.Unlock()
		return
	}
	switch s {
	case webrtc.PeerConnectionStateConnected:
		p.state = StateConnected
		m.mu.Unlock()
		m.notify(Event{Kind: EventPeerConnected, IdentityID: remote})
		return
	case webrtc.PeerConnectionStateFailed:
		m.mu.Unlock()
		m.notify(Event{Kind: EventPeerFailed, IdentityID: remote, Err: fmt.Errorf("connection to %s failed", remote)})
		return
	}
	m.mu.Unlock()
}

func (m *PeerManager) sendSignal(meeting domain.RoomID, kind protocol.Kind, to domain.IdentityID, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "client").Str("type", string(kind)).Msg("marshal signal")
		return
	}
	err = m.signaler.Send(&protocol.Signal{
		Type:             kind,
		MeetingID:        meeting,
		TargetIdentityID: to,
		Payload:          data,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Str("to", string(to)).Str("type", string(kind)).Msg("send signal")
	}
}

// HandleUserJoined offers a connection to a participant who just arrived.
// A second notice for the same identity is ignored.
func (m *PeerManager) HandleUserJoined(remote domain.IdentityID) error {
	if remote == m.self {
		return nil
	}
	m.mu.Lock()
	if _, ok := m.peers[remote]; ok {
		m.mu.Unlock()
		log.Warn().Str("module", "client").Str("remote", string(remote)).Msg("duplicate user-joined ignored")
		return nil
	}
	if m.meeting == "" {
		m.mu.Unlock()
		return ErrNotInMeeting
	}
	p, err := m.newPeer(remote)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	offer, err := p.pc.CreateOffer()
	if err == nil {
		err = p.pc.SetLocalDescription(offer)
	}
	if err != nil {
		m.dropLocked(remote)
		m.mu.Unlock()
		return fmt.Errorf("offer to %s: %w", remote, err)
	}
	p.state = StateOfferSent
	meeting := m.meeting
	m.mu.Unlock()

	m.sendSignal(meeting, protocol.KindOffer, remote, offer)
	return nil
}

// HandleOffer answers an offer. An offer from an identity that already has a
// connection replaces it; the remote side has reconnected.
func (m *PeerManager) HandleOffer(from domain.IdentityID, payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("decode offer from %s: %w", from, err)
	}
	m.mu.Lock()
	if m.meeting == "" {
		m.mu.Unlock()
		return ErrNotInMeeting
	}
	if _, ok := m.peers[from]; ok {
		log.Info().Str("module", "client").Str("remote", string(from)).Msg("replacing stale peer connection")
		m.dropLocked(from)
	}
	p, err := m.newPeer(from)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	p.state = StateOfferReceived
	answer, err := m.acceptOfferLocked(p, offer)
	if err != nil {
		m.dropLocked(from)
		m.mu.Unlock()
		return fmt.Errorf("answer %s: %w", from, err)
	}
	meeting := m.meeting
	m.mu.Unlock()

	m.sendSignal(meeting, protocol.KindAnswer, from, answer)
	return nil
}

func (m *PeerManager) acceptOfferLocked(p *peer, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	p.remoteSet = true
	m.flushCandidatesLocked(p)
	answer, err := p.pc.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// HandleAnswer completes an exchange this side started.
func (m *PeerManager) HandleAnswer(from domain.IdentityID, payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("decode answer from %s: %w", from, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[from]
	if !ok || p.state != StateOfferSent {
		return ErrUnexpectedAnswer
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("apply answer from %s: %w", from, err)
	}
	p.remoteSet = true
	m.flushCandidatesLocked(p)
	return nil
}

// HandleICECandidate applies a remote candidate. Candidates for unknown peers
// are dropped; candidates that beat the remote description are queued.
func (m *PeerManager) HandleICECandidate(from domain.IdentityID, payload json.RawMessage) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("decode candidate from %s: %w", from, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[from]
	if !ok {
		log.Debug().Str("module", "client").Str("remote", string(from)).Msg("candidate for unknown peer dropped")
		return nil
	}
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		return nil
	}
	return p.pc.AddICECandidate(c)
}

func (m *PeerManager) flushCandidatesLocked(p *peer) {
	for _, c := range p.pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("queued candidate rejected")
		}
	}
	p.pending = nil
}

// HandleParticipantGone closes the connection to an identity that left, was
// removed or disconnected.
func (m *PeerManager) HandleParticipantGone(id domain.IdentityID) {
	m.mu.Lock()
	_, ok := m.peers[id]
	if ok {
		m.dropLocked(id)
	}
	m.mu.Unlock()
	if ok {
		m.notify(Event{Kind: EventParticipantGone, IdentityID: id})
	}
}

func (m *PeerManager) dropLocked(id domain.IdentityID) {
	p := m.peers[id]
	delete(m.peers, id)
	p.state = StateClosed
	if err := p.pc.Close(); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("remote", string(id)).Msg("close peer")
	}
}

// CloseAll tears down every connection and forgets the meeting.
func (m *PeerManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.peers {
		m.dropLocked(id)
	}
	m.meeting = ""
	m.screen = nil
	m.hostMuted = false
}
