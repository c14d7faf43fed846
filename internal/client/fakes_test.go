package client

import (
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

type fakeSender struct {
	mu      sync.Mutex
	current webrtc.TrackLocal
}

func (s *fakeSender) ReplaceTrack(t webrtc.TrackLocal) error {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) track() webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

type fakePC struct {
	mu         sync.Mutex
	remote     domain.IdentityID
	senders    []*fakeSender
	local      *webrtc.SessionDescription
	remoteDesc *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool
	onState    func(webrtc.PeerConnectionState)
	onICE      func(webrtc.ICECandidateInit)
}

func (p *fakePC) AddTrack(t webrtc.TrackLocal) (core.TrackSender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSender{current: t}
	p.senders = append(p.senders, s)
	return s, nil
}

func (p *fakePC) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-to-" + string(p.remote)}, nil
}

func (p *fakePC) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-to-" + string(p.remote)}, nil
}

func (p *fakePC) SetLocalDescription(sd webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = &sd
	p.mu.Unlock()
	return nil
}

func (p *fakePC) SetRemoteDescription(sd webrtc.SessionDescription) error {
	p.mu.Lock()
	p.remoteDesc = &sd
	p.mu.Unlock()
	return nil
}

func (p *fakePC) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	p.candidates = append(p.candidates, c)
	p.mu.Unlock()
	return nil
}

func (p *fakePC) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }

func (p *fakePC) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) { p.onState = fn }

func (p *fakePC) OnTrack(func(*webrtc.TrackRemote)) {}

func (p *fakePC) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePC) remoteSDP() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteDesc == nil {
		return ""
	}
	return p.remoteDesc.SDP
}

func (p *fakePC) candidateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

func (p *fakePC) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeFactory struct {
	mu  sync.Mutex
	pcs map[domain.IdentityID][]*fakePC
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{pcs: make(map[domain.IdentityID][]*fakePC)}
}

func (f *fakeFactory) NewPeerConnection(remote domain.IdentityID) (core.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pc := &fakePC{remote: remote}
	f.pcs[remote] = append(f.pcs[remote], pc)
	return pc, nil
}

// latest returns the most recent connection made for remote, or nil.
func (f *fakeFactory) latest(remote domain.IdentityID) *fakePC {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.pcs[remote]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func (f *fakeFactory) count(remote domain.IdentityID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pcs[remote])
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []protocol.Inbound
}

func (s *fakeSignaler) Send(msg protocol.Inbound) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

func (s *fakeSignaler) drain() []protocol.Inbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}
