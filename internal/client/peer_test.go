package client

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

func newTrack(t *testing.T, id string, mime string) webrtc.TrackLocal {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, "local")
	if err != nil {
		t.Fatalf("NewTrackLocalStaticSample() error = %v", err)
	}
	return track
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	pm      *PeerManager
	factory *fakeFactory
	sig     *fakeSignaler
	rec     *recorder
	camera  webrtc.TrackLocal
	mic     webrtc.TrackLocal
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		factory: newFakeFactory(),
		sig:     &fakeSignaler{},
		rec:     &recorder{},
		camera:  newTrack(t, "camera", webrtc.MimeTypeVP8),
		mic:     newTrack(t, "mic", webrtc.MimeTypeOpus),
	}
	f.pm = NewPeerManager("alice", f.factory, f.sig, LocalMedia{Camera: f.camera, Microphone: f.mic}, f.rec.notify)
	f.pm.SetMeeting("m1")
	return f
}

func sdpPayload(t *testing.T, typ webrtc.SDPType, sdp string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(webrtc.SessionDescription{Type: typ, SDP: sdp})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func candidatePayload(c string) json.RawMessage {
	data, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: c})
	return data
}

func onlySignal(t *testing.T, sent []protocol.Inbound) *protocol.Signal {
	t.Helper()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	sig, ok := sent[0].(*protocol.Signal)
	if !ok {
		t.Fatalf("sent %T, want *protocol.Signal", sent[0])
	}
	return sig
}

func TestUserJoinedSendsOffer(t *testing.T) {
	f := newFixture(t)
	if err := f.pm.HandleUserJoined("bob"); err != nil {
		t.Fatalf("HandleUserJoined() error = %v", err)
	}
	sig := onlySignal(t, f.sig.drain())
	if sig.Type != protocol.KindOffer || sig.TargetIdentityID != "bob" || sig.MeetingID != "m1" {
		t.Fatalf("signal = %+v", sig)
	}
	if !strings.Contains(string(sig.Payload), "offer-to-bob") {
		t.Fatalf("payload = %s", sig.Payload)
	}
	pc := f.factory.latest("bob")
	if len(pc.senders) != 2 {
		t.Fatalf("attached %d tracks, want camera and microphone", len(pc.senders))
	}
	if got := f.pm.State("bob"); got != StateOfferSent {
		t.Fatalf("state = %s", got)
	}

	if err := f.pm.HandleUserJoined("bob"); err != nil {
		t.Fatalf("duplicate HandleUserJoined() error = %v", err)
	}
	if n := f.factory.count("bob"); n != 1 {
		t.Fatalf("duplicate user-joined created %d connections", n)
	}
	if sent := f.sig.drain(); len(sent) != 0 {
		t.Fatalf("duplicate user-joined sent %v", sent)
	}

	if err := f.pm.HandleUserJoined("alice"); err != nil || f.factory.count("alice") != 0 {
		t.Fatalf("self user-joined created a connection")
	}
}

func TestUserJoinedOutsideMeeting(t *testing.T) {
	f := newFixture(t)
	f.pm.SetMeeting("")
	if err := f.pm.HandleUserJoined("bob"); !errors.Is(err, ErrNotInMeeting) {
		t.Fatalf("HandleUserJoined() error = %v", err)
	}
}

func TestOfferIsAnswered(t *testing.T) {
	f := newFixture(t)
	if err := f.pm.HandleOffer("carol", sdpPayload(t, webrtc.SDPTypeOffer, "carol-offer")); err != nil {
		t.Fatalf("HandleOffer() error = %v", err)
	}
	pc := f.factory.latest("carol")
	if pc.remoteSDP() != "carol-offer" {
		t.Fatalf("remote description = %q", pc.remoteSDP())
	}
	sig := onlySignal(t, f.sig.drain())
	if sig.Type != protocol.KindAnswer || sig.TargetIdentityID != "carol" {
		t.Fatalf("signal = %+v", sig)
	}
	if got := f.pm.State("carol"); got != StateOfferReceived {
		t.Fatalf("state = %s", got)
	}

	pc.onState(webrtc.PeerConnectionStateConnected)
	if got := f.pm.State("carol"); got != StateConnected {
		t.Fatalf("state after connect = %s", got)
	}
	pc.onState(webrtc.PeerConnectionStateFailed)
	kinds := f.rec.kinds()
	if len(kinds) != 2 || kinds[0] != EventPeerConnected || kinds[1] != EventPeerFailed {
		t.Fatalf("events = %v", kinds)
	}
	if f.pm.State("carol") == StateClosed || len(f.pm.Peers()) != 1 {
		t.Fatalf("failed connection was torn down")
	}
}

func TestAnswerRequiresPendingOffer(t *testing.T) {
	f := newFixture(t)
	answer := sdpPayload(t, webrtc.SDPTypeAnswer, "bob-answer")
	if err := f.pm.HandleAnswer("bob", answer); !errors.Is(err, ErrUnexpectedAnswer) {
		t.Fatalf("HandleAnswer(no peer) error = %v", err)
	}

	f.pm.HandleOffer("carol", sdpPayload(t, webrtc.SDPTypeOffer, "carol-offer"))
	if err := f.pm.HandleAnswer("carol", answer); !errors.Is(err, ErrUnexpectedAnswer) {
		t.Fatalf("HandleAnswer(offer received) error = %v", err)
	}

	f.pm.HandleUserJoined("bob")
	if err := f.pm.HandleAnswer("bob", answer); err != nil {
		t.Fatalf("HandleAnswer() error = %v", err)
	}
	if got := f.factory.latest("bob").remoteSDP(); got != "bob-answer" {
		t.Fatalf("remote description = %q", got)
	}
}

func TestCandidatesAreQueuedUntilRemoteDescription(t *testing.T) {
	f := newFixture(t)
	if err := f.pm.HandleICECandidate("ghost", candidatePayload("c0")); err != nil {
		t.Fatalf("candidate for unknown peer error = %v", err)
	}
	if f.factory.count("ghost") != 0 {
		t.Fatalf("candidate created a connection")
	}

	f.pm.HandleUserJoined("bob")
	pc := f.factory.latest("bob")
	f.pm.HandleICECandidate("bob", candidatePayload("c1"))
	f.pm.HandleICECandidate("bob", candidatePayload("c2"))
	if pc.candidateCount() != 0 {
		t.Fatalf("candidates applied before the answer")
	}
	f.pm.HandleAnswer("bob", sdpPayload(t, webrtc.SDPTypeAnswer, "a"))
	if pc.candidateCount() != 2 {
		t.Fatalf("queued candidates applied = %d", pc.candidateCount())
	}
	f.pm.HandleICECandidate("bob", candidatePayload("c3"))
	if pc.candidateCount() != 3 {
		t.Fatalf("late candidate not applied")
	}
}

func TestLocalCandidatesAreRelayed(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	f.sig.drain()
	f.factory.latest("bob").onICE(webrtc.ICECandidateInit{Candidate: "candidate:1"})
	sig := onlySignal(t, f.sig.drain())
	if sig.Type != protocol.KindICECandidate || sig.TargetIdentityID != "bob" {
		t.Fatalf("signal = %+v", sig)
	}
}

func TestOfferReplacesStalePeer(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	stale := f.factory.latest("bob")
	if err := f.pm.HandleOffer("bob", sdpPayload(t, webrtc.SDPTypeOffer, "fresh")); err != nil {
		t.Fatalf("HandleOffer() error = %v", err)
	}
	if !stale.isClosed() {
		t.Fatalf("stale connection left open")
	}
	if f.factory.count("bob") != 2 || f.pm.State("bob") != StateOfferReceived {
		t.Fatalf("state = %s, connections = %d", f.pm.State("bob"), f.factory.count("bob"))
	}
	stale.onState(webrtc.PeerConnectionStateConnected)
	if f.pm.State("bob") != StateOfferReceived {
		t.Fatalf("stale connection callback changed the new peer")
	}
}

func TestParticipantGoneClosesPeer(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	pc := f.factory.latest("bob")
	f.pm.HandleParticipantGone("bob")
	f.pm.HandleParticipantGone("nobody")
	if !pc.isClosed() || f.pm.State("bob") != StateNoConnection {
		t.Fatalf("peer not closed")
	}
	kinds := f.rec.kinds()
	if len(kinds) != 1 || kinds[0] != EventParticipantGone {
		t.Fatalf("events = %v", kinds)
	}
}

func TestHostMuteLocksMicrophone(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	f.sig.drain()
	audio := f.factory.latest("bob").senders[1]

	f.pm.HandleHostMuted(true)
	if audio.track() != nil || f.pm.AudioEnabled() || !f.pm.HostMuted() {
		t.Fatalf("microphone still sending after host mute")
	}
	if err := f.pm.SetAudioEnabled(true); !errors.Is(err, domain.ErrHostMuted) {
		t.Fatalf("SetAudioEnabled(true) error = %v", err)
	}
	if sent := f.sig.drain(); len(sent) != 0 {
		t.Fatalf("refused unmute was signaled: %v", sent)
	}
	if err := f.pm.SetAudioEnabled(false); err != nil {
		t.Fatalf("SetAudioEnabled(false) error = %v", err)
	}
	f.sig.drain()

	f.pm.HandleHostMuted(false)
	if audio.track() != f.mic {
		t.Fatalf("microphone not restored after host unmute")
	}
	if err := f.pm.SetAudioEnabled(true); err != nil {
		t.Fatalf("SetAudioEnabled(true) after unmute error = %v", err)
	}
	if tm, ok := f.sig.drain()[0].(*protocol.ToggleMedia); !ok || tm.Flag != domain.FlagAudio || !tm.Enabled {
		t.Fatalf("toggle not signaled")
	}
}

func TestScreenShareReplacesVideoOnEveryPeer(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	f.pm.HandleOffer("carol", sdpPayload(t, webrtc.SDPTypeOffer, "o"))
	f.sig.drain()
	screen := newTrack(t, "screen", webrtc.MimeTypeVP8)

	if err := f.pm.StartScreenShare(screen); err != nil {
		t.Fatalf("StartScreenShare() error = %v", err)
	}
	for _, id := range []domain.IdentityID{"bob", "carol"} {
		if got := f.factory.latest(id).senders[0].track(); got != screen {
			t.Fatalf("%s video = %v, want screen", id, got)
		}
	}
	if ss, ok := f.sig.drain()[0].(*protocol.ScreenShare); !ok || !ss.Active {
		t.Fatalf("start not signaled")
	}
	if f.factory.count("bob") != 1 || f.factory.count("carol") != 1 {
		t.Fatalf("screen share created new connections")
	}

	f.pm.StopScreenShare()
	for _, id := range []domain.IdentityID{"bob", "carol"} {
		if got := f.factory.latest(id).senders[0].track(); got != f.camera {
			t.Fatalf("%s video after stop = %v, want camera", id, got)
		}
	}
	if ss, ok := f.sig.drain()[0].(*protocol.ScreenShare); !ok || ss.Active {
		t.Fatalf("stop not signaled")
	}
}

func TestVideoToggle(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	f.sig.drain()
	video := f.factory.latest("bob").senders[0]

	f.pm.SetVideoEnabled(false)
	if video.track() != nil {
		t.Fatalf("camera still sending")
	}
	if tm, ok := f.sig.drain()[0].(*protocol.ToggleMedia); !ok || tm.Flag != domain.FlagVideo || tm.Enabled {
		t.Fatalf("toggle not signaled")
	}
	f.pm.SetVideoEnabled(true)
	if video.track() != f.camera {
		t.Fatalf("camera not restored")
	}
}

func TestCloseAll(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	f.pm.CloseAll()
	if !f.factory.latest("bob").isClosed() || len(f.pm.Peers()) != 0 || f.pm.Meeting() != "" {
		t.Fatalf("CloseAll() left state behind")
	}
	if err := f.pm.SetVideoEnabled(false); !errors.Is(err, ErrNotInMeeting) {
		t.Fatalf("SetVideoEnabled() after CloseAll error = %v", err)
	}
}

func TestScreenShareReachesPeerJoinedWithCameraOff(t *testing.T) {
	f := newFixture(t)
	if err := f.pm.SetVideoEnabled(false); err != nil {
		t.Fatalf("SetVideoEnabled(false) error = %v", err)
	}
	f.pm.HandleUserJoined("bob")
	pc := f.factory.latest("bob")
	if len(pc.senders) != 2 {
		t.Fatalf("attached %d tracks, want video and audio senders", len(pc.senders))
	}
	video := pc.senders[0]
	if video.track() != nil {
		t.Fatalf("camera sending while disabled")
	}

	screen := newTrack(t, "screen", webrtc.MimeTypeVP8)
	if err := f.pm.StartScreenShare(screen); err != nil {
		t.Fatalf("StartScreenShare() error = %v", err)
	}
	if video.track() != screen {
		t.Fatalf("bob video = %v, want screen", video.track())
	}
	f.pm.StopScreenShare()
	if video.track() != nil {
		t.Fatalf("camera resumed after screen share while disabled")
	}
	f.pm.SetVideoEnabled(true)
	if video.track() != f.camera {
		t.Fatalf("bob video = %v, want camera", video.track())
	}
	if f.factory.count("bob") != 1 {
		t.Fatalf("video switches renegotiated a new connection")
	}
}

func TestReconnectedParticipantGetsFreshOffer(t *testing.T) {
	f := newFixture(t)
	f.pm.HandleUserJoined("bob")
	stale := f.factory.latest("bob")
	f.sig.drain()

	// The server announces the stale connection gone before the new join.
	f.pm.HandleParticipantGone("bob")
	if err := f.pm.HandleUserJoined("bob"); err != nil {
		t.Fatalf("HandleUserJoined() error = %v", err)
	}
	if !stale.isClosed() || f.factory.count("bob") != 2 {
		t.Fatalf("stale connection reused")
	}
	sig := onlySignal(t, f.sig.drain())
	if sig.Type != protocol.KindOffer || sig.TargetIdentityID != "bob" {
		t.Fatalf("signal = %+v", sig)
	}
}
