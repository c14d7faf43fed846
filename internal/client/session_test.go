package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	router "github.com/dkeye/huddle/internal/adapters/http"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/auth"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/metrics"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/dkeye/huddle/internal/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type server struct {
	url      string
	orch     *orch.Orchestrator
	verifier *auth.Verifier
}

func startServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		Mode:       "test",
		Secret:     "0123456789abcdef0123456789abcdef",
		ReadLimit:  32 << 10,
		PingPeriod: time.Second,
		SendBuffer: 32,
		Auth:       config.AuthConfig{JWTSecret: "jwt-secret", TokenTTL: time.Hour},
	}
	store := memory.New()
	reg := prometheus.NewRegistry()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomState(store, app.WithHashCost(bcrypt.MinCost)),
		Messages: store,
		Policy:   app.SimplePolicy{},
		Metrics:  metrics.New(reg),
	}
	v := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Verifier: v, Gatherer: reg}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &server{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal", orch: o, verifier: v}
}

func (s *server) dial(t *testing.T, who domain.Identity, factory PeerFactory, media LocalMedia) *Session {
	t.Helper()
	tok, err := s.verifier.Issue(who)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := Dial(ctx, Options{URL: s.url, Token: tok, Factory: factory, Media: media})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// waitFor reads events until match returns true.
func waitFor(t *testing.T, s *Session, what string, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("%s: events closed while waiting for %s", s.Self(), what)
			}
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatalf("%s: timed out waiting for %s", s.Self(), what)
		}
	}
}

func serverKind(k protocol.Kind) func(Event) bool {
	return func(ev Event) bool {
		return ev.Kind == EventServer && ev.Message.Kind() == k
	}
}

func TestSessionNegotiatesThroughServer(t *testing.T) {
	srv := startServer(t)
	alice := domain.Identity{ID: "alice", DisplayName: "Alice"}
	bob := domain.Identity{ID: "bob", DisplayName: "Bob"}
	room, err := srv.orch.Rooms.Create(context.Background(), alice, app.CreateRoomRequest{
		Title:           "standup",
		MaxParticipants: 4,
		Settings:        domain.DefaultSettings(),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	aliceFactory, bobFactory := newFakeFactory(), newFakeFactory()
	mic := newTrack(t, "mic", "audio/opus")
	as := srv.dial(t, alice, aliceFactory, LocalMedia{Microphone: mic})
	bs := srv.dial(t, bob, bobFactory, LocalMedia{Microphone: mic})

	if err := as.Join(room.ID, ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	waitFor(t, as, "meeting-joined", serverKind(protocol.KindMeetingJoined))
	if err := bs.Join(room.ID, ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	joined := waitFor(t, bs, "meeting-joined", serverKind(protocol.KindMeetingJoined))
	if roster := joined.Message.(*protocol.MeetingJoined).Roster; len(roster) != 1 || roster[0].IdentityID != "alice" {
		t.Fatalf("bob's roster = %+v", roster)
	}

	// alice offers on user-joined, bob answers the relayed offer.
	waitFor(t, bs, "offer", serverKind(protocol.KindOffer))
	ans := waitFor(t, as, "answer", serverKind(protocol.KindAnswer))
	if ans.Err != nil {
		t.Fatalf("answer handling error = %v", ans.Err)
	}
	if got := bobFactory.latest("alice").remoteSDP(); got != "offer-to-bob" {
		t.Fatalf("bob's remote description = %q", got)
	}
	if got := aliceFactory.latest("bob").remoteSDP(); got != "answer-to-alice" {
		t.Fatalf("alice's remote description = %q", got)
	}

	if err := as.MuteParticipant("bob", true); err != nil {
		t.Fatalf("MuteParticipant() error = %v", err)
	}
	waitFor(t, bs, "host-muted-you", serverKind(protocol.KindHostMutedYou))
	if err := bs.SetAudioEnabled(true); !errors.Is(err, domain.ErrHostMuted) {
		t.Fatalf("SetAudioEnabled(true) while host-muted error = %v", err)
	}

	if err := bs.SendMessage("hello", ""); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	msg := waitFor(t, as, "new-message", serverKind(protocol.KindNewMessage))
	if nm := msg.Message.(*protocol.NewMessage); nm.Content != "hello" || nm.SenderID != "bob" {
		t.Fatalf("message = %+v", nm)
	}

	if err := bs.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	waitFor(t, as, "participant-gone", func(ev Event) bool {
		return ev.Kind == EventParticipantGone && ev.IdentityID == "bob"
	})
	if st := as.Peers().State("bob"); st != StateNoConnection {
		t.Fatalf("state after disconnect = %s", st)
	}
}

func TestSessionEndsWithMeeting(t *testing.T) {
	srv := startServer(t)
	alice := domain.Identity{ID: "alice", DisplayName: "Alice"}
	room, err := srv.orch.Rooms.Create(context.Background(), alice, app.CreateRoomRequest{Title: "t", MaxParticipants: 2, Settings: domain.DefaultSettings()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	as := srv.dial(t, alice, newFakeFactory(), LocalMedia{})
	if err := as.Leave(); !errors.Is(err, ErrNotInMeeting) {
		t.Fatalf("Leave() before join error = %v", err)
	}
	as.Join(room.ID, "")
	waitFor(t, as, "meeting-joined", serverKind(protocol.KindMeetingJoined))
	if err := as.StartMeeting(room.ID); err != nil {
		t.Fatalf("StartMeeting() error = %v", err)
	}
	waitFor(t, as, "meeting-started", serverKind(protocol.KindMeetingStarted))
	if err := as.EndMeeting(); err != nil {
		t.Fatalf("EndMeeting() error = %v", err)
	}
	waitFor(t, as, "meeting-ended", serverKind(protocol.KindMeetingEnded))
	if as.Peers().Meeting() != "" {
		t.Fatalf("meeting still set after end")
	}
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := startServer(t)
	_, err := Dial(context.Background(), Options{URL: srv.url, Token: "nope", Factory: newFakeFactory()})
	if err == nil {
		t.Fatalf("Dial() with garbage token succeeded")
	}
	other := auth.NewVerifier("other-secret", time.Hour, nil)
	tok, _ := other.Issue(domain.Identity{ID: "mallory"})
	if _, err := Dial(context.Background(), Options{URL: srv.url, Token: tok, Factory: newFakeFactory()}); err == nil {
		t.Fatalf("Dial() with foreign token succeeded")
	}
}

func TestRejoinRestoresHostMute(t *testing.T) {
	srv := startServer(t)
	alice := domain.Identity{ID: "alice", DisplayName: "Alice"}
	bob := domain.Identity{ID: "bob", DisplayName: "Bob"}
	room, err := srv.orch.Rooms.Create(context.Background(), alice, app.CreateRoomRequest{Title: "t", MaxParticipants: 4, Settings: domain.DefaultSettings()})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	as := srv.dial(t, alice, newFakeFactory(), LocalMedia{})
	if err := as.Join(room.ID, ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	waitFor(t, as, "meeting-joined", serverKind(protocol.KindMeetingJoined))

	bs := srv.dial(t, bob, newFakeFactory(), LocalMedia{})
	if err := bs.Join(room.ID, ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	waitFor(t, bs, "meeting-joined", serverKind(protocol.KindMeetingJoined))
	if err := as.MuteParticipant("bob", true); err != nil {
		t.Fatalf("MuteParticipant() error = %v", err)
	}
	waitFor(t, bs, "host-muted-you", serverKind(protocol.KindHostMutedYou))
	bs.Close()

	again := srv.dial(t, bob, newFakeFactory(), LocalMedia{})
	if again.Peers().HostMuted() {
		t.Fatalf("fresh session starts host-muted")
	}
	if err := again.Join(room.ID, ""); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	waitFor(t, again, "meeting-joined", serverKind(protocol.KindMeetingJoined))
	if !again.Peers().HostMuted() {
		t.Fatalf("host mute not restored on rejoin")
	}
	if err := again.SetAudioEnabled(true); !errors.Is(err, domain.ErrHostMuted) {
		t.Fatalf("SetAudioEnabled(true) after rejoin error = %v", err)
	}
}
