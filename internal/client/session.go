package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/huddle/internal/auth"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("session closed")

type Options struct {
	// URL is the signaling endpoint, e.g. ws://localhost:8080/api/ws/signal.
	URL         string
	Token       string
	Factory     PeerFactory
	Media       LocalMedia
	EventBuffer int
	SendBuffer  int
}

// Session is one signaling connection plus the peer connections it drives.
type Session struct {
	conn   *websocket.Conn
	self   domain.IdentityID
	peers  *PeerManager
	send   chan []byte

	evMu     sync.RWMutex
	events   chan Event
	evClosed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Dial authenticates with opts.Token and starts the read and write loops.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	self, err := auth.SubjectOf(opts.Token)
	if err != nil {
		return nil, err
	}
	if opts.Factory == nil {
		return nil, errors.New("peer factory required")
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	header := http.Header{"Authorization": {"Bearer " + opts.Token}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", opts.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:   conn,
		self:   self,
		send:   make(chan []byte, opts.SendBuffer),
		events: make(chan Event, opts.EventBuffer),
		ctx:    sctx,
		cancel: cancel,
	}
	s.peers = NewPeerManager(self, opts.Factory, s, opts.Media, s.emit)

	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	log.Info().Str("module", "client").Str("identity", string(self)).Msg("session connected")
	return s, nil
}

func (s *Session) Self() domain.IdentityID { return s.self }
func (s *Session) Peers() *PeerManager     { return s.peers }

// Events is closed once the session ends.
func (s *Session) Events() <-chan Event { return s.events }

// emit may run on pion callback goroutines after the session ended.
func (s *Session) emit(ev Event) {
	s.evMu.RLock()
	defer s.evMu.RUnlock()
	if s.evClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("module", "client").Str("event", string(ev.Kind)).Msg("event dropped, consumer too slow")
	}
}

// Send queues an event for the server.
func (s *Session) Send(msg protocol.Inbound) error {
	data, err := protocol.EncodeInbound(msg)
	if err != nil {
		return err
	}
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case data := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "client").Msg("write failed")
				s.cancel()
				return
			}
		}
	}
}

func (s *Session) readLoop() {
	defer func() {
		s.cancel()
		s.peers.CloseAll()
		s.emit(Event{Kind: EventClosed})
		s.evMu.Lock()
		s.evClosed = true
		close(s.events)
		s.evMu.Unlock()
		s.wg.Done()
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				log.Info().Err(err).Str("module", "client").Msg("read loop ended")
			}
			return
		}
		msg, err := protocol.DecodeOutbound(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad server frame")
			continue
		}
		s.route(msg)
	}
}

// route drives the peer manager from a server event, then hands the event to
// the UI.
func (s *Session) route(msg protocol.Outbound) {
	var err error
	switch m := msg.(type) {
	case *protocol.MeetingJoined:
		s.peers.SetMeeting(m.Room.ID)
		for _, p := range m.Room.Participants {
			if p.IdentityID == s.self && p.HostMuted {
				s.peers.HandleHostMuted(true)
			}
		}
	case *protocol.UserJoined:
		err = s.peers.HandleUserJoined(m.IdentityID)
	case *protocol.RelayedSignal:
		switch m.Kind() {
		case protocol.KindOffer:
			err = s.peers.HandleOffer(m.FromIdentityID, m.Payload)
		case protocol.KindAnswer:
			err = s.peers.HandleAnswer(m.FromIdentityID, m.Payload)
		case protocol.KindICECandidate:
			err = s.peers.HandleICECandidate(m.FromIdentityID, m.Payload)
		}
	case *protocol.UserLeft:
		s.peers.HandleParticipantGone(m.IdentityID)
	case *protocol.UserDisconnected:
		s.peers.HandleParticipantGone(m.IdentityID)
	case *protocol.ParticipantRemoved:
		s.peers.HandleParticipantGone(m.TargetIdentityID)
	case *protocol.HostMutedYou:
		s.peers.HandleHostMuted(m.Muted)
	case *protocol.MeetingLeft, *protocol.MeetingEnded, *protocol.RemovedFromMeeting:
		s.peers.CloseAll()
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "client").Str("event", string(msg.Kind())).Msg("peer handling failed")
	}
	s.emit(Event{Kind: EventServer, Message: msg, Err: err})
}

func (s *Session) meeting() (domain.RoomID, error) {
	id := s.peers.Meeting()
	if id == "" {
		return "", ErrNotInMeeting
	}
	return id, nil
}

func (s *Session) Join(meeting domain.RoomID, password string) error {
	return s.Send(&protocol.JoinMeeting{MeetingID: meeting, Password: password})
}

func (s *Session) Leave() error {
	id, err := s.meeting()
	if err != nil {
		return err
	}
	return s.Send(&protocol.LeaveMeeting{MeetingID: id})
}

func (s *Session) SetAudioEnabled(enabled bool) error { return s.peers.SetAudioEnabled(enabled) }
func (s *Session) SetVideoEnabled(enabled bool) error { return s.peers.SetVideoEnabled(enabled) }

func (s *Session) StartScreenShare(screen webrtc.TrackLocal) error {
	return s.peers.StartScreenShare(screen)
}

func (s *Session) StopScreenShare() error { return s.peers.StopScreenShare() }

func (s *Session) SendMessage(content string, replyTo domain.MessageID) error {
	id, err := s.meeting()
	if err != nil {
		return err
	}
	return s.Send(&protocol.SendMessage{MeetingID: id, Content: content, ReplyTo: replyTo})
}

func (s *Session) SetTyping(active bool) error {
	id, err := s.meeting()
	if err != nil {
		return err
	}
	return s.Send(&protocol.Typing{MeetingID: id, Active: active})
}

func (s *Session) StartMeeting(meeting domain.RoomID) error {
	return s.Send(&protocol.StartMeeting{MeetingID: meeting})
}

func (s *Session) EndMeeting() error {
	id, err := s.meeting()
	if err != nil {
		return err
	}
	return s.Send(&protocol.EndMeeting{MeetingID: id})
}

func (s *Session) MuteParticipant(target domain.IdentityID, mute bool) error {
	id, err := s.meeting()
	if err != nil {
		return err
	}
	return s.Send(&protocol.HostMute{MeetingID: id, TargetIdentityID: target, Mute: mute})
}

func (s *Session) RemoveParticipant(target domain.IdentityID) error {
	id, err := s.meeting()
	if err != nil {
		return err
	}
	return s.Send(&protocol.RemoveParticipant{MeetingID: id, TargetIdentityID: target})
}

// Close ends the session and waits for its loops to exit.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}
