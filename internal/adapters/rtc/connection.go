// Package rtc adapts pion peer connections to core.PeerConnection.
package rtc

import (
	"errors"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// ConfigFor builds a configuration with one ICE server entry for all urls.
func ConfigFor(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return cfg
}

// Factory creates one peer connection per remote participant.
type Factory struct {
	Config webrtc.Configuration
	// RecvOnly adds receive-only audio and video transceivers so a peer
	// without local media still negotiates incoming streams.
	RecvOnly bool
}

func (f *Factory) NewPeerConnection(remote domain.IdentityID) (core.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(f.Config)
	if err != nil {
		return nil, err
	}
	c := &WebRTCConnection{pc: pc, remote: remote}
	if f.RecvOnly {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				_ = pc.Close()
				return nil, err
			}
		}
	}
	return c, nil
}

type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	remote domain.IdentityID
}

// AddTrack attaches a local track and drains RTCP for its sender, which pion
// needs for interceptors such as NACK to work.
func (c *WebRTCConnection) AddTrack(track webrtc.TrackLocal) (core.TrackSender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return sender, nil
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(sd)
}

func (c *WebRTCConnection) SetRemoteDescription(sd webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(sd)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// OnICECandidate reports candidates as they are gathered (trickle ICE).
func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			fn(cand.ToJSON())
		}
	})
}

func (c *WebRTCConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("remote", string(c.remote)).Str("peer_connection_state", s.String()).Msg("Peer state")
		fn(s)
	})
}

func (c *WebRTCConnection) OnTrack(fn func(*webrtc.TrackRemote)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("remote", string(c.remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		fn(track)
	})
}

func (c *WebRTCConnection) Close() error {
	if c.pc == nil {
		return errors.New("peer connection not initialized")
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "webrtc").Str("remote", string(c.remote)).Msg("close error")
		return err
	}
	log.Info().Str("module", "webrtc").Str("remote", string(c.remote)).Msg("closed")
	return nil
}
