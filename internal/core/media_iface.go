package core

import (
	"github.com/pion/webrtc/v4"
)

// TrackSender is the outgoing half of an attached local track.
// ReplaceTrack(nil) stops sending without renegotiation.
type TrackSender interface {
	ReplaceTrack(webrtc.TrackLocal) error
}

// PeerConnection is the client-side view of one WebRTC peer connection.
type PeerConnection interface {
	AddTrack(webrtc.TrackLocal) (TrackSender, error)
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(*webrtc.TrackRemote))
	Close() error
}
