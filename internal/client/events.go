package client

import (
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/pion/webrtc/v4"
)

type EventKind string

const (
	// EventServer wraps every event received from the server.
	EventServer          EventKind = "server"
	EventPeerConnected   EventKind = "peer-connected"
	EventPeerFailed      EventKind = "peer-failed"
	EventParticipantGone EventKind = "participant-gone"
	EventRemoteTrack     EventKind = "remote-track"
	EventClosed          EventKind = "closed"
)

// Event is what the UI layer consumes.
type Event struct {
	Kind       EventKind
	IdentityID domain.IdentityID
	Message    protocol.Outbound
	Track      *webrtc.TrackRemote
	Err        error
}
