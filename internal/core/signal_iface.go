// Package core holds the ports between the meeting logic and its adapters.
package core

// Frame is an encoded signaling event.
type Frame []byte

// ConnectionID identifies one live transport session.
type ConnectionID string

// SignalConnection is one client transport. TrySend never blocks; it fails
// when the outbound queue is full. The adapter owns it and must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult counts delivered frames and lists connections that were full.
type PublishResult struct {
	SendTo  int
	Dropped []ConnectionID
}

func (r *PublishResult) Merge(o PublishResult) {
	r.SendTo += o.SendTo
	r.Dropped = append(r.Dropped, o.Dropped...)
}
