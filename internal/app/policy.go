package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickConnection
	DropFrame
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(conn ConnSnapshot) BackpressureAction
}

// SimplePolicy kicks slow connections; the client reconnects and rejoins.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(ConnSnapshot) BackpressureAction {
	return KickConnection
}
