package orch

import (
	"context"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/metrics"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

var errTooManyJoins = domain.NewError(domain.KindConflict, "too many join attempts")

// Orchestrator coordinates the meeting lifecycle for live connections. Room
// state changes go through Rooms; delivery goes through Registry.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomState
	Messages core.MessageStore
	Policy   app.Policy
	Limiter  *app.JoinLimiter
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Connect registers an authenticated connection. cancel stops its pumps.
func (o *Orchestrator) Connect(id core.ConnectionID, identity domain.Identity, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Register(id, identity, conn, cancel)
	o.Metrics.ConnectionOpened()
}

// Dispatch handles one inbound event to completion. Failures are reported to
// the sending connection only.
func (o *Orchestrator) Dispatch(ctx context.Context, id core.ConnectionID, msg protocol.Inbound) {
	snap, ok := o.Registry.Get(id)
	if !ok {
		return
	}
	err := o.handle(ctx, snap, msg)
	o.Metrics.RecordEvent(string(msg.Kind()), err)
	if err != nil {
		ev := log.Warn()
		if domain.KindOf(err) == domain.KindInternal {
			ev = log.Error()
		}
		ev.Err(err).
			Str("module", "orch").
			Str("conn", string(id)).
			Str("identity", string(snap.Identity.ID)).
			Str("event", string(msg.Kind())).
			Msg("event failed")
		o.reply(id, protocol.ErrorFrom(err))
	}
}

func (o *Orchestrator) handle(ctx context.Context, snap app.ConnSnapshot, msg protocol.Inbound) error {
	switch m := msg.(type) {
	case *protocol.JoinMeeting:
		return o.HandleJoinRequest(ctx, snap.ID, m.MeetingID, m.Password)
	case *protocol.LeaveMeeting:
		return o.HandleLeaveRequest(ctx, snap.ID, m.MeetingID)
	case *protocol.Signal:
		return o.Relay(snap, m)
	case *protocol.ToggleMedia:
		return o.ToggleMedia(ctx, snap, m.MeetingID, m.Flag, m.Enabled)
	case *protocol.ScreenShare:
		return o.ToggleMedia(ctx, snap, m.MeetingID, domain.FlagScreenShare, m.Active)
	case *protocol.VoiceActivity:
		return o.VoiceActivity(snap, m)
	case *protocol.StartMeeting:
		_, err := o.StartMeeting(ctx, snap.Identity.ID, m.MeetingID)
		return err
	case *protocol.EndMeeting:
		_, err := o.EndMeeting(ctx, snap.Identity.ID, m.MeetingID)
		return err
	case *protocol.RemoveParticipant:
		return o.RemoveParticipant(ctx, snap, m.MeetingID, m.TargetIdentityID)
	case *protocol.HostMute:
		return o.HostMute(ctx, snap, m.MeetingID, m.TargetIdentityID, m.Mute)
	case *protocol.SendMessage:
		return o.SendMessage(ctx, snap, m)
	case *protocol.Typing:
		return o.Typing(snap, m)
	case *protocol.Ping:
		o.reply(snap.ID, &protocol.Pong{})
		return nil
	default:
		return domain.Validation("unsupported event %q", msg.Kind())
	}
}

// requireRoom checks that the connection is currently in meeting.
func requireRoom(snap app.ConnSnapshot, meeting domain.RoomID) error {
	if snap.Room != meeting {
		return domain.ErrNotInMeeting
	}
	return nil
}

func encode(msg protocol.Outbound) (core.Frame, bool) {
	data, err := protocol.EncodeOutbound(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", string(msg.Kind())).Msg("encode failed")
		return nil, false
	}
	return data, true
}

func (o *Orchestrator) reply(id core.ConnectionID, msg protocol.Outbound) {
	if f, ok := encode(msg); ok {
		o.settle(o.Registry.SendToConn(id, f))
	}
}

func (o *Orchestrator) broadcast(room domain.RoomID, msg protocol.Outbound, exclude core.ConnectionID) {
	if f, ok := encode(msg); ok {
		o.settle(o.Registry.Broadcast(room, f, exclude))
	}
}

func (o *Orchestrator) sendTo(room domain.RoomID, identity domain.IdentityID, msg protocol.Outbound) core.PublishResult {
	f, ok := encode(msg)
	if !ok {
		return core.PublishResult{}
	}
	res := o.Registry.SendToInRoom(room, identity, f)
	o.settle(res)
	return res
}

// settle applies the backpressure policy to connections whose queue was full.
func (o *Orchestrator) settle(res core.PublishResult) {
	o.Metrics.RecordDropped(len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, id := range res.Dropped {
		snap, ok := o.Registry.Get(id)
		if !ok {
			continue
		}
		switch o.Policy.OnBackPressure(snap) {
		case app.KickConnection:
			log.Warn().Str("module", "orch").Str("conn", string(id)).Msg("kicking slow connection")
			o.Registry.Cancel(id)
		case app.DropFrame, app.NoAction:
		}
	}
}
