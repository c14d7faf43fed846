package orch

import (
	"context"
	"errors"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// HandleJoinRequest joins the connection's identity to meeting. A join by an
// identity that is already a participant is treated as a reconnect.
func (o *Orchestrator) HandleJoinRequest(ctx context.Context, id core.ConnectionID, meeting domain.RoomID, password string) error {
	snap, ok := o.Registry.Get(id)
	if !ok {
		return nil
	}
	who := snap.Identity
	if !o.Limiter.Allow(who.ID) {
		return errTooManyJoins
	}
	if snap.Room != "" && snap.Room != meeting {
		if err := o.HandleLeaveRequest(ctx, id, snap.Room); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Str("from_room", string(snap.Room)).Msg("leave before join failed")
		}
	}

	room, joined, err := o.Rooms.Join(ctx, meeting, who, password)
	if !app.IsJoinSuccess(err) {
		return err
	}
	// Another live connection of the same identity means peers still hold a
	// connection to the old one; they drop it on user-disconnected and offer again.
	superseded := err != nil && snap.Room != meeting && o.Registry.HasIdentityInRoom(meeting, who.ID)
	if !o.Registry.SetRoom(id, meeting) {
		return nil
	}

	roster := o.rosterEntries(meeting, room.ActiveParticipants(), who.ID)
	o.reply(id, &protocol.MeetingJoined{Room: room.View(), Roster: roster})
	if superseded {
		o.broadcast(meeting, &protocol.UserDisconnected{IdentityID: who.ID}, id)
	}
	o.broadcast(meeting, &protocol.UserJoined{
		IdentityID: who.ID,
		Profile:    protocol.EntryFromParticipant(joined, true),
	}, id)

	log.Info().
		Str("module", "orch").
		Str("conn", string(id)).
		Str("identity", string(who.ID)).
		Str("meeting", string(meeting)).
		Bool("rejoin", err != nil).
		Msg("joined meeting")
	return nil
}

// HandleLeaveRequest is an explicit leave. Every connection the identity has
// in the meeting is taken out of it.
func (o *Orchestrator) HandleLeaveRequest(ctx context.Context, id core.ConnectionID, meeting domain.RoomID) error {
	snap, ok := o.Registry.Get(id)
	if !ok {
		return nil
	}
	who := snap.Identity.ID

	room, err := o.Rooms.Leave(ctx, meeting, who)
	if err != nil && !errors.Is(err, domain.ErrNotParticipant) {
		return err
	}

	cleared := o.Registry.ClearIdentityInRoom(meeting, who)
	if f, ok := encode(&protocol.MeetingLeft{MeetingID: meeting}); ok {
		res := o.Registry.SendToConn(id, f)
		for _, c := range cleared {
			if c != id {
				res.Merge(o.Registry.SendToConn(c, f))
			}
		}
		o.settle(res)
	}
	if err != nil {
		return err
	}

	o.broadcast(meeting, &protocol.UserLeft{IdentityID: who}, "")
	if room.Status() == domain.StatusEnded {
		o.closeRoom(room, "The meeting ended because everyone left")
	}
	return nil
}

// HandleDisconnect runs when a connection's pumps exit. The participant record
// stays active so a reconnect keeps host and media state.
func (o *Orchestrator) HandleDisconnect(id core.ConnectionID) {
	snap, ok := o.Registry.Unregister(id)
	if !ok {
		return
	}
	o.Metrics.ConnectionClosed()
	if snap.Room == "" {
		return
	}
	if o.Registry.HasIdentityInRoom(snap.Room, snap.Identity.ID) {
		return
	}
	o.broadcast(snap.Room, &protocol.UserDisconnected{IdentityID: snap.Identity.ID}, "")
	log.Info().
		Str("module", "orch").
		Str("conn", string(id)).
		Str("identity", string(snap.Identity.ID)).
		Str("meeting", string(snap.Room)).
		Msg("participant disconnected")
}

// StartMeeting activates a scheduled meeting. Host only.
func (o *Orchestrator) StartMeeting(ctx context.Context, by domain.IdentityID, meeting domain.RoomID) (*domain.Room, error) {
	room, err := o.Rooms.Start(ctx, meeting, by)
	if err != nil {
		return nil, err
	}
	o.Metrics.MeetingStarted()
	o.broadcast(meeting, &protocol.MeetingStarted{MeetingID: meeting, StartedAt: *room.StartedAt}, "")
	log.Info().Str("module", "orch").Str("meeting", string(meeting)).Msg("meeting started")
	return room, nil
}

// EndMeeting ends an active meeting and disconnects everyone from it. Host only.
func (o *Orchestrator) EndMeeting(ctx context.Context, by domain.IdentityID, meeting domain.RoomID) (*domain.Room, error) {
	room, err := o.Rooms.End(ctx, meeting, by)
	if err != nil {
		return nil, err
	}
	o.closeRoom(room, "The host has ended the meeting")
	return room, nil
}

// closeRoom tells the room it has ended, then empties its broadcast group.
func (o *Orchestrator) closeRoom(room *domain.Room, message string) {
	o.Metrics.MeetingEnded()
	o.broadcast(room.ID, &protocol.MeetingEnded{Message: message, HostName: room.HostName()}, "")
	evicted := o.Registry.EvictRoom(room.ID)
	log.Info().Str("module", "orch").Str("meeting", string(room.ID)).Int("evicted", len(evicted)).Msg("meeting ended")
}

// Roster lists the meeting's active participants with their live presence.
func (o *Orchestrator) Roster(ctx context.Context, meeting domain.RoomID) ([]protocol.RosterEntry, error) {
	active, err := o.Rooms.Roster(ctx, meeting)
	if err != nil {
		return nil, err
	}
	return o.rosterEntries(meeting, active, ""), nil
}

func (o *Orchestrator) rosterEntries(meeting domain.RoomID, active []domain.Participant, exclude domain.IdentityID) []protocol.RosterEntry {
	online := make(map[domain.IdentityID]bool)
	for _, ident := range o.Registry.IdentitiesInRoom(meeting) {
		online[ident.ID] = true
	}
	out := make([]protocol.RosterEntry, 0, len(active))
	for _, p := range active {
		if p.IdentityID == exclude {
			continue
		}
		out = append(out, protocol.EntryFromParticipant(p, online[p.IdentityID]))
	}
	return out
}
