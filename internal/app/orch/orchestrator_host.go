package orch

import (
	"context"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// HostMute sets or clears the host mute lock on target. The target is told
// directly and the whole room sees the audio change.
func (o *Orchestrator) HostMute(ctx context.Context, snap app.ConnSnapshot, meeting domain.RoomID, target domain.IdentityID, mute bool) error {
	if err := requireRoom(snap, meeting); err != nil {
		return err
	}
	room, p, err := o.Rooms.SetHostMute(ctx, meeting, snap.Identity.ID, target, mute)
	if err != nil {
		return err
	}
	msg := "You have been muted by the host"
	if !mute {
		msg = "The host has unmuted you"
	}
	o.sendTo(meeting, target, &protocol.HostMutedYou{Message: msg, HostName: room.HostName(), Muted: mute})
	o.broadcast(meeting, &protocol.AudioToggled{IdentityID: target, Enabled: p.IsAudioEnabled, MutedByHost: mute}, "")
	log.Info().Str("module", "orch").Str("meeting", string(meeting)).Str("target", string(target)).Bool("muted", mute).Msg("host mute")
	return nil
}

// RemoveParticipant marks target as left, sends them out of the meeting and
// tells everyone else.
func (o *Orchestrator) RemoveParticipant(ctx context.Context, snap app.ConnSnapshot, meeting domain.RoomID, target domain.IdentityID) error {
	if err := requireRoom(snap, meeting); err != nil {
		return err
	}
	room, _, err := o.Rooms.Remove(ctx, meeting, snap.Identity.ID, target)
	if err != nil {
		return err
	}
	o.sendTo(meeting, target, &protocol.RemovedFromMeeting{
		Message:  "You have been removed from the meeting",
		HostName: room.HostName(),
	})
	o.Registry.ClearIdentityInRoom(meeting, target)
	o.broadcast(meeting, &protocol.ParticipantRemoved{TargetIdentityID: target, RemovedBy: snap.Identity.ID}, "")
	log.Info().Str("module", "orch").Str("meeting", string(meeting)).Str("target", string(target)).Msg("participant removed")
	return nil
}
