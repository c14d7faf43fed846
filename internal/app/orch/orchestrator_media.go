package orch

import (
	"context"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay forwards an offer, answer or ICE candidate without looking at it.
// A targeted signal only reaches the target's connections in the sender's
// meeting; an untargeted one reaches everyone else in it.
func (o *Orchestrator) Relay(snap app.ConnSnapshot, sig *protocol.Signal) error {
	if err := requireRoom(snap, sig.MeetingID); err != nil {
		return err
	}
	out := &protocol.RelayedSignal{
		Type:           sig.Type,
		FromIdentityID: snap.Identity.ID,
		Payload:        sig.Payload,
	}
	targeted := sig.TargetIdentityID != ""
	o.Metrics.RecordRelay(string(sig.Type), targeted)
	if !targeted {
		o.broadcast(snap.Room, out, snap.ID)
		return nil
	}
	res := o.sendTo(snap.Room, sig.TargetIdentityID, out)
	if res.SendTo == 0 && len(res.Dropped) == 0 {
		log.Debug().
			Str("module", "orch").
			Str("from", string(snap.Identity.ID)).
			Str("to", string(sig.TargetIdentityID)).
			Str("type", string(sig.Type)).
			Msg("signal target offline")
	}
	return nil
}

// ToggleMedia records a self-initiated media change and tells the rest of the room.
func (o *Orchestrator) ToggleMedia(ctx context.Context, snap app.ConnSnapshot, meeting domain.RoomID, flag domain.MediaFlag, enabled bool) error {
	if err := requireRoom(snap, meeting); err != nil {
		return err
	}
	p, err := o.Rooms.SetMediaFlag(ctx, meeting, snap.Identity.ID, flag, enabled)
	if err != nil {
		return err
	}
	var out protocol.Outbound
	switch flag {
	case domain.FlagVideo:
		out = &protocol.VideoToggled{IdentityID: p.IdentityID, Enabled: p.IsVideoEnabled}
	case domain.FlagAudio:
		out = &protocol.AudioToggled{IdentityID: p.IdentityID, Enabled: p.IsAudioEnabled}
	default:
		out = &protocol.ScreenShareChanged{IdentityID: p.IdentityID, Active: p.IsScreenSharing}
	}
	o.broadcast(meeting, out, snap.ID)
	return nil
}

// VoiceActivity is forwarded without being stored.
func (o *Orchestrator) VoiceActivity(snap app.ConnSnapshot, m *protocol.VoiceActivity) error {
	if err := requireRoom(snap, m.MeetingID); err != nil {
		return err
	}
	o.broadcast(m.MeetingID, &protocol.VoiceActivityChanged{IdentityID: snap.Identity.ID, IsSpeaking: m.IsSpeaking}, snap.ID)
	return nil
}
