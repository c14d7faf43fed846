package app

import (
	"errors"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type recordingConn struct {
	frames []core.Frame
	full   bool
}

func (c *recordingConn) TrySend(f core.Frame) error {
	if c.full {
		return errors.New("full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func ident(id string) domain.Identity {
	return domain.Identity{ID: domain.IdentityID(id), DisplayName: id, IsActive: true}
}

func TestRegistryBroadcastExcludesSenderAndOtherRooms(t *testing.T) {
	r := NewRegistry()
	a, b, c := &recordingConn{}, &recordingConn{}, &recordingConn{}
	r.Register("a", ident("alice"), a, nil)
	r.Register("b", ident("bob"), b, nil)
	r.Register("c", ident("carol"), c, nil)
	r.SetRoom("a", "m1")
	r.SetRoom("b", "m1")
	r.SetRoom("c", "m2")

	res := r.Broadcast("m1", core.Frame("hi"), "a")
	if res.SendTo != 1 || len(a.frames) != 0 || len(b.frames) != 1 || len(c.frames) != 0 {
		t.Fatalf("Broadcast() = %+v, a=%d b=%d c=%d", res, len(a.frames), len(b.frames), len(c.frames))
	}
}

func TestRegistryUnregisterDropsRoomMembership(t *testing.T) {
	r := NewRegistry()
	a := &recordingConn{}
	r.Register("a", ident("alice"), a, nil)
	r.SetRoom("a", "m1")

	snap, ok := r.Unregister("a")
	if !ok || snap.Room != "m1" || snap.Identity.ID != "alice" {
		t.Fatalf("Unregister() = %+v, %v", snap, ok)
	}
	if res := r.Broadcast("m1", core.Frame("x"), ""); res.SendTo != 0 {
		t.Fatalf("broadcast reached an unregistered connection")
	}
	if len(r.MembersOfRoom("m1")) != 0 || len(r.FindByIdentity("alice")) != 0 {
		t.Fatalf("indexes not cleaned up")
	}
	if _, ok := r.Unregister("a"); ok {
		t.Fatalf("second Unregister() reported ok")
	}
}

func TestRegistrySendTo(t *testing.T) {
	r := NewRegistry()
	b1, b2, b3 := &recordingConn{}, &recordingConn{}, &recordingConn{}
	r.Register("b1", ident("bob"), b1, nil)
	r.Register("b2", ident("bob"), b2, nil)
	r.Register("b3", ident("bob"), b3, nil)
	r.SetRoom("b1", "m1")
	r.SetRoom("b2", "m1")
	r.SetRoom("b3", "m2")

	if res := r.SendTo("bob", core.Frame("x")); res.SendTo != 3 {
		t.Fatalf("SendTo() reached %d", res.SendTo)
	}
	if res := r.SendToInRoom("m1", "bob", core.Frame("x")); res.SendTo != 2 {
		t.Fatalf("SendToInRoom() reached %d", res.SendTo)
	}
	if len(b3.frames) != 1 {
		t.Fatalf("connection in another room got %d frames", len(b3.frames))
	}
	if res := r.SendTo("nobody", core.Frame("x")); res.SendTo != 0 || len(res.Dropped) != 0 {
		t.Fatalf("SendTo(unknown) = %+v", res)
	}
}

func TestRegistryReportsDropped(t *testing.T) {
	r := NewRegistry()
	r.Register("a", ident("alice"), &recordingConn{}, nil)
	r.Register("b", ident("bob"), &recordingConn{full: true}, nil)
	r.SetRoom("a", "m1")
	r.SetRoom("b", "m1")

	res := r.Broadcast("m1", core.Frame("x"), "")
	if res.SendTo != 1 || len(res.Dropped) != 1 || res.Dropped[0] != "b" {
		t.Fatalf("Broadcast() = %+v", res)
	}
}

func TestRegistryRoomMembership(t *testing.T) {
	r := NewRegistry()
	r.Register("a1", ident("alice"), &recordingConn{}, nil)
	r.Register("a2", ident("alice"), &recordingConn{}, nil)
	r.Register("b", ident("bob"), &recordingConn{}, nil)
	for _, id := range []core.ConnectionID{"a1", "a2", "b"} {
		r.SetRoom(id, "m1")
	}

	if got := r.IdentitiesInRoom("m1"); len(got) != 2 {
		t.Fatalf("IdentitiesInRoom() = %v", got)
	}
	cleared := r.ClearIdentityInRoom("m1", "alice")
	if len(cleared) != 2 || r.HasIdentityInRoom("m1", "alice") {
		t.Fatalf("ClearIdentityInRoom() = %v", cleared)
	}
	if !r.HasIdentityInRoom("m1", "bob") {
		t.Fatalf("bob lost his room")
	}

	r.SetRoom("b", "m2")
	if len(r.MembersOfRoom("m1")) != 0 || len(r.MembersOfRoom("m2")) != 1 {
		t.Fatalf("SetRoom() did not move the connection")
	}
	evicted := r.EvictRoom("m2")
	if len(evicted) != 1 || evicted[0].ID != "b" {
		t.Fatalf("EvictRoom() = %+v", evicted)
	}
	if _, ok := r.RoomOf("b"); ok {
		t.Fatalf("evicted connection still has a room")
	}
	if r.Count() != 3 {
		t.Fatalf("Count() = %d", r.Count())
	}
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	canceled := false
	r.Register("a", ident("alice"), &recordingConn{}, func() { canceled = true })
	if !r.Cancel("a") || !canceled {
		t.Fatalf("Cancel() did not run the cancel func")
	}
	if r.Cancel("missing") {
		t.Fatalf("Cancel(missing) = true")
	}
}
