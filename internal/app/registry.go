package app

import (
	"context"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Identity domain.Identity
	Room     domain.RoomID
	Conn     core.SignalConnection
	Cancel   context.CancelFunc
}

// ConnSnapshot is a read-only copy of a registry entry.
type ConnSnapshot struct {
	ID       core.ConnectionID
	Identity domain.Identity
	Room     domain.RoomID
	Conn     core.SignalConnection
}

type idSet map[core.ConnectionID]struct{}

// Registry tracks live connections, their owners and the room each one is in.
// byRoom is the runtime roster; it is updated together with conns under one lock
// so a broadcast never reaches a connection that was already unregistered.
type Registry struct {
	mu         sync.RWMutex
	conns      map[core.ConnectionID]*connEntry
	byIdentity map[domain.IdentityID]idSet
	byRoom     map[domain.RoomID]idSet
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[core.ConnectionID]*connEntry),
		byIdentity: make(map[domain.IdentityID]idSet),
		byRoom:     make(map[domain.RoomID]idSet),
	}
}

func addTo[K comparable](m map[K]idSet, k K, id core.ConnectionID) {
	s, ok := m[k]
	if !ok {
		s = make(idSet)
		m[k] = s
	}
	s[id] = struct{}{}
}

func removeFrom[K comparable](m map[K]idSet, k K, id core.ConnectionID) {
	if s, ok := m[k]; ok {
		delete(s, id)
		if len(s) == 0 {
			delete(m, k)
		}
	}
}

func (r *Registry) snap(id core.ConnectionID, e *connEntry) ConnSnapshot {
	return ConnSnapshot{ID: id, Identity: e.Identity, Room: e.Room, Conn: e.Conn}
}

func (r *Registry) Register(id core.ConnectionID, identity domain.Identity, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[id]; ok {
		removeFrom(r.byIdentity, old.Identity.ID, id)
		if old.Room != "" {
			removeFrom(r.byRoom, old.Room, id)
		}
	}
	r.conns[id] = &connEntry{Identity: identity, Conn: conn, Cancel: cancel}
	addTo(r.byIdentity, identity.ID, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("identity", string(identity.ID)).Msg("registered connection")
}

// Unregister drops the connection and its room bookkeeping. It does not notify
// the room; that is the caller's job.
func (r *Registry) Unregister(id core.ConnectionID) (ConnSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnSnapshot{}, false
	}
	delete(r.conns, id)
	removeFrom(r.byIdentity, e.Identity.ID, id)
	if e.Room != "" {
		removeFrom(r.byRoom, e.Room, id)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unregistered connection")
	return r.snap(id, e), true
}

func (r *Registry) Get(id core.ConnectionID) (ConnSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnSnapshot{}, false
	}
	return r.snap(id, e), true
}

func (r *Registry) RoomOf(id core.ConnectionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// SetRoom moves the connection into room (out of any previous one).
func (r *Registry) SetRoom(id core.ConnectionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	if e.Room != "" {
		removeFrom(r.byRoom, e.Room, id)
	}
	e.Room = room
	if room != "" {
		addTo(r.byRoom, room, id)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(room)).Msg("updated room")
	return true
}

// ClearIdentityInRoom takes every connection of identity out of room.
func (r *Registry) ClearIdentityInRoom(room domain.RoomID, identity domain.IdentityID) []core.ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cleared []core.ConnectionID
	for id := range r.byIdentity[identity] {
		if e := r.conns[id]; e != nil && e.Room == room {
			e.Room = ""
			removeFrom(r.byRoom, room, id)
			cleared = append(cleared, id)
		}
	}
	return cleared
}

// EvictRoom empties the room's broadcast group and returns who was in it.
func (r *Registry) EvictRoom(room domain.RoomID) []ConnSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnSnapshot, 0, len(r.byRoom[room]))
	for id := range r.byRoom[room] {
		e := r.conns[id]
		out = append(out, r.snap(id, e))
		e.Room = ""
	}
	delete(r.byRoom, room)
	log.Info().Str("module", "app.registry").Str("room", string(room)).Int("evicted", len(out)).Msg("evicted room")
	return out
}

func (r *Registry) FindByIdentity(identity domain.IdentityID) []ConnSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnSnapshot, 0, len(r.byIdentity[identity]))
	for id := range r.byIdentity[identity] {
		out = append(out, r.snap(id, r.conns[id]))
	}
	return out
}

func (r *Registry) MembersOfRoom(room domain.RoomID) []ConnSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnSnapshot, 0, len(r.byRoom[room]))
	for id := range r.byRoom[room] {
		out = append(out, r.snap(id, r.conns[id]))
	}
	return out
}

// IdentitiesInRoom returns each identity with at least one live connection in room.
func (r *Registry) IdentitiesInRoom(room domain.RoomID) []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[domain.IdentityID]struct{})
	var out []domain.Identity
	for id := range r.byRoom[room] {
		ident := r.conns[id].Identity
		if _, ok := seen[ident.ID]; ok {
			continue
		}
		seen[ident.ID] = struct{}{}
		out = append(out, ident)
	}
	return out
}

func (r *Registry) HasIdentityInRoom(room domain.RoomID, identity domain.IdentityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.byIdentity[identity] {
		if r.conns[id].Room == room {
			return true
		}
	}
	return false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func trySend(res *core.PublishResult, id core.ConnectionID, conn core.SignalConnection, frame core.Frame) {
	if err := conn.TrySend(frame); err != nil {
		res.Dropped = append(res.Dropped, id)
		return
	}
	res.SendTo++
}

// Broadcast sends frame to every connection in room except exclude.
func (r *Registry) Broadcast(room domain.RoomID, frame core.Frame, exclude core.ConnectionID) core.PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := core.PublishResult{}
	for id := range r.byRoom[room] {
		if id == exclude {
			continue
		}
		trySend(&res, id, r.conns[id].Conn, frame)
	}
	log.Debug().Str("module", "app.registry").Str("room", string(room)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// SendTo delivers frame to all connections of identity. Unknown identities are a no-op.
func (r *Registry) SendTo(identity domain.IdentityID, frame core.Frame) core.PublishResult {
	return r.sendToIdentity(identity, "", frame)
}

// SendToInRoom is SendTo restricted to the identity's connections in room.
func (r *Registry) SendToInRoom(room domain.RoomID, identity domain.IdentityID, frame core.Frame) core.PublishResult {
	return r.sendToIdentity(identity, room, frame)
}

func (r *Registry) sendToIdentity(identity domain.IdentityID, room domain.RoomID, frame core.Frame) core.PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := core.PublishResult{}
	for id := range r.byIdentity[identity] {
		e := r.conns[id]
		if room != "" && e.Room != room {
			continue
		}
		trySend(&res, id, e.Conn, frame)
	}
	return res
}

func (r *Registry) SendToConn(id core.ConnectionID, frame core.Frame) core.PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := core.PublishResult{}
	if e, ok := r.conns[id]; ok {
		trySend(&res, id, e.Conn, frame)
	}
	return res
}

// Cancel stops the connection's pumps; the disconnect hook does the rest.
func (r *Registry) Cancel(id core.ConnectionID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
