package runtime

import (
	"sync"

	"github.com/ethan/acip-discovery/pkg/relay"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// Registry is the connection-side half of routing: it maps a session's
// live participants to the Connection actually carrying their traffic.
// pkg/session owns session/participant *state*; Registry owns which
// open socket, if any, a given participant is reachable through right
// now (spec.md §4.9, §5's "weak reference" model — entries here are
// looked up by id on every send, never cached by a handler).
type Registry struct {
	mu    sync.RWMutex
	byKey map[participantKey]*Connection
}

type participantKey struct {
	sessionID     wire.ID
	participantID wire.ID
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[participantKey]*Connection)}
}

// Associate records that participantID of sessionID is reachable
// through conn, replacing any prior connection for the same key (a
// RECONNECT superseding a stale entry).
func (r *Registry) Associate(sessionID, participantID wire.ID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[participantKey{sessionID, participantID}] = conn
}

// Remove drops a participant's entry, but only if it still points at
// conn — a late Remove from an already-superseded connection must not
// clobber a newer RECONNECT's association.
func (r *Registry) Remove(sessionID, participantID wire.ID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := participantKey{sessionID, participantID}
	if cur, ok := r.byKey[key]; ok && cur == conn {
		delete(r.byKey, key)
	}
}

// Get returns the live connection for one participant, if any.
func (r *Registry) Get(sessionID, participantID wire.ID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[participantKey{sessionID, participantID}]
	return c, ok
}

// Broadcast best-effort fans a frame out to every connected participant
// of sessionID except exclude (spec.md §4.6, §5).
func (r *Registry) Broadcast(sessionID, exclude wire.ID, packetType uint16, payload []byte) {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.byKey))
	for key, conn := range r.byKey {
		if key.sessionID != sessionID || key.participantID == exclude {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		conn.Enqueue(packetType, payload)
	}
}

// ConnectionsForSession returns every connection currently associated
// with sessionID, used when a SESSION_END tears down every open socket
// for that session.
func (r *Registry) ConnectionsForSession(sessionID wire.ID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []*Connection
	for key, conn := range r.byKey {
		if key.sessionID == sessionID {
			conns = append(conns, conn)
		}
	}
	return conns
}

// SendToParticipant unicasts a frame to exactly one participant,
// returning relay.ErrRecipientNotConnected when they have no live
// connection (pkg/relay owns that sentinel; Registry only reports
// presence).
func (r *Registry) SendToParticipant(sessionID, participantID wire.ID, packetType uint16, payload []byte) error {
	conn, ok := r.Get(sessionID, participantID)
	if !ok {
		return relay.ErrRecipientNotConnected
	}
	return conn.Send(packetType, payload)
}
