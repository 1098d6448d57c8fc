// Package dispatch implements the constant-time type→handler lookup
// table and the common payload validation helpers every handler shares
// (spec.md §4.3). Dispatch itself never interprets payload bytes; that is
// left entirely to the registered Handler.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/ethan/acip-discovery/pkg/wire"
)

// ErrPolicy is the sentinel a Handler or the dispatch layer wraps to mark
// an error as a policy violation rather than an ordinary protocol error:
// spec.md §7 requires the connection be closed (SecurityViolation,
// unencrypted packet on an encrypted channel, non-host attempting
// SESSION_END), not merely answered with ACIP_ERROR and left open.
var ErrPolicy = errors.New("dispatch: policy violation")

// PolicyViolation wraps cause so errors.Is(err, ErrPolicy) reports true
// without losing cause itself: errors.Is(err, cause) still holds, so a
// caller can distinguish which policy was violated while serve only
// needs to check IsPolicyViolation.
func PolicyViolation(cause error) error {
	return fmt.Errorf("%w: %w", ErrPolicy, cause)
}

// IsPolicyViolation reports whether err (or anything it wraps) marks a
// policy violation that must close the connection.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPolicy)
}

// Context is everything a handler needs beyond the raw payload: the
// connection it arrived on and the shared application state. It is
// defined here as a minimal interface so pkg/dispatch has no dependency
// on pkg/runtime; pkg/runtime implements it.
type Context interface {
	// RemoteAddr identifies the connection's source, used for per-IP
	// rate limiting and logging.
	RemoteAddr() string
	// Send queues an outbound frame on this connection (spec.md §5
	// backpressure: unicast responses are never dropped, slow clients
	// are disconnected instead).
	Send(packetType uint16, payload []byte) error
	// Broadcast queues an outbound frame on every other connection in
	// the named session (best-effort, drop-on-full per spec.md §5).
	Broadcast(sessionID wire.ID, exclude wire.ID, packetType uint16, payload []byte)
	// SendToParticipant queues an outbound frame on exactly one
	// participant's connection, returning ErrRecipientNotConnected (see
	// pkg/relay) if they have no live connection in the session.
	SendToParticipant(sessionID wire.ID, participantID wire.ID, packetType uint16, payload []byte) error
}

// Handler is a total function over its declared type's payload: it must
// return an error rather than panic on any malformed input (spec.md
// §4.3).
type Handler func(payload []byte, ctx Context) error

// Unhandled names a type with no registered handler. Lookup does not
// return this value; it reports such a type as (nil, false). This is not
// itself an error at the dispatch layer — the caller decides whether an
// unknown type is fatal or merely logged.
const Unhandled = -1

// slot is one entry in the open-addressed table.
type slot struct {
	occupied bool
	key      uint16
	handler  Handler
}

// Table is a small open-addressed hash table with linear probing over a
// power-of-two size, matching spec.md §4.3's "~50% max load" target. It
// is built once at startup and never resized, so lookups are lock-free
// after construction.
type Table struct {
	slots []slot
	mask  uint32
}

// NewTable builds a Table sized to keep load under 50% for the given
// expected number of registered types.
func NewTable(expectedTypes int) *Table {
	size := nextPowerOfTwo(expectedTypes * 2)
	if size < 8 {
		size = 8
	}
	return &Table{
		slots: make([]slot, size),
		mask:  uint32(size - 1),
	}
}

// Register installs handler for packetType, panicking on a duplicate
// registration since that can only be a programming error at startup
// (the table is never mutated after the server starts serving
// connections).
func (t *Table) Register(packetType uint16, handler Handler) {
	idx := t.probe(packetType)
	if t.slots[idx].occupied {
		panic("dispatch: duplicate handler registration")
	}
	t.slots[idx] = slot{occupied: true, key: packetType, handler: handler}
}

// Lookup returns the handler for packetType, or (nil, false) if none is
// registered — an Unhandled type at the dispatch layer, not itself an
// error.
func (t *Table) Lookup(packetType uint16) (Handler, bool) {
	idx := t.hash(packetType)
	for i := uint32(0); i <= t.mask; i++ {
		probeIdx := (idx + i) & t.mask
		s := t.slots[probeIdx]
		if !s.occupied {
			return nil, false
		}
		if s.key == packetType {
			return s.handler, true
		}
	}
	return nil, false
}

// probe finds the first open slot for packetType during Register, using
// the same linear-probe sequence Lookup walks.
func (t *Table) probe(packetType uint16) uint32 {
	idx := t.hash(packetType)
	for i := uint32(0); i <= t.mask; i++ {
		probeIdx := (idx + i) & t.mask
		if !t.slots[probeIdx].occupied {
			return probeIdx
		}
	}
	panic("dispatch: table full")
}

// hash is a cheap integer mix; packet types are small dense integers so
// even multiplicative mixing followed by masking spreads them well
// across the table.
func (t *Table) hash(packetType uint16) uint32 {
	x := uint32(packetType) * 2654435761 // Knuth's multiplicative hash constant
	return x & t.mask
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
