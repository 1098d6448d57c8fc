// Package runtime implements the ServerRuntime: the TCP/WebSocket
// listeners, per-connection read/write loops, the session/participant
// connection registry, and the background scheduler that drives TTL
// expiry and ring-round advancement (spec.md §4.9).
package runtime

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ethan/acip-discovery/pkg/logger"
	"github.com/ethan/acip-discovery/pkg/secure"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// ErrConnectionClosed is returned by Send once the connection has shut down.
var ErrConnectionClosed = errors.New("runtime: connection closed")

// ErrQueueFull is returned by Send when the outbound queue could not
// absorb a unicast frame; the connection is closed as a side effect
// (spec.md §5: "a full queue on a unicast Send disconnects the slow
// client rather than dropping its response").
var ErrQueueFull = errors.New("runtime: outbound queue full, connection closed")

type outboundFrame struct {
	packetType uint16
	payload    []byte
}

// Connection is one live peer, TCP or WebSocket, reached through the
// io.ReadWriteCloser interface so both transports share one write path
// (spec.md §6.1). Every connection owns exactly one bounded outbound
// queue drained by a dedicated writer goroutine, matching the teacher's
// bounded-channel pacing idiom but with two distinct overflow policies:
// Send (unicast) never silently drops a frame, Enqueue (broadcast) does.
type Connection struct {
	rw         io.ReadWriteCloser
	remoteAddr string
	clientID   wire.ClientID
	log        *logger.Logger

	out       chan outboundFrame
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	sessionID     wire.ID
	participantID wire.ID
	bound         bool
	secureChan    *secure.Channel
	lastActivity  time.Time

	statsMu sync.Mutex
	dropped uint64
}

// NewConnection wraps rw with a bounded outbound queue of the given depth.
func NewConnection(rw io.ReadWriteCloser, remoteAddr string, clientID wire.ClientID, queueDepth int, log *logger.Logger) *Connection {
	return &Connection{
		rw:           rw,
		remoteAddr:   remoteAddr,
		clientID:     clientID,
		log:          log,
		out:          make(chan outboundFrame, queueDepth),
		done:         make(chan struct{}),
		lastActivity: time.Now(),
	}
}

// Touch records that a frame was just read from this connection,
// resetting its idle clock (spec.md §5 idle-timeout enforcement).
func (c *Connection) Touch(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

// IdleFor reports how long it has been since the last frame was read.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	c.mu.Lock()
	last := c.lastActivity
	c.mu.Unlock()
	return now.Sub(last)
}

// RemoteAddr satisfies dispatch.Context.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// Bind associates this connection with a session and participant once a
// SESSION_CREATE/JOIN/RECONNECT succeeds, so the registry can route
// broadcasts and unicasts to it (spec.md §4.9).
func (c *Connection) Bind(sessionID, participantID wire.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.participantID = participantID
	c.bound = true
}

// Identity returns the connection's (sessionID, participantID, bound).
func (c *Connection) Identity() (wire.ID, wire.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.participantID, c.bound
}

// SecureChannel lazily creates this connection's secure.Channel, used
// once a HANDSHAKE_HELLO is received (spec.md §4.2).
func (c *Connection) SecureChannel() (*secure.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secureChan == nil {
		ch, err := secure.New()
		if err != nil {
			return nil, err
		}
		c.secureChan = ch
	}
	return c.secureChan, nil
}

// secureEstablished reports whether this connection's channel (if any)
// has completed its handshake, the point past which cleartext frames
// other than HANDSHAKE_HELLO are rejected.
func (c *Connection) secureEstablished() (*secure.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secureChan == nil {
		return nil, false
	}
	return c.secureChan, c.secureChan.Established()
}

// Send queues a unicast response frame. A full queue means this
// connection is too slow to keep up; per spec.md §5 the connection is
// disconnected rather than the response silently dropped.
func (c *Connection) Send(packetType uint16, payload []byte) error {
	packetType, payload, err := c.sealIfNeeded(packetType, payload)
	if err != nil {
		return err
	}

	select {
	case c.out <- outboundFrame{packetType, payload}:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	c.log.DebugRuntime("outbound queue full on unicast send, disconnecting",
		"remote", c.remoteAddr, "type", wire.TypeName(packetType))
	c.Close()
	return ErrQueueFull
}

// Enqueue queues a best-effort frame (a broadcast or relay fan-out leg):
// a full queue silently drops this one frame for this one recipient and
// the connection stays alive (spec.md §5).
func (c *Connection) Enqueue(packetType uint16, payload []byte) {
	packetType, payload, err := c.sealIfNeeded(packetType, payload)
	if err != nil {
		c.log.DebugRuntime("failed to seal best-effort frame, dropping",
			"remote", c.remoteAddr, "err", err)
		return
	}

	select {
	case c.out <- outboundFrame{packetType, payload}:
		return
	default:
	}

	c.statsMu.Lock()
	c.dropped++
	dropped := c.dropped
	c.statsMu.Unlock()
	c.log.DebugRuntime("dropped best-effort frame on full queue",
		"remote", c.remoteAddr, "type", wire.TypeName(packetType), "total_dropped", dropped)
}

// sealIfNeeded wraps payload in a wire.SecurityEnvelope when this
// connection's secure channel is established; HANDSHAKE_HELLO itself is
// always exempt (spec.md §4.2).
func (c *Connection) sealIfNeeded(packetType uint16, payload []byte) (uint16, []byte, error) {
	if packetType == wire.TypeHandshakeHello {
		return packetType, payload, nil
	}

	sc, established := c.secureEstablished()
	if !established {
		return packetType, payload, nil
	}

	inner := wire.Encode(packetType, payload, c.clientID)
	env, err := sc.Seal(inner)
	if err != nil {
		return 0, nil, err
	}
	return wire.TypeEncrypted, env.Encode(), nil
}

// writeLoop drains the outbound queue onto the wire until Close.
func (c *Connection) writeLoop() {
	for {
		select {
		case frame := <-c.out:
			raw := wire.Encode(frame.packetType, frame.payload, c.clientID)
			if _, err := c.rw.Write(raw); err != nil {
				c.log.DebugRuntime("write failed, closing connection", "remote", c.remoteAddr, "err", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close shuts the connection down idempotently.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.rw.Close()
	})
}

// Closed reports whether Close has run.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
