package runtime

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ethan/acip-discovery/pkg/auth"
	"github.com/ethan/acip-discovery/pkg/config"
	"github.com/ethan/acip-discovery/pkg/dispatch"
	"github.com/ethan/acip-discovery/pkg/logger"
	"github.com/ethan/acip-discovery/pkg/migration"
	"github.com/ethan/acip-discovery/pkg/secure"
	"github.com/ethan/acip-discovery/pkg/session"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// secureCleartextRejected mirrors pkg/secure's sentinel for the one
// check that belongs at the runtime layer: a cleartext frame arriving on
// a connection whose secure channel is already established.
var secureCleartextRejected = secure.ErrCleartextRejected

// Deps collects everything ServerRuntime needs to construct a dispatch
// table and serve connections; assembled once at startup by cmd/acipd.
type Deps struct {
	Config      *config.Config
	Log         *logger.Logger
	Store       *session.Store
	Limiter     *auth.FailureLimiter
	Coordinator *migration.Coordinator
}

// ServerRuntime is the ACIP engine's ServerRuntime component (spec.md
// §4.9): it owns the listener(s), the connection registry, the dispatch
// table, and the scheduler goroutine.
type ServerRuntime struct {
	deps Deps
	reg  *Registry
	tbl  *dispatch.Table

	identityPub  wire.PubKey
	identityPriv ed25519.PrivateKey

	mu        sync.Mutex
	conns     map[*Connection]struct{}
	listeners []net.Listener

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a ServerRuntime with its dispatch table fully wired and a
// fresh long-term Ed25519 identity for the HANDSHAKE_HELLO exchange
// (spec.md §4.2: the server side of a secure channel authenticates
// itself the same way a participant does).
func New(deps Deps) *ServerRuntime {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(fmt.Sprintf("runtime: generate server identity: %v", err))
	}

	s := &ServerRuntime{
		deps:         deps,
		reg:          NewRegistry(),
		conns:        make(map[*Connection]struct{}),
		stopCh:       make(chan struct{}),
		identityPriv: priv,
	}
	copy(s.identityPub[:], pub)
	s.tbl = buildDispatchTable(s)
	return s
}

// ListenAndServeTCP accepts on deps.Config.ListenAddr until Stop is called.
func (s *ServerRuntime) ListenAndServeTCP() error {
	ln, err := net.Listen("tcp", s.deps.Config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.deps.Config.ListenAddr, err)
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	s.deps.Log.Info("acipd listening", "addr", s.deps.Config.ListenAddr, "transport", "tcp")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn, conn.RemoteAddr().String())
		}()
	}
}

// Stop closes every listener and open connection, then waits for their
// goroutines to exit.
func (s *ServerRuntime) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		for _, ln := range s.listeners {
			ln.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// Wait blocks until Stop has fully drained every connection goroutine.
func (s *ServerRuntime) Wait() { s.wg.Wait() }

// serverClientID is this deployment's opaque client_id; acipd runs a
// single server identity, so every outbound frame carries the same tag
// (spec.md §4.1 leaves the field opaque to the codec).
var serverClientID wire.ClientID

// serve runs one connection's read loop: decode, unwrap secure envelope
// if present, dispatch, repeat until a fatal framing error or clean EOF
// (spec.md §4.1, §4.9).
func (s *ServerRuntime) serve(rw io.ReadWriteCloser, remoteAddr string) {
	conn := NewConnection(rw, remoteAddr, serverClientID, s.deps.Config.OutboundQueueDepth, s.deps.Log)
	s.track(conn)
	defer s.untrack(conn)

	go conn.writeLoop()
	defer conn.Close()

	ctx := newConnContext(conn, s.reg)
	reader := bufio.NewReader(rw)

	for {
		packetType, payload, _, err := wire.Decode(reader)
		if err != nil {
			switch {
			case err == wire.ErrCleanEOF:
				s.deps.Log.DebugRuntime("connection closed cleanly", "remote", remoteAddr)
			case wire.IsFatal(err):
				s.deps.Log.DebugRuntime("fatal framing error, closing connection", "remote", remoteAddr, "err", err)
			default:
				s.deps.Log.DebugRuntime("framing error, closing connection", "remote", remoteAddr, "err", err)
			}
			s.onDisconnect(conn)
			return
		}
		conn.Touch(time.Now())

		if err := s.dispatchOne(conn, ctx, packetType, payload); err != nil {
			if dispatch.IsPolicyViolation(err) {
				s.deps.Log.DebugSecure("policy violation, closing connection", "remote", remoteAddr, "type", wire.TypeName(packetType), "err", err)
				s.onDisconnect(conn)
				return
			}
			s.deps.Log.DebugDispatch("handler error", "remote", remoteAddr, "type", wire.TypeName(packetType), "err", err)
		}
	}
}

// dispatchOne unwraps an ENCRYPTED envelope (if any) and routes the
// resulting frame through the dispatch table (spec.md §4.2, §4.3).
func (s *ServerRuntime) dispatchOne(conn *Connection, ctx dispatch.Context, packetType uint16, payload []byte) error {
	if packetType == wire.TypeEncrypted {
		return s.dispatchEncrypted(conn, ctx, payload)
	}

	if sc, established := conn.secureEstablished(); established && sc != nil && packetType != wire.TypeHandshakeHello {
		// Once a secure channel is up, every other frame type must
		// travel wrapped; a stray cleartext frame is a policy violation
		// (spec.md §7: "unencrypted packet on encrypted channel" closes
		// the connection, it is not merely logged).
		return dispatch.PolicyViolation(secureCleartextRejected)
	}

	handler, ok := s.tbl.Lookup(packetType)
	if !ok {
		s.deps.Log.DebugDispatch("no handler for type", "type", wire.TypeName(packetType))
		return nil
	}
	return handler(payload, ctx)
}

func (s *ServerRuntime) dispatchEncrypted(conn *Connection, ctx dispatch.Context, payload []byte) error {
	env, err := wire.DecodeSecurityEnvelope(payload)
	if err != nil {
		return fmt.Errorf("decode security envelope: %w", err)
	}

	sc, established := conn.secureEstablished()
	if !established {
		return secureCleartextRejected
	}

	inner, err := sc.Open(env)
	if err != nil {
		return fmt.Errorf("open security envelope: %w", err)
	}

	innerType, innerPayload, _, err := wire.Decode(bufio.NewReader(bytes.NewReader(inner)))
	if err != nil {
		return fmt.Errorf("decode sealed inner frame: %w", err)
	}

	handler, ok := s.tbl.Lookup(innerType)
	if !ok {
		return nil
	}
	return handler(innerPayload, ctx)
}

func (s *ServerRuntime) track(conn *Connection) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *ServerRuntime) untrack(conn *Connection) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// onDisconnect fires the same PARTICIPANT_LEFT notification path a
// graceful SESSION_LEAVE would (spec.md §3 Lifecycles: "graceful LEAVE,
// EOF, or TTL" are the three equivalent departure triggers).
func (s *ServerRuntime) onDisconnect(conn *Connection) {
	sessionID, participantID, bound := conn.Identity()
	if !bound {
		return
	}
	s.reg.Remove(sessionID, participantID, conn)
	handleDeparture(s, sessionID, participantID)
}

// snapshotConnections returns every currently tracked connection, used
// by the scheduler for idle-timeout sweeps.
func (s *ServerRuntime) snapshotConnections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}
