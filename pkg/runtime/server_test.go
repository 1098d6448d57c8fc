package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethan/acip-discovery/pkg/dispatch"
	"github.com/ethan/acip-discovery/pkg/secure"
	"github.com/ethan/acip-discovery/pkg/wire"
)

func establishedConn(t *testing.T) *Connection {
	t.Helper()
	conn, _ := pipeConn(t, 4)

	sc, err := conn.SecureChannel()
	require.NoError(t, err)
	peer, err := secure.New()
	require.NoError(t, err)
	sc.Establish(peer.LocalEphemeralKey())
	require.True(t, sc.Established())

	return conn
}

func TestDispatchOneRejectsCleartextOnEstablishedChannelAsPolicyViolation(t *testing.T) {
	s := testServerRuntime()
	conn := establishedConn(t)
	ctx := newConnContext(conn, s.reg)

	err := s.dispatchOne(conn, ctx, wire.TypeSessionLookup, []byte{})
	require.True(t, dispatch.IsPolicyViolation(err))
}

func TestDispatchOnePassesHandshakeHelloThroughEvenWhenEstablished(t *testing.T) {
	s := testServerRuntime()
	conn := establishedConn(t)
	ctx := newConnContext(conn, s.reg)

	// HANDSHAKE_HELLO is the one type allowed to arrive in cleartext
	// regardless of channel state (it is what establishes the channel in
	// the first place); its registered handler fails decoding the empty
	// payload rather than the frame being treated as a policy
	// violation.
	err := s.dispatchOne(conn, ctx, wire.TypeHandshakeHello, []byte{})
	require.False(t, dispatch.IsPolicyViolation(err))
}
