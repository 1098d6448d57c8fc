package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethan/acip-discovery/pkg/relay"
	"github.com/ethan/acip-discovery/pkg/wire"
)

func testConn(t *testing.T) *Connection {
	t.Helper()
	conn, client := pipeConn(t, 4)
	t.Cleanup(func() { conn.Close(); client.Close() })
	return conn
}

func TestRegistryAssociateAndGet(t *testing.T) {
	reg := NewRegistry()
	conn := testConn(t)
	sessionID, participantID := wire.ID{1}, wire.ID{2}

	_, ok := reg.Get(sessionID, participantID)
	require.False(t, ok)

	reg.Associate(sessionID, participantID, conn)
	got, ok := reg.Get(sessionID, participantID)
	require.True(t, ok)
	require.Same(t, conn, got)
}

func TestRegistryRemoveDoesNotClobberNewerAssociation(t *testing.T) {
	reg := NewRegistry()
	stale := testConn(t)
	fresh := testConn(t)
	sessionID, participantID := wire.ID{1}, wire.ID{2}

	reg.Associate(sessionID, participantID, stale)
	reg.Associate(sessionID, participantID, fresh) // e.g. a RECONNECT superseding stale

	reg.Remove(sessionID, participantID, stale) // late cleanup from the old connection

	got, ok := reg.Get(sessionID, participantID)
	require.True(t, ok)
	require.Same(t, fresh, got)
}

func TestRegistryRemoveDropsCurrentAssociation(t *testing.T) {
	reg := NewRegistry()
	conn := testConn(t)
	sessionID, participantID := wire.ID{1}, wire.ID{2}

	reg.Associate(sessionID, participantID, conn)
	reg.Remove(sessionID, participantID, conn)

	_, ok := reg.Get(sessionID, participantID)
	require.False(t, ok)
}

func TestRegistryBroadcastExcludesOneParticipantAndOtherSessions(t *testing.T) {
	reg := NewRegistry()
	sessionA := wire.ID{1}
	sessionB := wire.ID{9}
	p1, p2, p3 := wire.ID{1}, wire.ID{2}, wire.ID{3}

	c1, c2, c3 := testConn(t), testConn(t), testConn(t)
	reg.Associate(sessionA, p1, c1)
	reg.Associate(sessionA, p2, c2)
	reg.Associate(sessionB, p3, c3) // different session, must never receive

	reg.Broadcast(sessionA, p1, wire.TypeParticipantLeft, []byte("x"))

	require.Equal(t, uint64(0), c1.dropped, "excluded participant shouldn't even get an enqueue attempt")
	select {
	case frame := <-c1.out:
		t.Fatalf("excluded participant received a frame: %+v", frame)
	default:
	}
	require.Len(t, c2.out, 1)
	require.Len(t, c3.out, 0)
}

func TestRegistrySendToParticipantErrorsWhenNotConnected(t *testing.T) {
	reg := NewRegistry()
	err := reg.SendToParticipant(wire.ID{1}, wire.ID{2}, wire.TypeRingCollect, nil)
	require.ErrorIs(t, err, relay.ErrRecipientNotConnected)
}

func TestRegistrySendToParticipantDeliversToBoundConnection(t *testing.T) {
	reg := NewRegistry()
	conn := testConn(t)
	sessionID, participantID := wire.ID{1}, wire.ID{2}
	reg.Associate(sessionID, participantID, conn)

	require.NoError(t, reg.SendToParticipant(sessionID, participantID, wire.TypeRingCollect, []byte("go")))
	require.Len(t, conn.out, 1)
}

func TestConnectionsForSessionEnumeratesOnlyThatSession(t *testing.T) {
	reg := NewRegistry()
	sessionA := wire.ID{1}
	sessionB := wire.ID{9}
	c1, c2, c3 := testConn(t), testConn(t), testConn(t)
	reg.Associate(sessionA, wire.ID{1}, c1)
	reg.Associate(sessionA, wire.ID{2}, c2)
	reg.Associate(sessionB, wire.ID{3}, c3)

	conns := reg.ConnectionsForSession(sessionA)
	require.Len(t, conns, 2)
	require.Contains(t, conns, c1)
	require.Contains(t, conns, c2)
	require.NotContains(t, conns, c3)
}
