package runtime

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethan/acip-discovery/pkg/auth"
	"github.com/ethan/acip-discovery/pkg/config"
	"github.com/ethan/acip-discovery/pkg/dispatch"
	"github.com/ethan/acip-discovery/pkg/migration"
	"github.com/ethan/acip-discovery/pkg/session"
	"github.com/ethan/acip-discovery/pkg/wire"
)

func genIdentity(t *testing.T) (wire.PubKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var wp wire.PubKey
	copy(wp[:], pub)
	return wp, priv
}

func testServerRuntime() *ServerRuntime {
	store := session.NewStore(auth.PasswordParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32},
		time.Second, 300*time.Second, 60*time.Second)
	s := &ServerRuntime{
		deps: Deps{
			Store:       store,
			Limiter:     auth.NewFailureLimiter(60),
			Coordinator: migration.NewCoordinator(),
		},
		reg: NewRegistry(),
	}
	s.tbl = buildDispatchTable(s)
	return s
}

type fakeRuntimeCtx struct {
	addr string
	sent []sentFrame
}

type sentFrame struct {
	packetType uint16
	payload    []byte
}

func (f *fakeRuntimeCtx) RemoteAddr() string { return f.addr }
func (f *fakeRuntimeCtx) Send(packetType uint16, payload []byte) error {
	f.sent = append(f.sent, sentFrame{packetType, payload})
	return nil
}
func (f *fakeRuntimeCtx) Broadcast(wire.ID, wire.ID, uint16, []byte)            {}
func (f *fakeRuntimeCtx) SendToParticipant(wire.ID, wire.ID, uint16, []byte) error { return nil }

func TestDeriveInitiatorIDIsDeterministicPerPubKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var wp wire.PubKey
	copy(wp[:], pub)

	id1 := deriveInitiatorID(wp)
	id2 := deriveInitiatorID(wp)
	require.Equal(t, id1, id2)

	want := sha256.Sum256(wp[:])
	require.Equal(t, want[:16], id1[:])
}

func TestDeriveInitiatorIDDiffersAcrossKeys(t *testing.T) {
	pubA, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pubB, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var wpA, wpB wire.PubKey
	copy(wpA[:], pubA)
	copy(wpB[:], pubB)

	require.NotEqual(t, deriveInitiatorID(wpA), deriveInitiatorID(wpB))
}

func TestAuthFailureCodePassesThroughUnderBudget(t *testing.T) {
	s := &ServerRuntime{deps: Deps{Limiter: auth.NewFailureLimiter(60)}}
	ctx := &fakeRuntimeCtx{addr: "203.0.113.5:1"}

	got := s.authFailureCode(ctx, wire.ErrInvalidSignature)
	require.Equal(t, wire.ErrInvalidSignature, got)
}

func TestAuthFailureCodeEscalatesOnceBudgetExhausted(t *testing.T) {
	s := &ServerRuntime{deps: Deps{Limiter: auth.NewFailureLimiter(1)}}
	ctx := &fakeRuntimeCtx{addr: "203.0.113.5:1"}

	first := s.authFailureCode(ctx, wire.ErrInvalidPassword)
	require.Equal(t, wire.ErrInvalidPassword, first)

	second := s.authFailureCode(ctx, wire.ErrInvalidPassword)
	require.Equal(t, wire.ErrRateLimited, second)
}

func TestStringAddrSatisfiesNetAddr(t *testing.T) {
	a := stringAddr("198.51.100.9:9000")
	require.Equal(t, "tcp", a.Network())
	require.Equal(t, "198.51.100.9:9000", a.String())
}

func TestHandleSessionEndRejectsNonHostAsPolicyViolation(t *testing.T) {
	s := testServerRuntime()
	hostPub, _ := genIdentity(t)
	_, impostorPriv := genIdentity(t)

	sess, err := s.deps.Store.Create(session.CreateCandidate{
		HostPubKey:      hostPub,
		MaxParticipants: 2,
		SessionType:     wire.SessionTypeWebRTC,
	}, time.Now())
	require.NoError(t, err)

	sig := auth.SignEnd(impostorPriv, sess.ID)
	payload := (&wire.SessionEnd{SessionID: sess.ID, Signature: sig}).Encode()

	ctx := &fakeRuntimeCtx{addr: "203.0.113.5:1"}
	err = s.handleSessionEnd(payload, ctx)
	require.True(t, dispatch.IsPolicyViolation(err))
	require.ErrorIs(t, err, session.ErrNotHost)

	require.Len(t, ctx.sent, 1)
	require.Equal(t, uint16(wire.TypeACIPError), ctx.sent[0].packetType)

	// the session must still exist: a rejected END never tears it down.
	_, ok := s.deps.Store.LookupByID(sess.ID)
	require.True(t, ok)
}

func TestHandleSessionEndAcceptsHostSignatureAndClosesConnections(t *testing.T) {
	s := testServerRuntime()
	hostPub, hostPriv := genIdentity(t)

	sess, err := s.deps.Store.Create(session.CreateCandidate{
		HostPubKey:      hostPub,
		MaxParticipants: 2,
		SessionType:     wire.SessionTypeWebRTC,
	}, time.Now())
	require.NoError(t, err)

	conn, _ := pipeConn(t, 4)
	conn.Bind(sess.ID, wire.ID{})
	s.reg.Associate(sess.ID, wire.ID{}, conn)

	sig := auth.SignEnd(hostPriv, sess.ID)
	payload := (&wire.SessionEnd{SessionID: sess.ID, Signature: sig}).Encode()

	ctx := &fakeRuntimeCtx{addr: "203.0.113.5:1"}
	err = s.handleSessionEnd(payload, ctx)
	require.NoError(t, err)
	require.Empty(t, ctx.sent)

	_, ok := s.deps.Store.LookupByID(sess.ID)
	require.False(t, ok)
	require.True(t, conn.Closed())
}

func TestBuildParticipantListAlwaysDisclosesAddressOnSuccessfulJoin(t *testing.T) {
	s := testServerRuntime()
	hostPub, _ := genIdentity(t)

	sess, err := s.deps.Store.Create(session.CreateCandidate{
		HostPubKey:      hostPub,
		MaxParticipants: 4,
		SessionType:     wire.SessionTypeDirectTCP,
		ExposeIP:        false,
		ServerAddress:   "203.0.113.9",
		ServerPort:      27225,
	}, time.Now())
	require.NoError(t, err)

	joinerPub, joinerPriv := genIdentity(t)
	now := time.Now()
	sig := auth.SignJoin(joinerPriv, sess.SessionString, now.Unix())
	_, err = s.deps.Store.Join(sess.SessionString, joinerPub, now.Unix(), sig, "", now)
	require.NoError(t, err)

	list := s.buildParticipantList(sess.ID)
	require.Len(t, list.Entries, 1)
	require.Equal(t, "203.0.113.9", list.Entries[0].Address)
	require.Equal(t, uint16(27225), list.Entries[0].Port)
}

func TestICEServerHintsOnlyForWebRTCSessions(t *testing.T) {
	hints := []config.ICEServerHint{{URLs: []string{"stun:example.com:3478"}, Username: "u", Credential: "c"}}

	require.Nil(t, iceServerHints(hints, wire.SessionTypeDirectTCP))

	servers := iceServerHints(hints, wire.SessionTypeWebRTC)
	require.Len(t, servers, 1)
	require.Equal(t, hints[0].URLs, servers[0].URLs)
	require.Equal(t, "u", servers[0].Username)
}
