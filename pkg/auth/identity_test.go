package auth

import (
	"crypto/ed25519"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethan/acip-discovery/pkg/wire"
)

func genKey(t *testing.T) (wire.PubKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var wp wire.PubKey
	copy(wp[:], pub)
	return wp, priv
}

func TestSignVerifyCreateRoundTrip(t *testing.T) {
	pub, priv := genKey(t)
	ts := time.Now().Unix()
	sig := SignCreate(priv, ts, wire.CapVideo, 4)

	require.NoError(t, VerifyCreate(pub, ts, wire.CapVideo, 4, sig))
}

func TestVerifyCreateRejectsTamperedField(t *testing.T) {
	pub, priv := genKey(t)
	ts := time.Now().Unix()
	sig := SignCreate(priv, ts, wire.CapVideo, 4)

	err := VerifyCreate(pub, ts, wire.CapVideo|wire.CapAudio, 4, sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignVerifyJoinRoundTrip(t *testing.T) {
	pub, priv := genKey(t)
	ts := time.Now().Unix()
	sig := SignJoin(priv, "brave-otter-42", ts)
	require.NoError(t, VerifyJoin(pub, "brave-otter-42", ts, sig))
	require.Error(t, VerifyJoin(pub, "other-string", ts, sig))
}

func TestSignVerifyEndRoundTrip(t *testing.T) {
	pub, priv := genKey(t)
	sessionID := wire.ID{1, 2, 3}
	sig := SignEnd(priv, sessionID)
	require.NoError(t, VerifyEnd(pub, sessionID, sig))

	other, _ := genKey(t)
	require.Error(t, VerifyEnd(other, sessionID, sig))
}

func TestSignVerifyReconnectRoundTrip(t *testing.T) {
	pub, priv := genKey(t)
	sessionID, participantID := wire.ID{1}, wire.ID{2}
	sig := SignReconnect(priv, sessionID, participantID)
	require.NoError(t, VerifyReconnect(pub, sessionID, participantID, sig))
}

func TestValidateTimestampWithinWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	err := ValidateTimestamp(now.Unix()-100, now, 300*time.Second, 60*time.Second)
	require.NoError(t, err)
}

func TestValidateTimestampExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	err := ValidateTimestamp(now.Unix()-400, now, 300*time.Second, 60*time.Second)
	require.ErrorIs(t, err, ErrTimestampExpired)
}

func TestValidateTimestampFuture(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	err := ValidateTimestamp(now.Unix()+120, now, 300*time.Second, 60*time.Second)
	require.ErrorIs(t, err, ErrTimestampFuture)
}

func TestValidateTimestampNeverUnderflowsNearEpoch(t *testing.T) {
	// now is close to the unix epoch; a window wider than now must not
	// wrap oldestAllowed into appearing to be in the future.
	now := time.Unix(10, 0)
	err := ValidateTimestamp(0, now, 300*time.Second, 60*time.Second)
	require.NoError(t, err)
}

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func TestFailureLimiterPerSourceBudget(t *testing.T) {
	fl := NewFailureLimiter(60) // 1/sec
	addr := fakeAddr("203.0.113.5:4444")

	require.True(t, fl.Allow(addr))
	require.False(t, fl.Allow(addr)) // burst=1, immediate second call exhausts budget
}

func TestFailureLimiterIsolatesSources(t *testing.T) {
	fl := NewFailureLimiter(60)
	a := fakeAddr("203.0.113.5:1")
	b := fakeAddr("203.0.113.6:1")

	require.True(t, fl.Allow(a))
	require.True(t, fl.Allow(b))
}

func TestFailureLimiterSweep(t *testing.T) {
	fl := NewFailureLimiter(60)
	fl.Allow(fakeAddr("203.0.113.5:1"))
	require.Len(t, fl.limiters, 1)

	fl.Sweep(-1 * time.Second) // everything is "older" than now-(-1s)
	require.Empty(t, fl.limiters)
}

var _ net.Addr = fakeAddr("")
