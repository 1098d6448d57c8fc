package secure

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func establishedPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	a.Establish(b.LocalEphemeralKey())
	b.Establish(a.LocalEphemeralKey())
	return a, b
}

func TestSealOpenRoundTrip(t *testing.T) {
	a, b := establishedPair(t)

	env, err := a.Seal([]byte("hello over the wire"))
	require.NoError(t, err)

	plaintext, err := b.Open(env)
	require.NoError(t, err)
	require.Equal(t, []byte("hello over the wire"), plaintext)
}

func TestSealBeforeEstablishFails(t *testing.T) {
	ch, err := New()
	require.NoError(t, err)

	_, err = ch.Seal([]byte("too soon"))
	require.ErrorIs(t, err, ErrNotEstablished)
}

func TestOpenRejectsUnknownSender(t *testing.T) {
	a, b := establishedPair(t)
	stranger, err := New()
	require.NoError(t, err)
	stranger.Establish(b.LocalEphemeralKey())

	env, err := stranger.Seal([]byte("not really a"))
	require.NoError(t, err)

	_, err = b.Open(env)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestRekeyGraceWindowAcceptsOldAndNewKey(t *testing.T) {
	a, b := establishedPair(t)

	// a begins a rekey and tells b about its new key via a REKEY_REQUEST;
	// b accepts it and seals to a's new key while a hasn't called
	// CompleteRekey yet, so a must open it with its pending key while the
	// old local key is still in place.
	newLocalForA, err := a.BeginRekey()
	require.NoError(t, err)
	b.AcceptPeerRekey(newLocalForA)

	envFromB, err := b.Seal([]byte("still on the old key"))
	require.NoError(t, err)
	plaintext, err := a.Open(envFromB)
	require.NoError(t, err)
	require.Equal(t, []byte("still on the old key"), plaintext)

	a.CompleteRekey()

	// After CompleteRekey, a new envelope sealed under a's fresh local key
	// must round-trip once b has also converged.
	newLocalForB, err := b.BeginRekey()
	require.NoError(t, err)
	a.AcceptPeerRekey(newLocalForB)
	b.CompleteRekey()

	env, err := a.Seal([]byte("on the new keys"))
	require.NoError(t, err)
	plaintext, err = b.Open(env)
	require.NoError(t, err)
	require.Equal(t, []byte("on the new keys"), plaintext)
}

func TestSignAndVerifyHello(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	ch, err := New()
	require.NoError(t, err)
	ephemeral := ch.LocalEphemeralKey()

	sig := SignHello(priv, ephemeral)
	require.NoError(t, VerifyHello(pub, ephemeral, sig))
}

func TestVerifyHelloRejectsTamperedKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	ch, err := New()
	require.NoError(t, err)
	sig := SignHello(priv, ch.LocalEphemeralKey())

	tampered := ch.LocalEphemeralKey()
	tampered[0] ^= 0xFF

	require.ErrorIs(t, VerifyHello(pub, tampered, sig), ErrBadSignature)
}
