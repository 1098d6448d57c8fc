// Package secure implements the optional authenticated-encryption channel
// that wraps ACIP frames once a HANDSHAKE_HELLO exchange completes. Every
// frame type other than HANDSHAKE_HELLO itself travels sealed inside a
// wire.SecurityEnvelope once the channel is Established.
package secure

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/box"

	"github.com/ethan/acip-discovery/pkg/wire"
)

var (
	// ErrNotEstablished is returned by Seal/Open before the handshake
	// completes.
	ErrNotEstablished = errors.New("secure: channel not established")
	// ErrDecryptFailed covers both malformed envelopes and authentication
	// failures; nacl/box deliberately does not distinguish the two so
	// neither does this package.
	ErrDecryptFailed = errors.New("secure: envelope failed to open")
	// ErrCleartextRejected is returned when a non-handshake frame arrives
	// outside an envelope on a channel that requires encryption.
	ErrCleartextRejected = errors.New("secure: cleartext frame on encrypted channel")
	// ErrBadSignature is returned when a HANDSHAKE_HELLO's signature does
	// not verify against the claimed identity key.
	ErrBadSignature = errors.New("secure: handshake signature invalid")
)

// keyPair is an ephemeral X25519 pair, box-key-shaped.
type keyPair struct {
	pub  [32]byte
	priv [32]byte
}

func newEphemeralKeyPair() (*keyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	return &keyPair{pub: *pub, priv: *priv}, nil
}

// Channel is a per-connection secure-channel state machine. It holds at
// most two peer public keys at once (current and previous), spanning
// the window between REKEY_REQUEST and REKEY_COMPLETE during which both
// the old and new key must be accepted for incoming envelopes (spec.md
// §4.2 rekey semantics).
type Channel struct {
	mu sync.RWMutex

	local    *keyPair
	pending  *keyPair // set while a rekey we initiated is in flight
	peerCur  *[32]byte
	peerPrev *[32]byte // still accepted after a rekey until CompleteRekey

	established bool
}

// New returns a Channel with a fresh ephemeral keypair, not yet established.
func New() (*Channel, error) {
	kp, err := newEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	return &Channel{local: kp}, nil
}

// LocalEphemeralKey returns the key to advertise in HANDSHAKE_HELLO.
func (c *Channel) LocalEphemeralKey() [32]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.local.pub
}

// SignHello produces the detached Ed25519 signature over the local
// ephemeral key, binding it to identityPriv's long-term identity.
func SignHello(identityPriv ed25519.PrivateKey, ephemeralPub [32]byte) wire.Signature {
	sig := ed25519.Sign(identityPriv, ephemeralPub[:])
	var out wire.Signature
	copy(out[:], sig)
	return out
}

// VerifyHello checks a HANDSHAKE_HELLO's signature over its ephemeral key
// against the claimed long-term identity public key.
func VerifyHello(identityPub ed25519.PublicKey, ephemeralPub [32]byte, sig wire.Signature) error {
	if !ed25519.Verify(identityPub, ephemeralPub[:], sig[:]) {
		return ErrBadSignature
	}
	return nil
}

// Establish records the peer's ephemeral key after a verified
// HANDSHAKE_HELLO and marks the channel ready for sealed traffic.
func (c *Channel) Establish(peerEphemeral [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := peerEphemeral
	c.peerCur = &k
	c.peerPrev = nil
	c.pending = nil
	c.established = true
}

// Established reports whether a HANDSHAKE_HELLO has completed.
func (c *Channel) Established() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.established
}

// BeginRekey generates a fresh local ephemeral keypair and returns it for
// inclusion in a REKEY_REQUEST or REKEY_RESPONSE. The old local key keeps
// being used to Open incoming envelopes until CompleteRekey.
func (c *Channel) BeginRekey() ([32]byte, error) {
	kp, err := newEphemeralKeyPair()
	if err != nil {
		return [32]byte{}, err
	}
	c.mu.Lock()
	c.pending = kp
	c.mu.Unlock()
	return kp.pub, nil
}

// AcceptPeerRekey records the peer's new ephemeral key as peerCur, keeping
// the previous one in peerPrev until CompleteRekey drops it. Envelopes
// from either key are accepted, any number of them, until then, while
// both sides converge (spec.md §4.2).
func (c *Channel) AcceptPeerRekey(newPeerKey [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peerCur != nil {
		old := *c.peerCur
		c.peerPrev = &old
	}
	k := newPeerKey
	c.peerCur = &k
}

// CompleteRekey swaps in the pending local keypair (if any) and drops the
// grace-window previous peer key, ending the dual-key acceptance window.
func (c *Channel) CompleteRekey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.local = c.pending
		c.pending = nil
	}
	c.peerPrev = nil
}

// Seal encrypts plaintext (a fully-encoded inner frame payload) for the
// current peer key using the current local ephemeral key.
func (c *Channel) Seal(plaintext []byte) (*wire.SecurityEnvelope, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.established || c.peerCur == nil {
		return nil, ErrNotEstablished
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, c.peerCur, &c.local.priv)

	env := &wire.SecurityEnvelope{
		SenderPubKey: c.local.pub,
		Nonce:        nonce,
		Sealed:       sealed,
	}
	return env, nil
}

// Open decrypts an incoming envelope, trying peerCur first and falling
// back to peerPrev during a rekey's grace window.
func (c *Channel) Open(env *wire.SecurityEnvelope) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.established {
		return nil, ErrNotEstablished
	}

	known := false
	if c.peerCur != nil && *c.peerCur == env.SenderPubKey {
		known = true
	}
	if c.peerPrev != nil && *c.peerPrev == env.SenderPubKey {
		known = true
	}
	if !known {
		return nil, ErrDecryptFailed
	}

	localKeys := []*keyPair{c.local}
	if c.pending != nil {
		localKeys = append(localKeys, c.pending)
	}

	for _, lk := range localKeys {
		if out, ok := box.Open(nil, env.Sealed, &env.Nonce, &env.SenderPubKey, &lk.priv); ok {
			return out, nil
		}
	}
	return nil, ErrDecryptFailed
}
