// Package auth implements the identity, password, replay-window, and
// per-source rate-limiting checks a handler must pass before a
// SESSION_CREATE/JOIN/END/RECONNECT request is accepted (spec.md §4.4).
package auth

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/ethan/acip-discovery/pkg/wire"
)

// ErrInvalidSignature is returned by any Verify* call when the detached
// Ed25519 signature does not validate against the claimed public key.
var ErrInvalidSignature = errors.New("auth: invalid signature")

// typeTag prepends a packet type's wire value to a signed message,
// binding the signature to the request kind it authorizes (spec.md §4.4:
// "type_tag(SESSION_CREATE) || ...").
func typeTag(t uint16) []byte {
	return []byte{byte(t >> 8), byte(t)}
}

// SignCreate produces the detached signature a client attaches to
// SESSION_CREATE: type_tag || big_endian_u64(timestamp) || capabilities ||
// max_participants (spec.md §4.4).
func SignCreate(priv ed25519.PrivateKey, timestamp int64, capabilities, maxParticipants uint8) wire.Signature {
	return toSig(ed25519.Sign(priv, signedCreateMessage(timestamp, capabilities, maxParticipants)))
}

// VerifyCreate checks a SESSION_CREATE signature.
func VerifyCreate(pub wire.PubKey, timestamp int64, capabilities, maxParticipants uint8, sig wire.Signature) error {
	msg := signedCreateMessage(timestamp, capabilities, maxParticipants)
	if !ed25519.Verify(pub[:], msg, sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}

func signedCreateMessage(timestamp int64, capabilities, maxParticipants uint8) []byte {
	msg := typeTag(wire.TypeSessionCreate)
	msg = appendI64(msg, timestamp)
	msg = append(msg, capabilities, maxParticipants)
	return msg
}

// SignJoin produces the detached signature over type_tag ||
// big_endian_u64(timestamp) || session_string_bytes (no null terminator;
// spec.md §4.4).
func SignJoin(priv ed25519.PrivateKey, sessionString string, timestamp int64) wire.Signature {
	return toSig(ed25519.Sign(priv, signedJoinMessage(sessionString, timestamp)))
}

// VerifyJoin checks a SESSION_JOIN signature.
func VerifyJoin(pub wire.PubKey, sessionString string, timestamp int64, sig wire.Signature) error {
	msg := signedJoinMessage(sessionString, timestamp)
	if !ed25519.Verify(pub[:], msg, sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}

func signedJoinMessage(sessionString string, timestamp int64) []byte {
	msg := typeTag(wire.TypeSessionJoin)
	msg = appendI64(msg, timestamp)
	msg = append(msg, sessionString...)
	return msg
}

// SignEnd produces the detached signature over type_tag || session_id
// (16B). The session_id is the authenticated value; the host identity
// pubkey used to verify it is looked up from the session record, not
// carried on the wire (spec.md §4.4).
func SignEnd(priv ed25519.PrivateKey, sessionID wire.ID) wire.Signature {
	return toSig(ed25519.Sign(priv, signedEndMessage(sessionID)))
}

// VerifyEnd checks a SESSION_END signature against the host's public key.
func VerifyEnd(hostPub wire.PubKey, sessionID wire.ID, sig wire.Signature) error {
	if !ed25519.Verify(hostPub[:], signedEndMessage(sessionID), sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}

func signedEndMessage(sessionID wire.ID) []byte {
	msg := typeTag(wire.TypeSessionEnd)
	return append(msg, sessionID[:]...)
}

// SignReconnect produces the detached signature over type_tag ||
// session_id || participant_id for SESSION_RECONNECT.
func SignReconnect(priv ed25519.PrivateKey, sessionID, participantID wire.ID) wire.Signature {
	return toSig(ed25519.Sign(priv, signedReconnectMessage(sessionID, participantID)))
}

// VerifyReconnect checks a SESSION_RECONNECT signature.
func VerifyReconnect(participantPub wire.PubKey, sessionID, participantID wire.ID, sig wire.Signature) error {
	msg := signedReconnectMessage(sessionID, participantID)
	if !ed25519.Verify(participantPub[:], msg, sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}

func signedReconnectMessage(sessionID, participantID wire.ID) []byte {
	msg := typeTag(wire.TypeSessionReconnect)
	msg = append(msg, sessionID[:]...)
	msg = append(msg, participantID[:]...)
	return msg
}

func appendI64(b []byte, v int64) []byte {
	var tmp [8]byte
	u := uint64(v)
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(u)
		u >>= 8
	}
	return append(b, tmp[:]...)
}

func toSig(b []byte) wire.Signature {
	var s wire.Signature
	copy(s[:], b)
	return s
}

// ValidateTimestamp enforces the replay-window check from spec.md §4.4:
// a request's timestamp must be no older than window and no further in
// the future than skew. Arithmetic is saturating so a window wider than
// now never underflows.
func ValidateTimestamp(ts int64, now time.Time, window, skew time.Duration) error {
	nowUnix := now.Unix()

	if ts > nowUnix+int64(skew/time.Second) {
		return ErrTimestampFuture
	}

	oldestAllowed := saturatingSub(nowUnix, int64(window/time.Second))
	if ts < oldestAllowed {
		return ErrTimestampExpired
	}
	return nil
}

// saturatingSub returns a-b, clamped to the minimum int64 instead of
// wrapping, so a window larger than the current unix clock never makes
// oldestAllowed appear to be in the future.
func saturatingSub(a, b int64) int64 {
	if b > 0 && a < minInt64+b {
		return minInt64
	}
	if b < 0 && a > maxInt64+b {
		return maxInt64
	}
	return a - b
}

const (
	maxInt64 = 1<<63 - 1
	minInt64 = -1 << 63
)

var (
	// ErrTimestampFuture is returned when a request's timestamp is further
	// ahead of the server clock than the configured skew allowance.
	ErrTimestampFuture = errors.New("auth: timestamp too far in the future")
	// ErrTimestampExpired is returned when a request's timestamp falls
	// outside the replay window.
	ErrTimestampExpired = errors.New("auth: timestamp outside replay window")
)
