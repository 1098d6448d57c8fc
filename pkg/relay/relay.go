// Package relay forwards opaque SDP/ICE signaling bodies between
// participants of a session and emits participant lifecycle
// notifications. It never parses a relayed body (spec.md §4.6).
package relay

import (
	"errors"

	"github.com/ethan/acip-discovery/pkg/dispatch"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// ErrRecipientNotConnected is returned by Context.SendToParticipant
// (Registry.SendToParticipant in pkg/runtime) when the addressed
// participant has no live connection; the caller drops the packet
// silently per spec.md §4.6.
var ErrRecipientNotConnected = errors.New("relay: recipient not connected")

// Forward routes an SDP or ICE relay signal: an all-zero RecipientID
// broadcasts one copy to every other participant, otherwise exactly one
// copy goes to the addressed participant, or is dropped silently if they
// are not connected (spec.md §4.6).
func Forward(ctx dispatch.Context, packetType uint16, sig *wire.RelaySignal) {
	payload := sig.Encode()

	if sig.RecipientID.IsBroadcast() {
		ctx.Broadcast(sig.SessionID, sig.SenderID, packetType, payload)
		return
	}

	// Unicast: exactly one copy to the addressed participant, dropped
	// silently if they are not connected (spec.md §4.6) — the error is
	// intentionally discarded here, not propagated as a handler failure.
	_ = ctx.SendToParticipant(sig.SessionID, sig.RecipientID, packetType, payload)
}

// NotifyJoined unicasts PARTICIPANT_JOINED to every other participant of
// the session (spec.md §4.6).
func NotifyJoined(ctx dispatch.Context, sessionID wire.ID, joined *wire.ParticipantJoined) {
	ctx.Broadcast(sessionID, joined.ParticipantID, wire.TypeParticipantJoined, joined.Encode())
}

// NotifyLeft unicasts PARTICIPANT_LEFT to every other participant of the
// session, carrying whether the departing participant was the host.
func NotifyLeft(ctx dispatch.Context, sessionID wire.ID, left *wire.ParticipantLeft) {
	ctx.Broadcast(sessionID, left.ParticipantID, wire.TypeParticipantLeft, left.Encode())
}
