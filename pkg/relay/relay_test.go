package relay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethan/acip-discovery/pkg/wire"
)

type fakeCtx struct {
	broadcasts []broadcastCall
	unicasts   []unicastCall
}

type broadcastCall struct {
	sessionID wire.ID
	exclude   wire.ID
	pktType   uint16
	payload   []byte
}

type unicastCall struct {
	sessionID     wire.ID
	participantID wire.ID
	pktType       uint16
	payload       []byte
}

func (f *fakeCtx) RemoteAddr() string        { return "test" }
func (f *fakeCtx) Send(uint16, []byte) error { return nil }
func (f *fakeCtx) Broadcast(sessionID, exclude wire.ID, pktType uint16, payload []byte) {
	f.broadcasts = append(f.broadcasts, broadcastCall{sessionID, exclude, pktType, payload})
}
func (f *fakeCtx) SendToParticipant(sessionID, participantID wire.ID, pktType uint16, payload []byte) error {
	f.unicasts = append(f.unicasts, unicastCall{sessionID, participantID, pktType, payload})
	return nil
}

func TestForwardBroadcastsOnZeroRecipient(t *testing.T) {
	ctx := &fakeCtx{}
	sig := &wire.RelaySignal{
		SessionID:   wire.ID{1},
		SenderID:    wire.ID{2},
		RecipientID: wire.ID{}, // broadcast
		Body:        []byte("sdp-offer"),
	}

	Forward(ctx, wire.TypeWebRTCSDP, sig)

	require.Len(t, ctx.broadcasts, 1)
	require.Empty(t, ctx.unicasts)
	require.Equal(t, wire.ID{2}, ctx.broadcasts[0].exclude)
}

func TestForwardUnicastsOnExplicitRecipient(t *testing.T) {
	ctx := &fakeCtx{}
	sig := &wire.RelaySignal{
		SessionID:   wire.ID{1},
		SenderID:    wire.ID{2},
		RecipientID: wire.ID{3},
		Body:        []byte("ice-candidate"),
	}

	Forward(ctx, wire.TypeWebRTCICE, sig)

	require.Empty(t, ctx.broadcasts)
	require.Len(t, ctx.unicasts, 1)
	require.Equal(t, wire.ID{3}, ctx.unicasts[0].participantID)
}

func TestNotifyJoinedUnicastsToOthers(t *testing.T) {
	ctx := &fakeCtx{}
	joined := &wire.ParticipantJoined{
		SessionID:           wire.ID{1},
		ParticipantID:       wire.ID{2},
		CurrentParticipants: 3,
	}

	NotifyJoined(ctx, joined.SessionID, joined)

	require.Len(t, ctx.broadcasts, 1)
	require.Equal(t, wire.TypeParticipantJoined, ctx.broadcasts[0].pktType)
	require.Equal(t, wire.ID{2}, ctx.broadcasts[0].exclude)
}

func TestNotifyLeftCarriesWasHost(t *testing.T) {
	ctx := &fakeCtx{}
	left := &wire.ParticipantLeft{
		SessionID:     wire.ID{1},
		ParticipantID: wire.ID{2},
		WasHost:       true,
	}

	NotifyLeft(ctx, left.SessionID, left)

	require.Len(t, ctx.broadcasts, 1)
	got, err := wire.DecodeParticipantLeft(ctx.broadcasts[0].payload)
	require.NoError(t, err)
	require.True(t, got.WasHost)
}
