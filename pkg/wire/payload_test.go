package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionCreateRoundTrip(t *testing.T) {
	orig := &SessionCreate{
		Timestamp:           1234567890,
		Capabilities:        CapVideo | CapAudio,
		MaxParticipants:     4,
		SessionType:         SessionTypeDirectTCP,
		ExposeIP:            true,
		RequireServerVerify: true,
		HostPubKey:          PubKey{0xAA},
		Signature:           Signature{0xBB},
		Password:            "hunter2",
		ServerAddress:       "203.0.113.5",
		ServerPort:          27225,
		ReservedString:      "brave-otter-42",
	}

	got, err := DecodeSessionCreate(orig.Encode())
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestSessionInfoHasNoAddressFields(t *testing.T) {
	info := &SessionInfo{
		Found:               true,
		HostPubKey:          PubKey{0x01},
		Capabilities:        CapVideo,
		MaxParticipants:     8,
		CurrentParticipants: 2,
		SessionType:         SessionTypeWebRTC,
		HasPassword:         false,
	}
	got, err := DecodeSessionInfo(info.Encode())
	require.NoError(t, err)
	require.Equal(t, info, got)

	// The type itself structurally cannot disclose an address: there is no
	// field to carry one, regardless of what the handler fills in.
}

func TestSessionJoinedRoundTrip(t *testing.T) {
	sj := &SessionJoined{
		Success:             true,
		ErrorCode:           ErrNone,
		SessionID:           ID{1, 2, 3},
		ParticipantID:       ID{4, 5, 6},
		ServerAddress:       "198.51.100.9",
		ServerPort:          27225,
		SessionType:         SessionTypeDirectTCP,
		CurrentParticipants: 3,
		MaxParticipants:     8,
	}
	got, err := DecodeSessionJoined(sj.Encode())
	require.NoError(t, err)
	require.Equal(t, sj, got)
}

func TestRelaySignalBroadcastSentinel(t *testing.T) {
	sig := &RelaySignal{
		SessionID:   ID{9},
		SenderID:    ID{1},
		RecipientID: ID{}, // broadcast
		Body:        []byte(`{"type":"offer","sdp":"..."}`),
	}
	require.True(t, sig.RecipientID.IsBroadcast())

	got, err := DecodeRelaySignal(sig.Encode())
	require.NoError(t, err)
	require.Equal(t, sig, got)
	require.True(t, got.RecipientID.IsBroadcast())
}

func TestParticipantListRoundTrip(t *testing.T) {
	list := &ParticipantList{
		SessionID: ID{7},
		Entries: []ParticipantEntry{
			{ParticipantID: ID{1}, Address: "10.0.0.1", Port: 5000, ConnType: SessionTypeDirectTCP},
			{ParticipantID: ID{2}, Address: "10.0.0.2", Port: 5001, ConnType: SessionTypeDirectTCP},
		},
	}
	got, err := DecodeParticipantList(list.Encode())
	require.NoError(t, err)
	require.Equal(t, list, got)
}

func TestNetworkQualityRoundTrip(t *testing.T) {
	nq := &NetworkQuality{
		SessionID:         ID{1},
		ParticipantID:     ID{2},
		RoundNumber:       3,
		HasPublicIP:       true,
		UPnPAvailable:     false,
		UPnPMappedPort:    0,
		StunNATType:       NATFullCone,
		LANReachable:      true,
		StunLatencyMs:     40,
		UploadKbps:        5000,
		DownloadKbps:      20000,
		RTTToACDSMs:       35,
		JitterMs:          2,
		PacketLossPct:     1,
		PublicAddress:     "198.51.100.10",
		PublicPort:        40000,
		ICECandidateTypes: ICECandidateHost | ICECandidateSrflx,
	}
	got, err := DecodeNetworkQuality(nq.Encode())
	require.NoError(t, err)
	require.Equal(t, nq, got)
}

func TestFutureHostElectedRoundTrip(t *testing.T) {
	fhe := &FutureHostElected{
		SessionID:    ID{1},
		FutureHostID: ID{2},
		Address:      "203.0.113.9",
		Port:         27225,
		ConnType:     SessionTypeDirectTCP,
		RoundNumber:  5,
	}
	got, err := DecodeFutureHostElected(fhe.Encode())
	require.NoError(t, err)
	require.Equal(t, fhe, got)
}

func TestHostLostRoundTrip(t *testing.T) {
	hl := &HostLost{
		SessionID:  ID{1},
		ReporterID: ID{2},
		LastHostID: ID{3},
		Reason:     1,
		When:       1700000000,
	}
	got, err := DecodeHostLost(hl.Encode())
	require.NoError(t, err)
	require.Equal(t, hl, got)
}

func TestACIPErrorRoundTrip(t *testing.T) {
	e := &ACIPError{Code: ErrSessionFull, Message: "session at capacity"}
	got, err := DecodeACIPError(e.Encode())
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestDecodeShortPayloadErrors(t *testing.T) {
	_, err := DecodeSessionCreate([]byte{0x00})
	require.ErrorIs(t, err, ErrShortPayload)
}

func TestSecurityEnvelopeRoundTrip(t *testing.T) {
	env := &SecurityEnvelope{
		SenderPubKey: [32]byte{1, 2, 3},
		Nonce:        [24]byte{4, 5, 6},
		Sealed:       []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	got, err := DecodeSecurityEnvelope(env.Encode())
	require.NoError(t, err)
	require.Equal(t, env, got)
}

func TestHandshakeHelloRoundTrip(t *testing.T) {
	h := &HandshakeHello{
		IdentityPubKey: PubKey{9},
		EphemeralKey:   [32]byte{8},
		Signature:      Signature{7},
	}
	got, err := DecodeHandshakeHello(h.Encode())
	require.NoError(t, err)
	require.Equal(t, h, got)
}
