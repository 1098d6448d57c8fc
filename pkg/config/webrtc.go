package config

import "github.com/pion/webrtc/v4"

// ToPionICEServer converts a deployment's configured ICE server hint into
// the shape pion/webrtc's PeerConnection configuration expects, so a
// WebRTC-mode client sitting downstream of discovery can feed
// SESSION_CREATED's advertised servers straight into a
// webrtc.Configuration without a translation layer of its own (this
// engine itself never builds a PeerConnection; that crosses from
// signaling into media termination).
func (h ICEServerHint) ToPionICEServer() webrtc.ICEServer {
	return webrtc.ICEServer{
		URLs:       h.URLs,
		Username:   h.Username,
		Credential: h.Credential,
	}
}
