package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsPassValidation(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsZeroArgon2Threads(t *testing.T) {
	cfg := Defaults()
	cfg.Argon2Threads = 0
	require.Error(t, cfg.Validate())
}

func TestApplyParsesKnownKeys(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.apply("listen_addr", ":9999"))
	require.Equal(t, ":9999", cfg.ListenAddr)

	require.NoError(t, cfg.apply("replay_window_seconds", "120"))
	require.Equal(t, 120*time.Second, cfg.ReplayWindow)

	require.NoError(t, cfg.apply("argon2_threads", "2"))
	require.Equal(t, uint8(2), cfg.Argon2Threads)
}

func TestApplyIgnoresUnknownKey(t *testing.T) {
	cfg := Defaults()
	before := *cfg
	require.NoError(t, cfg.apply("not_a_real_key", "value"))
	require.Equal(t, before, *cfg)
}

func TestApplyAppendsICEServerHintFromBareURL(t *testing.T) {
	cfg := Defaults()
	require.Empty(t, cfg.ICEServers)

	require.NoError(t, cfg.apply("ice_server_url", "stun:stun.example.com:3478"))
	require.Len(t, cfg.ICEServers, 1)
	require.Equal(t, []string{"stun:stun.example.com:3478"}, cfg.ICEServers[0].URLs)
}

func TestICEServerHintConvertsToPionShape(t *testing.T) {
	hint := ICEServerHint{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "c"}

	pionServer := hint.ToPionICEServer()
	require.Equal(t, hint.URLs, pionServer.URLs)
	require.Equal(t, hint.Username, pionServer.Username)
	require.Equal(t, hint.Credential, pionServer.Credential)
}
