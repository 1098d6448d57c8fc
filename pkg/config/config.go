// Package config loads the tunables ACIPD needs beyond what the wire
// protocol itself fixes: listen addresses, timing windows, and the
// Argon2id cost parameters used to hash session passwords.
package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime tunables for the ACIP discovery server.
type Config struct {
	// Transport
	ListenAddr   string // TCP listen address, e.g. ":27225"
	WebSocketAddr string // optional; empty disables the WS listener
	TLSCertFile  string
	TLSKeyFile   string

	// Auth
	ReplayWindow       time.Duration // W in spec.md §4.4, default 300s
	SkewAllowance      time.Duration // future-clock tolerance, default 60s
	Argon2Time         uint32
	Argon2MemoryKiB    uint32
	Argon2Threads      uint8
	Argon2KeyLen       uint32
	Argon2VerifyCeiling time.Duration // wall-clock abort ceiling, default 2s
	RateLimitPerMinute float64        // per-source-IP auth failure budget

	// Session / runtime
	IdleTimeout        time.Duration // per-connection read idle timeout, default 90s
	OutboundQueueDepth int           // per-connection bounded outbound queue, default 64
	SchedulerTick      time.Duration // background scheduler tick, default 1s
	RingTick           time.Duration // ring round period, default 5m
	RingRoundDeadline  time.Duration // per-round election deadline, default 2.5m

	// STUN/TURN hints echoed in SESSION_CREATED for WEBRTC sessions
	ICEServers []ICEServerHint
}

// ICEServerHint mirrors the shape of pion/webrtc's webrtc.ICEServer: the
// engine never negotiates ICE itself, it only advertises static hints
// configured for the deployment.
type ICEServerHint struct {
	URLs       []string
	Username   string
	Credential string
}

// Defaults returns a Config populated with the values spec.md names or
// implies as sane server defaults.
func Defaults() *Config {
	return &Config{
		ListenAddr:          ":27225",
		ReplayWindow:        300 * time.Second,
		SkewAllowance:       60 * time.Second,
		Argon2Time:          1,
		Argon2MemoryKiB:     64 * 1024,
		Argon2Threads:       4,
		Argon2KeyLen:        32,
		Argon2VerifyCeiling: 2 * time.Second,
		RateLimitPerMinute:  30,
		IdleTimeout:         90 * time.Second,
		OutboundQueueDepth:  64,
		SchedulerTick:       1 * time.Second,
		RingTick:            5 * time.Minute,
		RingRoundDeadline:   150 * time.Second,
	}
}

// Load reads configuration from a .env-style file, overlaying onto the
// defaults. A missing file is not an error: acipd can run on defaults
// alone.
func Load(envPath string) (*Config, error) {
	cfg := Defaults()

	file, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// URL decode values that might be encoded
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			// If decode fails, use original value
			decodedValue = value
		}

		if err := cfg.apply(key, decodedValue); err != nil {
			return nil, fmt.Errorf("config key %q: %w", key, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	switch key {
	case "listen_addr":
		c.ListenAddr = value
	case "websocket_addr":
		c.WebSocketAddr = value
	case "tls_cert_file":
		c.TLSCertFile = value
	case "tls_key_file":
		c.TLSKeyFile = value
	case "replay_window_seconds":
		return c.setDuration(&c.ReplayWindow, value)
	case "skew_allowance_seconds":
		return c.setDuration(&c.SkewAllowance, value)
	case "argon2_time":
		return c.setUint32(&c.Argon2Time, value)
	case "argon2_memory_kib":
		return c.setUint32(&c.Argon2MemoryKiB, value)
	case "argon2_threads":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return err
		}
		c.Argon2Threads = uint8(n)
	case "argon2_key_len":
		return c.setUint32(&c.Argon2KeyLen, value)
	case "argon2_verify_ceiling_seconds":
		return c.setDuration(&c.Argon2VerifyCeiling, value)
	case "rate_limit_per_minute":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.RateLimitPerMinute = f
	case "idle_timeout_seconds":
		return c.setDuration(&c.IdleTimeout, value)
	case "outbound_queue_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.OutboundQueueDepth = n
	case "scheduler_tick_seconds":
		return c.setDuration(&c.SchedulerTick, value)
	case "ring_tick_seconds":
		return c.setDuration(&c.RingTick, value)
	case "ring_round_deadline_seconds":
		return c.setDuration(&c.RingRoundDeadline, value)
	case "ice_server_url":
		c.ICEServers = append(c.ICEServers, ICEServerHint{URLs: []string{value}})
	}
	return nil
}

func (c *Config) setDuration(dst *time.Duration, value string) error {
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*dst = time.Duration(secs * float64(time.Second))
	return nil
}

func (c *Config) setUint32(dst *uint32, value string) error {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return err
	}
	*dst = uint32(n)
	return nil
}

// Validate checks that tunables fall within ranges the rest of the
// engine assumes.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("replay_window_seconds must be positive")
	}
	if c.OutboundQueueDepth <= 0 {
		return fmt.Errorf("outbound_queue_depth must be positive")
	}
	if c.Argon2Threads == 0 {
		return fmt.Errorf("argon2_threads must be positive")
	}
	if c.RingTick <= 0 || c.RingRoundDeadline <= 0 {
		return fmt.Errorf("ring_tick_seconds and ring_round_deadline_seconds must be positive")
	}
	return nil
}
