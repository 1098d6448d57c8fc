package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
)

// PasswordParams mirrors the Argon2id cost parameters a deployment
// chooses (config.Config carries the live values).
type PasswordParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

const saltSize = 16

// HashPassword derives an Argon2id digest for a newly created session's
// password, returning a self-describing hash that embeds the salt and
// parameters used so a later verify doesn't need the original config.
func HashPassword(password string, params PasswordParams) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return encodeHash(params, salt, hash), nil
}

// ErrVerifyCeilingExceeded is returned when verification wall-clock time
// exceeds the configured ceiling, guarding against an attacker using
// deliberately expensive parameters to stall a connection handler.
var ErrVerifyCeilingExceeded = errors.New("auth: password verify exceeded time ceiling")

// ErrPasswordMismatch is returned on a constant-time comparison failure.
var ErrPasswordMismatch = errors.New("auth: password mismatch")

// VerifyPassword re-derives the digest from encoded and compares it to the
// candidate password in constant time, aborting if re-derivation itself
// takes longer than ceiling (spec.md §4.4's bound on Argon2id's own cost
// becoming a denial-of-service surface).
func VerifyPassword(encoded, candidate string, ceiling time.Duration) error {
	params, salt, want, err := decodeHash(encoded)
	if err != nil {
		return fmt.Errorf("decode stored hash: %w", err)
	}

	done := make(chan []byte, 1)
	go func() {
		done <- argon2.IDKey([]byte(candidate), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	}()

	select {
	case got := <-done:
		if subtle.ConstantTimeCompare(got, want) != 1 {
			return ErrPasswordMismatch
		}
		return nil
	case <-time.After(ceiling):
		return ErrVerifyCeilingExceeded
	}
}

// encodeHash packs params, salt, and hash into a single string using the
// same dollar-delimited shape argon2's reference CLI uses, so stored
// passwords remain portable and self-describing.
func encodeHash(params PasswordParams, salt, hash []byte) string {
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		params.Memory, params.Time, params.Threads,
		b64(salt), b64(hash))
}

func decodeHash(encoded string) (PasswordParams, []byte, []byte, error) {
	var params PasswordParams
	var memory, timeCost uint32
	var threads uint8
	var saltB64, hashB64 string

	n, err := fmt.Sscanf(encoded, "$argon2id$v=19$m=%d,t=%d,p=%d$%s", &memory, &timeCost, &threads, &saltB64)
	if err != nil || n != 4 {
		return params, nil, nil, errors.New("malformed argon2id hash")
	}

	// Sscanf with %s greedily consumes through the trailing $hash too;
	// split it back out.
	parts := splitLast(saltB64, '$')
	if len(parts) != 2 {
		return params, nil, nil, errors.New("malformed argon2id hash: missing hash segment")
	}
	saltB64, hashB64 = parts[0], parts[1]

	salt, err := decodeB64(saltB64)
	if err != nil {
		return params, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	hash, err := decodeB64(hashB64)
	if err != nil {
		return params, nil, nil, fmt.Errorf("decode hash: %w", err)
	}

	params = PasswordParams{
		Time:    timeCost,
		Memory:  memory,
		Threads: threads,
		KeyLen:  uint32(len(hash)),
	}
	return params, salt, hash, nil
}

func splitLast(s string, sep byte) []string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}
