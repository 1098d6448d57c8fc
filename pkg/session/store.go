package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethan/acip-discovery/pkg/auth"
	"github.com/ethan/acip-discovery/pkg/dispatch"
	"github.com/ethan/acip-discovery/pkg/wire"
)

const (
	maxStringGenerationAttempts = 8
	sessionTTL                  = 24 * time.Hour
)

// CreateCandidate carries every client-supplied field SESSION_CREATE needs
// to produce a Session (spec.md §3, §4.5).
type CreateCandidate struct {
	HostPubKey          wire.PubKey
	Capabilities        uint8
	MaxParticipants     uint8
	SessionType         wire.SessionType
	ExposeIP            bool
	RequireServerVerify bool
	RequireClientVerify bool
	Password            string // cleartext; empty means no password
	ServerAddress       string // DIRECT_TCP only
	ServerPort          uint16
	ReservedString      string // empty means server should generate one
}

// entry wraps a Session with the single per-session lock the concurrency
// model requires (spec.md §5 discipline (a): "index before session").
type entry struct {
	mu      sync.Mutex
	session *Session
}

// Store is the exclusive owner of every live Session (spec.md §3
// Ownership, §4.5). All operations are internally serialized per-session;
// cross-session operations (index insert/remove) take only the index
// lock.
type Store struct {
	indexMu  sync.RWMutex
	byID     map[wire.ID]*entry
	byString map[string]*entry

	passwordParams auth.PasswordParams
	verifyCeiling  time.Duration
	replayWindow   time.Duration
	skewAllowance  time.Duration
}

// NewStore builds an empty Store using the given Argon2id cost parameters
// and timestamp-validation windows.
func NewStore(passwordParams auth.PasswordParams, verifyCeiling, replayWindow, skewAllowance time.Duration) *Store {
	return &Store{
		byID:           make(map[wire.ID]*entry),
		byString:       make(map[string]*entry),
		passwordParams: passwordParams,
		verifyCeiling:  verifyCeiling,
		replayWindow:   replayWindow,
		skewAllowance:  skewAllowance,
	}
}

// Create validates candidate and, on success, installs a new Session in
// both indexes (spec.md §4.5 creation policy).
func (s *Store) Create(candidate CreateCandidate, now time.Time) (*Session, error) {
	if err := dispatch.ValidateCapabilities(candidate.Capabilities); err != nil {
		return nil, fmt.Errorf("%w: reserved capability bits set", ErrInvalidParam)
	}
	if err := dispatch.ValidateParticipantCount(candidate.MaxParticipants); err != nil {
		return nil, fmt.Errorf("%w: max_participants out of range", ErrInvalidParam)
	}
	if candidate.SessionType == wire.SessionTypeDirectTCP {
		if candidate.ServerAddress == "" || candidate.ServerPort == 0 {
			return nil, fmt.Errorf("%w: direct_tcp session requires address and port", ErrInvalidParam)
		}
	}

	sessionString, err := s.reserveString(candidate.ReservedString)
	if err != nil {
		return nil, err
	}

	var passwordHash string
	if candidate.Password != "" {
		passwordHash, err = auth.HashPassword(candidate.Password, s.passwordParams)
		if err != nil {
			return nil, fmt.Errorf("hash session password: %w", err)
		}
	}

	id, err := newRandomID()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:                  id,
		SessionString:       sessionString,
		HostPubKey:          candidate.HostPubKey,
		Capabilities:        candidate.Capabilities,
		MaxParticipants:     candidate.MaxParticipants,
		SessionType:         candidate.SessionType,
		HasPassword:         candidate.Password != "",
		PasswordHash:        passwordHash,
		ExposeIP:            candidate.ExposeIP,
		ServerAddress:       candidate.ServerAddress,
		ServerPort:          candidate.ServerPort,
		CreatedAt:           now,
		ExpiresAt:           now.Add(sessionTTL),
		RequireServerVerify: candidate.RequireServerVerify,
		RequireClientVerify: candidate.RequireClientVerify,
		Participants:        make(map[wire.ID]*Participant),
		HostState:           HostInitiatorOnly,
	}

	e := &entry{session: sess}

	s.indexMu.Lock()
	s.byID[id] = e
	s.byString[sessionString] = e
	s.indexMu.Unlock()

	return sess, nil
}

// reserveString uses the client-supplied string verbatim if present,
// otherwise generates and reserves a fresh phrase, retrying on collision
// up to maxStringGenerationAttempts.
func (s *Store) reserveString(requested string) (string, error) {
	if requested != "" {
		if len(requested) > wire.MaxSessionStringLen {
			return "", fmt.Errorf("%w: reserved string too long", ErrInvalidParam)
		}
		s.indexMu.RLock()
		_, taken := s.byString[requested]
		s.indexMu.RUnlock()
		if taken {
			return "", ErrStringTaken
		}
		return requested, nil
	}

	for i := 0; i < maxStringGenerationAttempts; i++ {
		candidate, err := generateSessionString()
		if err != nil {
			return "", err
		}
		s.indexMu.RLock()
		_, taken := s.byString[candidate]
		s.indexMu.RUnlock()
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrStringTaken
}

// LookupByString returns the Session for a reserved string, without
// taking its per-session lock (callers that need a consistent read
// should call WithSession instead).
func (s *Store) LookupByString(sessionString string) (*Session, bool) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	e, ok := s.byString[sessionString]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// LookupByID returns the Session for a session_id.
func (s *Store) LookupByID(id wire.ID) (*Session, bool) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// WithSession runs fn while holding the named session's lock, giving
// callers a serialization point without exposing the lock itself
// (spec.md §5 "handlers MUST NOT hold any session lock across a network
// send" — fn must return before any send).
func (s *Store) WithSession(id wire.ID, fn func(*Session) error) error {
	s.indexMu.RLock()
	e, ok := s.byID[id]
	s.indexMu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// JoinOutcome is returned on a successful Join.
type JoinOutcome struct {
	ParticipantID       wire.ID
	ServerAddress       string
	ServerPort          uint16
	SessionType         wire.SessionType
	CurrentParticipants uint8
	MaxParticipants     uint8
	SessionID           wire.ID
}

// Join runs the full join policy from spec.md §4.5 in order, returning a
// distinct sentinel error for each failing step.
func (s *Store) Join(sessionString string, participantPub wire.PubKey, timestamp int64, sig wire.Signature, password string, now time.Time) (*JoinOutcome, error) {
	sess, ok := s.LookupByString(sessionString)
	if !ok {
		return nil, ErrSessionNotFound
	}

	if err := auth.VerifyJoin(participantPub, sessionString, timestamp, sig); err != nil {
		return nil, ErrInvalidSignature
	}
	if err := auth.ValidateTimestamp(timestamp, now, s.replayWindow, s.skewAllowance); err != nil {
		return nil, ErrInvalidSignature
	}

	var outcome *JoinOutcome
	err := s.WithSession(sess.ID, func(sess *Session) error {
		if sess.CurrentParticipants() >= int(sess.MaxParticipants) {
			return ErrSessionFull
		}

		if sess.HasPassword {
			if err := auth.VerifyPassword(sess.PasswordHash, password, s.verifyCeiling); err != nil {
				return ErrInvalidPassword
			}
		}

		participantID, err := newUniqueParticipantID(sess)
		if err != nil {
			return err
		}

		sess.Participants[participantID] = &Participant{
			ParticipantID: participantID,
			IdentityPub:   participantPub,
			LastSeen:      now,
			Role:          wire.RoleMember,
			JoinedAt:      now,
		}

		outcome = &JoinOutcome{
			ParticipantID:       participantID,
			ServerAddress:       sess.ServerAddress,
			ServerPort:          sess.ServerPort,
			SessionType:         sess.SessionType,
			CurrentParticipants: uint8(sess.CurrentParticipants()),
			MaxParticipants:     sess.MaxParticipants,
			SessionID:           sess.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Leave marks a participant disconnected (graceful LEAVE, EOF, or TTL).
// Participants stay in the map so a later RECONNECT can find them again
// (spec.md §3 Lifecycles). Nothing in the Store removes a disconnected
// participant afterwards; it stays until the whole session is removed.
func (s *Store) Leave(id wire.ID, participantID wire.ID) (wasHost bool, err error) {
	err = s.WithSession(id, func(sess *Session) error {
		p, ok := sess.Participants[participantID]
		if !ok {
			return ErrSessionNotFound
		}
		p.Disconnected = true
		wasHost = sess.HostID == participantID
		return nil
	})
	return wasHost, err
}

// End verifies sig against the session's host key and, on success,
// removes the session from both indexes.
func (s *Store) End(id wire.ID, sig wire.Signature) error {
	var hostPub wire.PubKey
	err := s.WithSession(id, func(sess *Session) error {
		hostPub = sess.HostPubKey
		if err := auth.VerifyEnd(hostPub, id, sig); err != nil {
			return ErrNotHost
		}
		sess.HostState = HostTerminal
		return nil
	})
	if err != nil {
		return err
	}

	s.remove(id)
	return nil
}

// Reconnect re-verifies a previously-joined participant's identity and
// clears their disconnected flag.
func (s *Store) Reconnect(id wire.ID, participantID wire.ID, timestamp int64, sig wire.Signature, now time.Time) error {
	return s.WithSession(id, func(sess *Session) error {
		p, ok := sess.Participants[participantID]
		if !ok {
			return ErrSessionNotFound
		}
		if err := auth.VerifyReconnect(p.IdentityPub, id, participantID, sig); err != nil {
			return ErrInvalidSignature
		}
		if err := auth.ValidateTimestamp(timestamp, now, s.replayWindow, s.skewAllowance); err != nil {
			return ErrInvalidSignature
		}
		p.Disconnected = false
		p.LastSeen = now
		return nil
	})
}

// remove deletes a session from both indexes. Connections holding a
// weak (by-id) reference simply fail their next LookupByID.
func (s *Store) remove(id wire.ID) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byString, e.session.SessionString)
}

// SweepExpired evicts every session whose expires_at has passed as of
// now, returning their IDs so the runtime can notify open connections
// (spec.md §4.5 Expiry).
func (s *Store) SweepExpired(now time.Time) []wire.ID {
	s.indexMu.RLock()
	var expired []wire.ID
	for id, e := range s.byID {
		if e.session.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.indexMu.RUnlock()

	for _, id := range expired {
		s.remove(id)
	}
	return expired
}

// AllSessionIDs returns a snapshot of every live session id, used by the
// runtime's ring scheduler to find sessions due for a round.
func (s *Store) AllSessionIDs() []wire.ID {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	ids := make([]wire.ID, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	return ids
}

// newRandomID mints an opaque session id. wire.ID is 16 bytes, the same
// width as a UUID, so the "opaque UUID-shaped byte string" ids spec.md §3
// calls for are literal UUIDs rather than an arbitrary random draw.
func newRandomID() (wire.ID, error) {
	var id wire.ID
	u := uuid.New()
	copy(id[:], u[:])
	return id, nil
}

func newUniqueParticipantID(sess *Session) (wire.ID, error) {
	for i := 0; i < maxStringGenerationAttempts; i++ {
		var id wire.ID
		u := uuid.New()
		copy(id[:], u[:])
		if _, exists := sess.Participants[id]; !exists {
			return id, nil
		}
	}
	return wire.ID{}, fmt.Errorf("session: exhausted participant id generation attempts")
}
