// Package migration implements the MigrationCoordinator (spec.md §4.8):
// it records each round's elected future host, authenticates
// HOST_ANNOUNCEMENT against that record (or the session initiator when
// no election has happened yet), and tracks HOST_LOST reports toward
// quorum without ever triggering a second election — a fresh election
// only ever happens on the next scheduled ring tick.
package migration

import (
	"errors"
	"sync"

	"github.com/ethan/acip-discovery/pkg/session"
	"github.com/ethan/acip-discovery/pkg/wire"
)

var (
	// ErrUnauthorizedHost is returned when a HOST_ANNOUNCEMENT claims an
	// id that is neither the recorded future host nor the session
	// initiator.
	ErrUnauthorizedHost = errors.New("migration: announcer is not the authorized host")
	// ErrUnknownParticipant is returned when the announced host id has
	// no corresponding participant in the session.
	ErrUnknownParticipant = errors.New("migration: host id is not a participant")
	// ErrIdentityMismatch is returned when the connection's learned
	// identity pubkey does not match the announced host's on file.
	ErrIdentityMismatch = errors.New("migration: announcer identity does not match participant record")
)

// lostTracker accumulates distinct HOST_LOST reporters for one
// (session, last host) pair until quorum is reached.
type lostTracker struct {
	lastHostID wire.ID
	reporters  map[wire.ID]struct{}
}

// Coordinator is the stateful half of MigrationCoordinator: the parts
// that can't live on session.Session itself because they track
// cross-round bookkeeping (HOST_LOST quorum) rather than per-session
// snapshot state.
type Coordinator struct {
	mu   sync.Mutex
	lost map[wire.ID]*lostTracker // sessionID -> tracker
}

// NewCoordinator builds an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{lost: make(map[wire.ID]*lostTracker)}
}

// RecordElection stores a round's election result on the session
// (spec.md §4.7 step 3, §4.8 "Records FUTURE_HOST_ELECTED"), promoting
// HostInitiatorOnly to HostFutureHostKnown the first time an election
// completes, and returns the payload to rebroadcast to every
// participant.
func RecordElection(sess *session.Session, futureHostID wire.ID, roundNumber uint64) *wire.FutureHostElected {
	if sess.Ring == nil {
		sess.Ring = &session.RingState{}
	}
	sess.Ring.FutureHostID = futureHostID
	sess.Ring.RoundNumber = roundNumber

	if sess.HostState == session.HostInitiatorOnly {
		sess.HostState = session.HostFutureHostKnown
	}

	return &wire.FutureHostElected{
		SessionID:    sess.ID,
		FutureHostID: futureHostID,
		RoundNumber:  roundNumber,
	}
}

// AcceptAnnouncement authenticates a HOST_ANNOUNCEMENT against the
// recorded future host (or, when no election has run yet, the session
// initiator), and on success installs it as the active host (spec.md
// §4.8). It returns the HOST_DESIGNATED payload to broadcast.
func AcceptAnnouncement(sess *session.Session, ann *wire.HostAnnouncement, announcerIdentity wire.PubKey) (*wire.HostDesignated, error) {
	authorized := sess.InitiatorID
	if sess.Ring != nil && sess.Ring.FutureHostID != (wire.ID{}) {
		authorized = sess.Ring.FutureHostID
	}
	if ann.HostID != authorized {
		return nil, ErrUnauthorizedHost
	}

	participant, ok := sess.Participants[ann.HostID]
	if !ok {
		return nil, ErrUnknownParticipant
	}
	if participant.IdentityPub != announcerIdentity {
		return nil, ErrIdentityMismatch
	}

	sess.HostID = ann.HostID
	sess.HostState = session.HostActive
	if ann.ConnType == wire.SessionTypeDirectTCP {
		sess.ServerAddress = ann.Address
		sess.ServerPort = ann.Port
	}

	designated := *ann
	return &designated, nil
}

// RecordHostLost tracks one HOST_LOST report toward quorum for the
// announced last host; it never triggers a fresh election (spec.md
// §4.8), only marking the session terminal once a majority of the
// session's live participants have reported the same host lost.
// Reports naming a different last host than the one currently tracked
// restart tracking, since the host must have changed in the interim.
func (c *Coordinator) RecordHostLost(sess *session.Session, lost *wire.HostLost) (quorum bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.lost[sess.ID]
	if !ok || t.lastHostID != lost.LastHostID {
		t = &lostTracker{lastHostID: lost.LastHostID, reporters: make(map[wire.ID]struct{})}
		c.lost[sess.ID] = t
	}
	t.reporters[lost.ReporterID] = struct{}{}

	live := sess.CurrentParticipants()
	if live == 0 {
		return false
	}
	if len(t.reporters) > live/2 {
		sess.HostState = session.HostTerminal
		return true
	}
	return false
}

// Forget discards any HOST_LOST tracking state for a session, to be
// called once the session ends or is swept so the Coordinator's memory
// does not grow unbounded.
func (c *Coordinator) Forget(sessionID wire.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lost, sessionID)
}
