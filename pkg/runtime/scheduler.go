package runtime

import (
	"time"

	"github.com/ethan/acip-discovery/pkg/migration"
	"github.com/ethan/acip-discovery/pkg/ring"
	"github.com/ethan/acip-discovery/pkg/session"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// RunScheduler drives TTL expiry, per-session ring-round advancement,
// idle-connection reaping, and rate-limiter sweeping on a single tick
// (spec.md §4.9). It blocks until Stop is called.
func (s *ServerRuntime) RunScheduler() {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.deps.Config.SchedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *ServerRuntime) tick(now time.Time) {
	s.sweepExpiredSessions(now)
	s.advanceRings(now)
	s.sweepIdleConnections(now)
	s.deps.Limiter.Sweep(s.deps.Config.IdleTimeout)
}

// sweepExpiredSessions evicts sessions whose TTL has passed and forgets
// any HOST_LOST tracking the migration Coordinator held for them
// (spec.md §4.5 Expiry).
func (s *ServerRuntime) sweepExpiredSessions(now time.Time) {
	for _, id := range s.deps.Store.SweepExpired(now) {
		s.deps.Log.DebugSession("session expired", "session", id)
		s.deps.Coordinator.Forget(id)
	}
}

// sweepIdleConnections closes any connection that has not completed a
// frame in longer than the configured idle timeout (spec.md §5).
func (s *ServerRuntime) sweepIdleConnections(now time.Time) {
	for _, conn := range s.snapshotConnections() {
		if conn.IdleFor(now) >= s.deps.Config.IdleTimeout {
			s.deps.Log.DebugRuntime("idle timeout, closing connection", "remote", conn.RemoteAddr())
			s.onDisconnect(conn)
			conn.Close()
		}
	}
}

// advanceRings runs one scheduler tick's worth of ring-consensus
// bookkeeping for every live session (spec.md §4.7).
func (s *ServerRuntime) advanceRings(now time.Time) {
	for _, id := range s.deps.Store.AllSessionIDs() {
		_ = s.deps.Store.WithSession(id, func(sess *session.Session) error {
			s.advanceSessionRing(sess, now)
			return nil
		})
	}
}

func (s *ServerRuntime) advanceSessionRing(sess *session.Session, now time.Time) {
	if sess.Ring == nil || now.Sub(sess.Ring.RoundStartedAt) >= s.deps.Config.RingTick {
		if !ring.StartRound(sess, now) {
			return
		}
		s.deps.Log.DebugRing("ring round started", "session", sess.ID, "round", sess.Ring.RoundNumber)
		s.sendNextCollect(sess)
		return
	}

	if ring.ParticipantSetChanged(sess.Ring, sess.Participants) {
		s.deps.Log.DebugRing("participant set changed mid-round, aborting round", "session", sess.ID)
		sess.Ring = nil
		return
	}

	if ring.Collected(sess.Ring) {
		s.finishElection(sess)
		return
	}

	if now.Sub(sess.Ring.RoundStartedAt) >= s.deps.Config.RingRoundDeadline {
		s.deps.Log.DebugRing("round deadline passed, electing on partial reports", "session", sess.ID, "reports", len(sess.Ring.Reports))
		s.finishElection(sess)
	}
}

// sendNextCollect emits the next RING_COLLECT hop, if any remain.
func (s *ServerRuntime) sendNextCollect(sess *session.Session) {
	collect, ok := ring.NextCollect(sess.Ring)
	if !ok {
		return
	}
	if err := s.reg.SendToParticipant(sess.ID, collect.To, wire.TypeRingCollect, collect.Encode()); err != nil {
		s.deps.Log.DebugRing("RING_COLLECT recipient not connected", "session", sess.ID, "to", collect.To, "err", err)
	}
}

// finishElection scores whatever NETWORK_QUALITY reports arrived this
// round (full or partial) and records + broadcasts the result. A round
// with no usable reports is simply abandoned for the next scheduled tick
// (spec.md §4.7, §4.8: a fresh election never happens outside a
// scheduled round).
func (s *ServerRuntime) finishElection(sess *session.Session) {
	winner, ok := ring.Elect(sess.Ring.Reports)
	if !ok {
		sess.Ring = nil
		return
	}

	msg := migration.RecordElection(sess, winner, sess.Ring.RoundNumber)
	s.deps.Log.DebugMigration("future host elected", "session", sess.ID, "future_host", winner)
	s.reg.Broadcast(sess.ID, wire.ID{}, wire.TypeFutureHostElected, msg.Encode())
	sess.Ring = nil
}
