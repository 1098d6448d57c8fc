// Package ring implements the deterministic ring-ordering and
// score-based future-host election described in spec.md §4.7. It holds
// no network state of its own: every function here is a pure
// computation over a ring of participant ids and their NAT quality
// reports, leaving the actual RING_COLLECT baton-passing and
// FUTURE_HOST_ELECTED broadcast to the caller (pkg/runtime).
package ring

import (
	"bytes"
	"sort"
	"time"

	"github.com/ethan/acip-discovery/pkg/session"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// Period is RING_TICK from spec.md §6: the interval between successive
// election rounds for a session.
const Period = 5 * time.Minute

// RoundDeadline is the per-round collection deadline: one-half the
// period (spec.md §4.7 step 3).
const RoundDeadline = Period / 2

// ComputeOrder returns the deterministic ring order for a set of
// participant ids: ascending sort by raw id bytes (spec.md §4.7 step 1,
// §3 "Ring state"). The input is not mutated.
func ComputeOrder(ids []wire.ID) []wire.ID {
	order := make([]wire.ID, len(ids))
	copy(order, ids)
	sort.Slice(order, func(i, j int) bool {
		return bytes.Compare(order[i][:], order[j][:]) < 0
	})
	return order
}

// LiveParticipantIDs extracts the non-disconnected participant ids of a
// session, in map iteration order (callers must run it through
// ComputeOrder for a deterministic ring).
func LiveParticipantIDs(participants map[wire.ID]*session.Participant) []wire.ID {
	ids := make([]wire.ID, 0, len(participants))
	for id, p := range participants {
		if !p.Disconnected {
			ids = append(ids, id)
		}
	}
	return ids
}

// QuorumLeader returns the last id in a computed ring order — the
// participant who runs the election for the round (spec.md §4.7 step
// 1, §6 "Quorum leader").
func QuorumLeader(order []wire.ID) wire.ID {
	if len(order) == 0 {
		return wire.ID{}
	}
	return order[len(order)-1]
}

// StartRound begins a fresh election round on sess: it recomputes the
// ring from the session's current live participants, advances
// RoundNumber, and resets the per-round report collection. It returns
// false if the session has fewer than two live participants, since
// spec.md §4.7 only runs elections "for each session with ≥ 2
// participants".
func StartRound(sess *session.Session, now time.Time) bool {
	live := LiveParticipantIDs(sess.Participants)
	if len(live) < 2 {
		return false
	}

	order := ComputeOrder(live)
	prevRound := uint64(0)
	if sess.Ring != nil {
		prevRound = sess.Ring.RoundNumber
	}

	sess.Ring = &session.RingState{
		RoundNumber:    prevRound + 1,
		Order:          order,
		CollectorIndex: 0,
		Reports:        make(map[wire.ID]session.NATQuality),
		QuorumLeader:   QuorumLeader(order),
		RoundStartedAt: now,
	}
	return true
}

// NextCollect returns the next RING_COLLECT edge to walk for sess's
// current round: From is the ring position that just reported (or the
// quorum leader, kicking off the round), To is the next position that
// has not yet reported. ok is false once every live position has a
// report for the round.
func NextCollect(ring *session.RingState) (collect wire.RingCollect, ok bool) {
	n := len(ring.Order)
	if n == 0 {
		return wire.RingCollect{}, false
	}

	for i := 0; i < n; i++ {
		idx := (ring.CollectorIndex + i) % n
		to := ring.Order[idx]
		if _, reported := ring.Reports[to]; reported {
			continue
		}
		from := ring.QuorumLeader
		if idx > 0 {
			from = ring.Order[idx-1]
		}
		return wire.RingCollect{
			From:        from,
			To:          to,
			RoundNumber: ring.RoundNumber,
		}, true
	}
	return wire.RingCollect{}, false
}

// RecordReport stores a NETWORK_QUALITY report into the round's
// collection. A report for a round older than the session's current
// round is stale and answered from the current round's data instead
// (spec.md §4.7 step 2) — the caller is expected to check
// report.RoundNumber against ring.RoundNumber itself and handle the
// stale case before calling RecordReport.
func RecordReport(ring *session.RingState, participantID wire.ID, q session.NATQuality) {
	ring.Reports[participantID] = q
	advanceCollector(ring)
}

func advanceCollector(ring *session.RingState) {
	for ring.CollectorIndex < len(ring.Order) {
		if _, reported := ring.Reports[ring.Order[ring.CollectorIndex]]; !reported {
			return
		}
		ring.CollectorIndex++
	}
}

// Collected reports whether every live position in the ring has
// reported this round.
func Collected(ring *session.RingState) bool {
	return len(ring.Reports) >= len(ring.Order)
}

// DeadlinePassed reports whether the round's per-round deadline
// (RoundDeadline after it started) has elapsed as of now.
func DeadlinePassed(ring *session.RingState, now time.Time) bool {
	return now.Sub(ring.RoundStartedAt) >= RoundDeadline
}

// ParticipantSetChanged reports whether the live participant set no
// longer matches the ring this round was computed for — the trigger
// for aborting and restarting at the next tick (spec.md §4.7 "Edge
// cases").
func ParticipantSetChanged(ring *session.RingState, participants map[wire.ID]*session.Participant) bool {
	live := LiveParticipantIDs(participants)
	if len(live) != len(ring.Order) {
		return true
	}
	current := make(map[wire.ID]struct{}, len(ring.Order))
	for _, id := range ring.Order {
		current[id] = struct{}{}
	}
	for _, id := range live {
		if _, ok := current[id]; !ok {
			return true
		}
	}
	return false
}

// Elect runs the scoring function over every report collected this
// round and returns the future host (spec.md §4.7 "Scoring function").
// A participant that never responded is skipped, matching the "If a
// participant never responds within the round, it is skipped this
// round" edge case. ok is false if nobody reported.
func Elect(reports map[wire.ID]session.NATQuality) (wire.ID, bool) {
	var primary, fallback []wire.ID
	for id, q := range reports {
		if q.StunNATType == wire.NATSymmetric && q.ICECandidateTypes&wire.ICECandidateRelay == 0 {
			fallback = append(fallback, id)
			continue
		}
		primary = append(primary, id)
	}

	pool := primary
	if len(pool) == 0 {
		pool = fallback
	}
	if len(pool) == 0 {
		return wire.ID{}, false
	}

	best := pool[0]
	for _, id := range pool[1:] {
		if better(reports[id], id, reports[best], best) {
			best = id
		}
	}
	return best, true
}

// better reports whether candidate a outranks candidate b under
// spec.md §4.7's scoring function: has_public_ip, then stun_nat_type
// nearest OPEN, then upload_kbps descending, then rtt_to_acds_ms
// ascending, then packet_loss_pct ascending, then bytewise-smallest
// participant_id as the final deterministic tie-break.
func better(a session.NATQuality, aID wire.ID, b session.NATQuality, bID wire.ID) bool {
	if a.HasPublicIP != b.HasPublicIP {
		return a.HasPublicIP
	}
	if a.StunNATType != b.StunNATType {
		return a.StunNATType < b.StunNATType
	}
	if a.UploadKbps != b.UploadKbps {
		return a.UploadKbps > b.UploadKbps
	}
	if a.RTTToACDSMs != b.RTTToACDSMs {
		return a.RTTToACDSMs < b.RTTToACDSMs
	}
	if a.PacketLossPct != b.PacketLossPct {
		return a.PacketLossPct < b.PacketLossPct
	}
	return bytes.Compare(aID[:], bID[:]) < 0
}
