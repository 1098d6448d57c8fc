// Package session implements the SessionStore: the authoritative,
// in-memory owner of every live discovery session, its participants, and
// its ring-election state (spec.md §3, §4.5).
package session

import (
	"time"

	"github.com/ethan/acip-discovery/pkg/wire"
)

// Role mirrors wire.Role for in-memory participant bookkeeping.
type Role = wire.Role

// NATQuality is the in-memory form of a participant's most recent
// NETWORK_QUALITY report (spec.md §3).
type NATQuality struct {
	HasPublicIP       bool
	UPnPAvailable     bool
	UPnPMappedPort    uint16
	StunNATType       wire.StunNATType
	LANReachable      bool
	StunLatencyMs     uint32
	UploadKbps        uint32
	DownloadKbps      uint32
	RTTToACDSMs       uint32
	JitterMs          uint8
	PacketLossPct     uint8
	PublicAddress     string
	PublicPort        uint16
	ICECandidateTypes uint8
	ReportedAt        time.Time
}

// Participant is one member of a session.
type Participant struct {
	ParticipantID wire.ID
	IdentityPub   wire.PubKey
	LastSeen      time.Time
	Role          Role
	NAT           *NATQuality // nil until a NETWORK_QUALITY report arrives
	RingPosition  int
	Disconnected  bool
	JoinedAt      time.Time
}

// Session is an entity carrying every field spec.md §3 names. Mutation
// goes exclusively through Store methods so the one-lock-per-session
// discipline holds; callers never touch session fields directly across a
// goroutine boundary.
type Session struct {
	ID              wire.ID
	SessionString   string
	HostPubKey      wire.PubKey
	Capabilities    uint8
	MaxParticipants uint8
	SessionType     wire.SessionType
	HasPassword     bool
	PasswordHash    string // empty iff HasPassword is false
	ExposeIP        bool

	ServerAddress string // DIRECT_TCP only
	ServerPort    uint16

	CreatedAt           time.Time
	ExpiresAt           time.Time
	RequireServerVerify bool
	RequireClientVerify bool

	Participants map[wire.ID]*Participant

	InitiatorID wire.ID
	HostID      wire.ID // zero ID until a host is designated
	HostState   HostState

	Ring *RingState // nil until first ring initialization
}

// HostState is the host-migration state machine from spec.md §4.8.
type HostState uint8

const (
	HostInitial HostState = iota
	HostInitiatorOnly
	HostFutureHostKnown
	HostActive
	HostTerminal
)

// RingState is the per-session, per-round election bookkeeping owned by
// the session it belongs to (spec.md §3, §4.7).
type RingState struct {
	RoundNumber    uint64
	Order          []wire.ID // sorted ascending by participant_id bytes
	CollectorIndex int
	Reports        map[wire.ID]NATQuality
	QuorumLeader   wire.ID
	FutureHostID   wire.ID
	RoundStartedAt time.Time
}

// CurrentParticipants returns the live (non-disconnected) participant
// count, the value SESSION_INFO/SESSION_JOINED report.
func (s *Session) CurrentParticipants() int {
	n := 0
	for _, p := range s.Participants {
		if !p.Disconnected {
			n++
		}
	}
	return n
}

// Expired reports whether the session's TTL has passed as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
