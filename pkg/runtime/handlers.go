package runtime

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/ethan/acip-discovery/pkg/auth"
	"github.com/ethan/acip-discovery/pkg/config"
	"github.com/ethan/acip-discovery/pkg/dispatch"
	"github.com/ethan/acip-discovery/pkg/migration"
	"github.com/ethan/acip-discovery/pkg/relay"
	"github.com/ethan/acip-discovery/pkg/ring"
	"github.com/ethan/acip-discovery/pkg/secure"
	"github.com/ethan/acip-discovery/pkg/session"
	"github.com/ethan/acip-discovery/pkg/wire"
)

// buildDispatchTable registers every handler named in spec.md §6 against
// the type table s will use to route decoded frames (spec.md §4.3, §4.9).
func buildDispatchTable(s *ServerRuntime) *dispatch.Table {
	tbl := dispatch.NewTable(24)

	tbl.Register(wire.TypeSessionCreate, s.handleSessionCreate)
	tbl.Register(wire.TypeSessionLookup, s.handleSessionLookup)
	tbl.Register(wire.TypeSessionJoin, s.handleSessionJoin)
	tbl.Register(wire.TypeSessionLeave, s.handleSessionLeave)
	tbl.Register(wire.TypeSessionEnd, s.handleSessionEnd)
	tbl.Register(wire.TypeSessionReconnect, s.handleSessionReconnect)
	tbl.Register(wire.TypeWebRTCSDP, s.handleRelaySignal(wire.TypeWebRTCSDP))
	tbl.Register(wire.TypeWebRTCICE, s.handleRelaySignal(wire.TypeWebRTCICE))
	tbl.Register(wire.TypeParticipantList, s.handleParticipantList)
	tbl.Register(wire.TypeNetworkQuality, s.handleNetworkQuality)
	tbl.Register(wire.TypeHostAnnouncement, s.handleHostAnnouncement)
	tbl.Register(wire.TypeHostLost, s.handleHostLost)
	tbl.Register(wire.TypeHandshakeHello, s.handleHandshakeHello)
	tbl.Register(wire.TypeRekeyRequest, s.handleRekeyRequest)
	tbl.Register(wire.TypeRekeyResponse, s.handleRekeyResponse)
	tbl.Register(wire.TypeRekeyComplete, s.handleRekeyComplete)

	return tbl
}

// stringAddr adapts the string pkg/dispatch.Context.RemoteAddr returns
// (transport-agnostic, so it works for a future WebSocket listener too)
// to the net.Addr pkg/auth.FailureLimiter expects.
type stringAddr string

func (a stringAddr) Network() string { return "tcp" }
func (a stringAddr) String() string  { return string(a) }

// authFailureCode consumes one failed-auth token for the connection's
// source address and escalates to ErrRateLimited once its budget is
// exhausted, in place of the specific failure code (spec.md §4.4: failed
// auth attempts are rate-limited per source address).
func (s *ServerRuntime) authFailureCode(ctx dispatch.Context, code wire.ErrorCode) wire.ErrorCode {
	if !s.deps.Limiter.Allow(stringAddr(ctx.RemoteAddr())) {
		return wire.ErrRateLimited
	}
	return code
}

// deriveInitiatorID assigns a stable 16-byte id to a session's creator,
// the one participant who exists before any SESSION_JOIN (spec.md §3:
// ids are "opaque UUID-shaped byte strings", not necessarily generated
// the same way as joiners' random ids).
func deriveInitiatorID(pub wire.PubKey) wire.ID {
	h := sha256.Sum256(pub[:])
	var id wire.ID
	copy(id[:], h[:16])
	return id
}

func (s *ServerRuntime) handleSessionCreate(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeSessionCreate(payload)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := auth.VerifyCreate(req.HostPubKey, req.Timestamp, req.Capabilities, req.MaxParticipants, req.Signature); err != nil {
		return s.replyCreateFailure(ctx, s.authFailureCode(ctx, wire.ErrInvalidSignature))
	}
	if err := auth.ValidateTimestamp(req.Timestamp, now, s.deps.Config.ReplayWindow, s.deps.Config.SkewAllowance); err != nil {
		return s.replyCreateFailure(ctx, s.authFailureCode(ctx, wire.ErrInvalidSignature))
	}

	sess, err := s.deps.Store.Create(session.CreateCandidate{
		HostPubKey:          req.HostPubKey,
		Capabilities:        req.Capabilities,
		MaxParticipants:     req.MaxParticipants,
		SessionType:         req.SessionType,
		ExposeIP:            req.ExposeIP,
		RequireServerVerify: req.RequireServerVerify,
		RequireClientVerify: req.RequireClientVerify,
		Password:            req.Password,
		ServerAddress:       req.ServerAddress,
		ServerPort:          req.ServerPort,
		ReservedString:      req.ReservedString,
	}, now)
	if err != nil {
		return s.replyCreateFailure(ctx, createErrorCode(err))
	}

	initiatorID := deriveInitiatorID(req.HostPubKey)
	_ = s.deps.Store.WithSession(sess.ID, func(sess *session.Session) error {
		sess.InitiatorID = initiatorID
		sess.Participants[initiatorID] = &session.Participant{
			ParticipantID: initiatorID,
			IdentityPub:   req.HostPubKey,
			LastSeen:      now,
			Role:          wire.RoleInitiator,
			JoinedAt:      now,
		}
		return nil
	})

	if c, ok := ctx.(*connContext); ok {
		c.conn.Bind(sess.ID, initiatorID)
		s.reg.Associate(sess.ID, initiatorID, c.conn)
	}

	resp := &wire.SessionCreated{
		Success:       true,
		SessionID:     sess.ID,
		SessionString: sess.SessionString,
		CreatedAt:     sess.CreatedAt.UnixMilli(),
		ExpiresAt:     sess.ExpiresAt.UnixMilli(),
		ICEServers:    iceServerHints(s.deps.Config.ICEServers, sess.SessionType),
	}
	s.deps.Log.DebugSession("session created", "session", sess.ID, "type", sess.SessionType)
	return ctx.Send(wire.TypeSessionCreated, resp.Encode())
}

func iceServerHints(hints []config.ICEServerHint, sessionType wire.SessionType) []wire.ICEServer {
	if sessionType != wire.SessionTypeWebRTC {
		return nil
	}
	out := make([]wire.ICEServer, 0, len(hints))
	for _, h := range hints {
		out = append(out, wire.ICEServer{URLs: h.URLs, Username: h.Username, Credential: h.Credential})
	}
	return out
}

func (s *ServerRuntime) replyCreateFailure(ctx dispatch.Context, code wire.ErrorCode) error {
	resp := &wire.SessionCreated{Success: false, ErrorCode: code}
	return ctx.Send(wire.TypeSessionCreated, resp.Encode())
}

func createErrorCode(err error) wire.ErrorCode {
	switch {
	case errors.Is(err, session.ErrStringTaken):
		return wire.ErrStringTaken
	case errors.Is(err, session.ErrInvalidParam):
		return wire.ErrStringInvalid
	default:
		return wire.ErrInternal
	}
}

func (s *ServerRuntime) handleSessionLookup(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeSessionLookup(payload)
	if err != nil {
		return err
	}

	sess, ok := s.deps.Store.LookupByString(req.SessionString)
	if !ok {
		return ctx.Send(wire.TypeSessionInfo, (&wire.SessionInfo{Found: false}).Encode())
	}

	resp := &wire.SessionInfo{
		Found:               true,
		HostPubKey:          sess.HostPubKey,
		Capabilities:        sess.Capabilities,
		MaxParticipants:     sess.MaxParticipants,
		CurrentParticipants: uint8(sess.CurrentParticipants()),
		SessionType:         sess.SessionType,
		HasPassword:         sess.HasPassword,
	}
	return ctx.Send(wire.TypeSessionInfo, resp.Encode())
}

func (s *ServerRuntime) handleSessionJoin(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeSessionJoin(payload)
	if err != nil {
		return err
	}

	now := time.Now()
	outcome, err := s.deps.Store.Join(req.SessionString, req.ParticipantPubKey, req.Timestamp, req.Signature, req.Password, now)
	if err != nil {
		code := joinErrorCode(err)
		if code == wire.ErrInvalidSignature || code == wire.ErrInvalidPassword {
			code = s.authFailureCode(ctx, code)
		}
		return ctx.Send(wire.TypeSessionJoined, (&wire.SessionJoined{Success: false, ErrorCode: code}).Encode())
	}

	if c, ok := ctx.(*connContext); ok {
		c.conn.Bind(outcome.SessionID, outcome.ParticipantID)
		s.reg.Associate(outcome.SessionID, outcome.ParticipantID, c.conn)
	}

	resp := &wire.SessionJoined{
		Success:             true,
		SessionID:           outcome.SessionID,
		ParticipantID:       outcome.ParticipantID,
		ServerAddress:       outcome.ServerAddress,
		ServerPort:          outcome.ServerPort,
		SessionType:         outcome.SessionType,
		CurrentParticipants: outcome.CurrentParticipants,
		MaxParticipants:     outcome.MaxParticipants,
	}
	if err := ctx.Send(wire.TypeSessionJoined, resp.Encode()); err != nil {
		return err
	}

	joined := &wire.ParticipantJoined{
		SessionID:           outcome.SessionID,
		ParticipantID:       outcome.ParticipantID,
		PubKey:              req.ParticipantPubKey,
		CurrentParticipants: outcome.CurrentParticipants,
	}
	relay.NotifyJoined(ctx, outcome.SessionID, joined)
	s.pushParticipantListIfWebRTC(outcome.SessionID)
	return nil
}

func joinErrorCode(err error) wire.ErrorCode {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return wire.ErrSessionNotFound
	case errors.Is(err, session.ErrSessionFull):
		return wire.ErrSessionFull
	case errors.Is(err, session.ErrInvalidPassword):
		return wire.ErrInvalidPassword
	case errors.Is(err, session.ErrInvalidSignature):
		return wire.ErrInvalidSignature
	default:
		return wire.ErrInternal
	}
}

func (s *ServerRuntime) handleSessionLeave(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeSessionLeave(payload)
	if err != nil {
		return err
	}
	if c, ok := ctx.(*connContext); ok {
		s.reg.Remove(req.SessionID, req.ParticipantID, c.conn)
	}
	return handleDeparture(s, req.SessionID, req.ParticipantID)
}

// handleDeparture is the shared tail of a graceful SESSION_LEAVE, an EOF,
// and an idle-timeout disconnect (spec.md §3 Lifecycles names all three
// as equivalent departure triggers).
func handleDeparture(s *ServerRuntime, sessionID, participantID wire.ID) error {
	wasHost, err := s.deps.Store.Leave(sessionID, participantID)
	if err != nil {
		return err
	}
	left := &wire.ParticipantLeft{SessionID: sessionID, ParticipantID: participantID, WasHost: wasHost}
	s.reg.Broadcast(sessionID, participantID, wire.TypeParticipantLeft, left.Encode())
	s.pushParticipantListIfWebRTC(sessionID)
	return nil
}

func (s *ServerRuntime) handleSessionEnd(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeSessionEnd(payload)
	if err != nil {
		return err
	}

	conns := s.reg.ConnectionsForSession(req.SessionID)
	if err := s.deps.Store.End(req.SessionID, req.Signature); err != nil {
		code := s.authFailureCode(ctx, wire.ErrInvalidSignature)
		sendErr := ctx.Send(wire.TypeACIPError, (&wire.ACIPError{Code: code, Message: "not host"}).Encode())
		if errors.Is(err, session.ErrNotHost) {
			// A non-host attempting SESSION_END is a policy violation per
			// spec.md §7, not an ordinary protocol error: the connection
			// must close, not merely receive an ACIP_ERROR reply.
			if sendErr != nil {
				return sendErr
			}
			return dispatch.PolicyViolation(err)
		}
		return sendErr
	}

	s.deps.Coordinator.Forget(req.SessionID)
	for _, conn := range conns {
		conn.Close()
	}
	return nil
}

func (s *ServerRuntime) handleSessionReconnect(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeSessionReconnect(payload)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.deps.Store.Reconnect(req.SessionID, req.ParticipantID, req.Timestamp, req.Signature, now); err != nil {
		code := s.authFailureCode(ctx, wire.ErrInvalidSignature)
		return ctx.Send(wire.TypeACIPError, (&wire.ACIPError{Code: code, Message: "reconnect failed"}).Encode())
	}

	if c, ok := ctx.(*connContext); ok {
		c.conn.Bind(req.SessionID, req.ParticipantID)
		s.reg.Associate(req.SessionID, req.ParticipantID, c.conn)
	}
	return nil
}

func (s *ServerRuntime) handleRelaySignal(packetType uint16) dispatch.Handler {
	return func(payload []byte, ctx dispatch.Context) error {
		sig, err := wire.DecodeRelaySignal(payload)
		if err != nil {
			return err
		}
		relay.Forward(ctx, packetType, sig)
		return nil
	}
}

func (s *ServerRuntime) handleParticipantList(payload []byte, ctx dispatch.Context) error {
	if len(payload) < 16 {
		return dispatch.ErrInvalidParam
	}
	var sessionID wire.ID
	copy(sessionID[:], payload[:16])
	return ctx.Send(wire.TypeParticipantList, s.buildParticipantList(sessionID).Encode())
}

func (s *ServerRuntime) pushParticipantListIfWebRTC(sessionID wire.ID) {
	sess, ok := s.deps.Store.LookupByID(sessionID)
	if !ok || sess.SessionType != wire.SessionTypeWebRTC {
		return
	}
	list := s.buildParticipantList(sessionID)
	s.reg.Broadcast(sessionID, wire.ID{}, wire.TypeParticipantList, list.Encode())
}

func (s *ServerRuntime) buildParticipantList(sessionID wire.ID) *wire.ParticipantList {
	list := &wire.ParticipantList{SessionID: sessionID}
	sess, ok := s.deps.Store.LookupByID(sessionID)
	if !ok {
		return list
	}
	for _, p := range sess.Participants {
		if p.Disconnected {
			continue
		}
		// A successfully-joined participant has already cleared whatever
		// verification the session required; ExposeIP only ever gates the
		// server-verify requirement itself (spec.md §4.5), not disclosure
		// to already-joined peers, so PARTICIPANT_LIST matches
		// SESSION_JOINED and always carries the server-known address/port.
		entry := wire.ParticipantEntry{
			ParticipantID: p.ParticipantID,
			ConnType:      sess.SessionType,
			Address:       sess.ServerAddress,
			Port:          sess.ServerPort,
		}
		list.Entries = append(list.Entries, entry)
	}
	return list
}

func (s *ServerRuntime) handleNetworkQuality(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeNetworkQuality(payload)
	if err != nil {
		return err
	}

	quality := session.NATQuality{
		HasPublicIP:       req.HasPublicIP,
		UPnPAvailable:     req.UPnPAvailable,
		UPnPMappedPort:    req.UPnPMappedPort,
		StunNATType:       req.StunNATType,
		LANReachable:      req.LANReachable,
		StunLatencyMs:     req.StunLatencyMs,
		UploadKbps:        req.UploadKbps,
		DownloadKbps:      req.DownloadKbps,
		RTTToACDSMs:       req.RTTToACDSMs,
		JitterMs:          req.JitterMs,
		PacketLossPct:     req.PacketLossPct,
		PublicAddress:     req.PublicAddress,
		PublicPort:        req.PublicPort,
		ICECandidateTypes: req.ICECandidateTypes,
		ReportedAt:        time.Now(),
	}

	return s.deps.Store.WithSession(req.SessionID, func(sess *session.Session) error {
		if sess.Ring == nil || sess.Ring.RoundNumber != req.RoundNumber {
			return nil // stale report for a round that already ended
		}
		if p, ok := sess.Participants[req.ParticipantID]; ok {
			p.NAT = &quality
		}
		ring.RecordReport(sess.Ring, req.ParticipantID, quality)
		s.sendNextCollect(sess)
		return nil
	})
}

func (s *ServerRuntime) handleHostAnnouncement(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeHostAnnouncement(payload)
	if err != nil {
		return err
	}

	var designated *wire.HostDesignated
	replyErr := s.deps.Store.WithSession(req.SessionID, func(sess *session.Session) error {
		participant, ok := sess.Participants[req.HostID]
		if !ok {
			return migration.ErrUnknownParticipant
		}
		var mErr error
		designated, mErr = migration.AcceptAnnouncement(sess, req, participant.IdentityPub)
		return mErr
	})
	if replyErr != nil {
		return ctx.Send(wire.TypeACIPError, (&wire.ACIPError{Code: wire.ErrInvalidSignature, Message: replyErr.Error()}).Encode())
	}

	s.deps.Log.DebugMigration("host designated", "session", req.SessionID, "host", req.HostID)
	s.reg.Broadcast(req.SessionID, wire.ID{}, wire.TypeHostDesignated, designated.Encode())
	return nil
}

func (s *ServerRuntime) handleHostLost(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeHostLost(payload)
	if err != nil {
		return err
	}

	var quorum bool
	_ = s.deps.Store.WithSession(req.SessionID, func(sess *session.Session) error {
		quorum = s.deps.Coordinator.RecordHostLost(sess, req)
		return nil
	})
	if quorum {
		s.deps.Log.DebugMigration("host lost quorum reached, session terminal", "session", req.SessionID)
		s.reg.Broadcast(req.SessionID, wire.ID{}, wire.TypeHostLost, req.Encode())
	}
	return nil
}

func (s *ServerRuntime) handleHandshakeHello(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeHandshakeHello(payload)
	if err != nil {
		return err
	}

	if err := secure.VerifyHello(ed25519.PublicKey(req.IdentityPubKey[:]), req.EphemeralKey, req.Signature); err != nil {
		return err
	}

	c, ok := ctx.(*connContext)
	if !ok {
		return nil
	}
	ch, err := c.conn.SecureChannel()
	if err != nil {
		return err
	}
	ch.Establish(req.EphemeralKey)

	resp := &wire.HandshakeHello{
		IdentityPubKey: s.identityPub,
		EphemeralKey:   ch.LocalEphemeralKey(),
		Signature:      secure.SignHello(s.identityPriv, ch.LocalEphemeralKey()),
	}
	s.deps.Log.DebugSecure("secure channel established", "remote", ctx.RemoteAddr())
	return ctx.Send(wire.TypeHandshakeHello, resp.Encode())
}

func (s *ServerRuntime) handleRekeyRequest(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeRekeyRequest(payload)
	if err != nil {
		return err
	}
	c, ok := ctx.(*connContext)
	if !ok {
		return nil
	}
	ch, err := c.conn.SecureChannel()
	if err != nil {
		return err
	}
	ch.AcceptPeerRekey(req.NewEphemeralKey)

	newLocal, err := ch.BeginRekey()
	if err != nil {
		return err
	}
	return ctx.Send(wire.TypeRekeyResponse, (&wire.RekeyResponse{NewEphemeralKey: newLocal}).Encode())
}

func (s *ServerRuntime) handleRekeyResponse(payload []byte, ctx dispatch.Context) error {
	req, err := wire.DecodeRekeyResponse(payload)
	if err != nil {
		return err
	}
	c, ok := ctx.(*connContext)
	if !ok {
		return nil
	}
	ch, err := c.conn.SecureChannel()
	if err != nil {
		return err
	}
	ch.AcceptPeerRekey(req.NewEphemeralKey)
	ch.CompleteRekey()
	return ctx.Send(wire.TypeRekeyComplete, (&wire.RekeyComplete{}).Encode())
}

func (s *ServerRuntime) handleRekeyComplete(payload []byte, ctx dispatch.Context) error {
	if _, err := wire.DecodeRekeyComplete(payload); err != nil {
		return err
	}
	c, ok := ctx.(*connContext)
	if !ok {
		return nil
	}
	ch, err := c.conn.SecureChannel()
	if err != nil {
		return err
	}
	ch.CompleteRekey()
	return nil
}
