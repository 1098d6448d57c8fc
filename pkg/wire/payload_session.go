package wire

// This file holds the structural (not semantic) encode/decode for the
// SESSION_* packet family. Range checks (max_participants in [1,8], etc.)
// are a dispatch-handler concern per spec.md §4.3 — this layer only
// guarantees the byte layout round-trips and that declared lengths fit.

// ID is a 16-byte opaque identifier, compared bytewise and never parsed
// as text (spec.md §3). session_id and participant_id both use this shape.
type ID [16]byte

// PubKey is an Ed25519 public key.
type PubKey [32]byte

// Signature is a detached Ed25519 signature.
type Signature [64]byte

// SessionCreate is the C→S payload for SESSION_CREATE.
type SessionCreate struct {
	Timestamp            int64
	Capabilities         uint8
	MaxParticipants      uint8
	SessionType          SessionType
	ExposeIP             bool
	RequireServerVerify  bool
	RequireClientVerify  bool
	HostPubKey           PubKey
	Signature            Signature
	Password             string // cleartext; empty means no password
	ServerAddress        string // DIRECT_TCP only
	ServerPort           uint16
	ReservedString       string // optional; empty means server should generate one
}

func (p *SessionCreate) Encode() []byte {
	w := newWriter(160)
	w.i64(p.Timestamp)
	w.u8(p.Capabilities)
	w.u8(p.MaxParticipants)
	w.u8(uint8(p.SessionType))
	w.u8(boolByte(p.ExposeIP))
	w.u8(boolByte(p.RequireServerVerify))
	w.u8(boolByte(p.RequireClientVerify))
	w.bytes(p.HostPubKey[:])
	w.bytes(p.Signature[:])
	w.lpString8(p.Password)
	w.lpString8(p.ServerAddress)
	w.u16(p.ServerPort)
	w.lpString8(p.ReservedString)
	return w.bytesOut()
}

func DecodeSessionCreate(payload []byte) (*SessionCreate, error) {
	r := newReader(payload)
	p := &SessionCreate{}
	var err error

	if p.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}
	if p.Capabilities, err = r.u8(); err != nil {
		return nil, err
	}
	if p.MaxParticipants, err = r.u8(); err != nil {
		return nil, err
	}
	st, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.SessionType = SessionType(st)

	expose, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.ExposeIP = expose != 0

	rsv, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.RequireServerVerify = rsv != 0

	rcv, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.RequireClientVerify = rcv != 0

	hp, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(p.HostPubKey[:], hp)

	sig, err := r.fixed(64)
	if err != nil {
		return nil, err
	}
	copy(p.Signature[:], sig)

	if p.Password, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.ServerAddress, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.ServerPort, err = r.u16(); err != nil {
		return nil, err
	}
	if p.ReservedString, err = r.lpString8(); err != nil {
		return nil, err
	}

	return p, nil
}

// ICEServer mirrors webrtc.ICEServer's shape for the SESSION_CREATED trailer.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// SessionCreated is the S→C payload for SESSION_CREATED.
type SessionCreated struct {
	Success         bool
	ErrorCode       ErrorCode
	SessionID       ID
	SessionString   string
	CreatedAt       int64
	ExpiresAt       int64
	ICEServers      []ICEServer
}

func (p *SessionCreated) Encode() []byte {
	w := newWriter(96)
	w.u8(boolByte(p.Success))
	w.u8(uint8(p.ErrorCode))
	w.bytes(p.SessionID[:])
	w.lpString8(p.SessionString)
	w.i64(p.CreatedAt)
	w.i64(p.ExpiresAt)
	w.u16(uint16(len(p.ICEServers)))
	for _, srv := range p.ICEServers {
		w.u16(uint16(len(srv.URLs)))
		for _, u := range srv.URLs {
			w.lpBytes([]byte(u))
		}
		w.lpBytes([]byte(srv.Username))
		w.lpBytes([]byte(srv.Credential))
	}
	return w.bytesOut()
}

func DecodeSessionCreated(payload []byte) (*SessionCreated, error) {
	r := newReader(payload)
	p := &SessionCreated{}
	var err error

	succ, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.Success = succ != 0

	ec, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.ErrorCode = ErrorCode(ec)

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	if p.SessionString, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = r.i64(); err != nil {
		return nil, err
	}
	if p.ExpiresAt, err = r.i64(); err != nil {
		return nil, err
	}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	p.ICEServers = make([]ICEServer, 0, count)
	for i := uint16(0); i < count; i++ {
		urlCount, err := r.u16()
		if err != nil {
			return nil, err
		}
		srv := ICEServer{URLs: make([]string, 0, urlCount)}
		for j := uint16(0); j < urlCount; j++ {
			u, err := r.lpBytes()
			if err != nil {
				return nil, err
			}
			srv.URLs = append(srv.URLs, string(u))
		}
		user, err := r.lpBytes()
		if err != nil {
			return nil, err
		}
		srv.Username = string(user)
		cred, err := r.lpBytes()
		if err != nil {
			return nil, err
		}
		srv.Credential = string(cred)
		p.ICEServers = append(p.ICEServers, srv)
	}

	return p, nil
}

// SessionLookup is the C→S payload for SESSION_LOOKUP.
type SessionLookup struct {
	SessionString string
}

func (p *SessionLookup) Encode() []byte {
	w := newWriter(50)
	w.lpString8(p.SessionString)
	return w.bytesOut()
}

func DecodeSessionLookup(payload []byte) (*SessionLookup, error) {
	r := newReader(payload)
	s, err := r.lpString8()
	if err != nil {
		return nil, err
	}
	return &SessionLookup{SessionString: s}, nil
}

// SessionInfo is the S→C payload for SESSION_INFO. It deliberately has no
// server_address/server_port fields: SESSION_INFO must never disclose them
// (spec.md §4.5, §8 testable property).
type SessionInfo struct {
	Found               bool
	HostPubKey          PubKey
	Capabilities        uint8
	MaxParticipants     uint8
	CurrentParticipants uint8
	SessionType         SessionType
	HasPassword         bool
}

func (p *SessionInfo) Encode() []byte {
	w := newWriter(40)
	w.u8(boolByte(p.Found))
	w.bytes(p.HostPubKey[:])
	w.u8(p.Capabilities)
	w.u8(p.MaxParticipants)
	w.u8(p.CurrentParticipants)
	w.u8(uint8(p.SessionType))
	w.u8(boolByte(p.HasPassword))
	return w.bytesOut()
}

func DecodeSessionInfo(payload []byte) (*SessionInfo, error) {
	r := newReader(payload)
	p := &SessionInfo{}

	found, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.Found = found != 0

	hp, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(p.HostPubKey[:], hp)

	if p.Capabilities, err = r.u8(); err != nil {
		return nil, err
	}
	if p.MaxParticipants, err = r.u8(); err != nil {
		return nil, err
	}
	if p.CurrentParticipants, err = r.u8(); err != nil {
		return nil, err
	}
	st, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.SessionType = SessionType(st)

	hasPw, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.HasPassword = hasPw != 0

	return p, nil
}

// SessionJoin is the C→S payload for SESSION_JOIN.
type SessionJoin struct {
	SessionString     string
	Timestamp         int64
	ParticipantPubKey PubKey
	Signature         Signature
	Password          string
}

func (p *SessionJoin) Encode() []byte {
	w := newWriter(150)
	w.lpString8(p.SessionString)
	w.i64(p.Timestamp)
	w.bytes(p.ParticipantPubKey[:])
	w.bytes(p.Signature[:])
	w.lpString8(p.Password)
	return w.bytesOut()
}

func DecodeSessionJoin(payload []byte) (*SessionJoin, error) {
	r := newReader(payload)
	p := &SessionJoin{}
	var err error

	if p.SessionString, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}

	pk, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(p.ParticipantPubKey[:], pk)

	sig, err := r.fixed(64)
	if err != nil {
		return nil, err
	}
	copy(p.Signature[:], sig)

	if p.Password, err = r.lpString8(); err != nil {
		return nil, err
	}

	return p, nil
}

// SessionJoined is the S→C payload for SESSION_JOINED. ServerAddress is
// only non-empty after a fully successful, signature-verified join
// (spec.md §4.5 IP-disclosure policy).
type SessionJoined struct {
	Success             bool
	ErrorCode           ErrorCode
	SessionID           ID
	ParticipantID       ID
	ServerAddress       string
	ServerPort          uint16
	SessionType         SessionType
	CurrentParticipants uint8
	MaxParticipants     uint8
}

func (p *SessionJoined) Encode() []byte {
	w := newWriter(100)
	w.u8(boolByte(p.Success))
	w.u8(uint8(p.ErrorCode))
	w.bytes(p.SessionID[:])
	w.bytes(p.ParticipantID[:])
	w.lpString8(p.ServerAddress)
	w.u16(p.ServerPort)
	w.u8(uint8(p.SessionType))
	w.u8(p.CurrentParticipants)
	w.u8(p.MaxParticipants)
	return w.bytesOut()
}

func DecodeSessionJoined(payload []byte) (*SessionJoined, error) {
	r := newReader(payload)
	p := &SessionJoined{}

	succ, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.Success = succ != 0

	ec, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.ErrorCode = ErrorCode(ec)

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	pid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.ParticipantID[:], pid)

	if p.ServerAddress, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.ServerPort, err = r.u16(); err != nil {
		return nil, err
	}
	st, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.SessionType = SessionType(st)

	if p.CurrentParticipants, err = r.u8(); err != nil {
		return nil, err
	}
	if p.MaxParticipants, err = r.u8(); err != nil {
		return nil, err
	}

	return p, nil
}

// SessionLeave is the C→S payload for SESSION_LEAVE.
type SessionLeave struct {
	SessionID     ID
	ParticipantID ID
}

func (p *SessionLeave) Encode() []byte {
	w := newWriter(32)
	w.bytes(p.SessionID[:])
	w.bytes(p.ParticipantID[:])
	return w.bytesOut()
}

func DecodeSessionLeave(payload []byte) (*SessionLeave, error) {
	r := newReader(payload)
	p := &SessionLeave{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	pid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.ParticipantID[:], pid)

	return p, nil
}

// SessionEnd is the C→S payload for SESSION_END.
type SessionEnd struct {
	SessionID ID
	Signature Signature
}

func (p *SessionEnd) Encode() []byte {
	w := newWriter(80)
	w.bytes(p.SessionID[:])
	w.bytes(p.Signature[:])
	return w.bytesOut()
}

func DecodeSessionEnd(payload []byte) (*SessionEnd, error) {
	r := newReader(payload)
	p := &SessionEnd{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	sig, err := r.fixed(64)
	if err != nil {
		return nil, err
	}
	copy(p.Signature[:], sig)

	return p, nil
}

// SessionReconnect is the C→S payload for SESSION_RECONNECT.
type SessionReconnect struct {
	SessionID     ID
	ParticipantID ID
	Timestamp     int64
	Signature     Signature
}

func (p *SessionReconnect) Encode() []byte {
	w := newWriter(96)
	w.bytes(p.SessionID[:])
	w.bytes(p.ParticipantID[:])
	w.i64(p.Timestamp)
	w.bytes(p.Signature[:])
	return w.bytesOut()
}

func DecodeSessionReconnect(payload []byte) (*SessionReconnect, error) {
	r := newReader(payload)
	p := &SessionReconnect{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	pid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.ParticipantID[:], pid)

	if p.Timestamp, err = r.i64(); err != nil {
		return nil, err
	}

	sig, err := r.fixed(64)
	if err != nil {
		return nil, err
	}
	copy(p.Signature[:], sig)

	return p, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
