package wire

// HostAnnouncement is the C→S payload for HOST_ANNOUNCEMENT: the
// self-declared host claiming to be reachable (spec.md §4.8).
type HostAnnouncement struct {
	SessionID ID
	HostID    ID
	Address   string
	Port      uint16
	ConnType  SessionType
}

func (p *HostAnnouncement) Encode() []byte {
	w := newWriter(96)
	w.bytes(p.SessionID[:])
	w.bytes(p.HostID[:])
	w.lpString8(p.Address)
	w.u16(p.Port)
	w.u8(uint8(p.ConnType))
	return w.bytesOut()
}

func DecodeHostAnnouncement(payload []byte) (*HostAnnouncement, error) {
	r := newReader(payload)
	p := &HostAnnouncement{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	hid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.HostID[:], hid)

	if p.Address, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.Port, err = r.u16(); err != nil {
		return nil, err
	}
	ct, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.ConnType = SessionType(ct)

	return p, nil
}

// HostDesignated is the S→C broadcast confirming the accepted host
// (spec.md §4.8). Same wire shape as HostAnnouncement.
type HostDesignated = HostAnnouncement

func DecodeHostDesignated(payload []byte) (*HostDesignated, error) { return DecodeHostAnnouncement(payload) }

// HostLost is the C→S payload for HOST_LOST (spec.md §4.8): bookkeeping
// only, it never triggers a fresh election.
type HostLost struct {
	SessionID  ID
	ReporterID ID
	LastHostID ID
	Reason     uint8
	When       int64
}

func (p *HostLost) Encode() []byte {
	w := newWriter(64)
	w.bytes(p.SessionID[:])
	w.bytes(p.ReporterID[:])
	w.bytes(p.LastHostID[:])
	w.u8(p.Reason)
	w.i64(p.When)
	return w.bytesOut()
}

func DecodeHostLost(payload []byte) (*HostLost, error) {
	r := newReader(payload)
	p := &HostLost{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	rep, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.ReporterID[:], rep)

	last, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.LastHostID[:], last)

	if p.Reason, err = r.u8(); err != nil {
		return nil, err
	}
	if p.When, err = r.i64(); err != nil {
		return nil, err
	}

	return p, nil
}

// FutureHostElected is both the C→S report of a ring-local election result
// and the S→C/rebroadcast announcement (spec.md §4.7, §4.8).
type FutureHostElected struct {
	SessionID    ID
	FutureHostID ID
	Address      string
	Port         uint16
	ConnType     SessionType
	RoundNumber  uint64
}

func (p *FutureHostElected) Encode() []byte {
	w := newWriter(96)
	w.bytes(p.SessionID[:])
	w.bytes(p.FutureHostID[:])
	w.lpString8(p.Address)
	w.u16(p.Port)
	w.u8(uint8(p.ConnType))
	w.u64(p.RoundNumber)
	return w.bytesOut()
}

func DecodeFutureHostElected(payload []byte) (*FutureHostElected, error) {
	r := newReader(payload)
	p := &FutureHostElected{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	fhid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.FutureHostID[:], fhid)

	if p.Address, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.Port, err = r.u16(); err != nil {
		return nil, err
	}
	ct, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.ConnType = SessionType(ct)

	if p.RoundNumber, err = r.u64(); err != nil {
		return nil, err
	}

	return p, nil
}
