package wire

// RingCollect is the P→P payload that asks the next participant in the
// ring for a fresh NETWORK_QUALITY report (spec.md §4.7).
type RingCollect struct {
	SessionID   ID
	From        ID
	To          ID
	RoundNumber uint64
}

func (p *RingCollect) Encode() []byte {
	w := newWriter(56)
	w.bytes(p.SessionID[:])
	w.bytes(p.From[:])
	w.bytes(p.To[:])
	w.u64(p.RoundNumber)
	return w.bytesOut()
}

func DecodeRingCollect(payload []byte) (*RingCollect, error) {
	r := newReader(payload)
	p := &RingCollect{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	from, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.From[:], from)

	to, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.To[:], to)

	if p.RoundNumber, err = r.u64(); err != nil {
		return nil, err
	}

	return p, nil
}

// NetworkQuality is the P→P / P→S NAT quality report (spec.md §3, §4.7).
type NetworkQuality struct {
	SessionID         ID
	ParticipantID     ID
	RoundNumber       uint64
	HasPublicIP       bool
	UPnPAvailable     bool
	UPnPMappedPort    uint16
	StunNATType       StunNATType
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
}

func (p *NetworkQuality) Encode() []byte {
	w := newWriter(96)
	w.bytes(p.SessionID[:])
	w.bytes(p.ParticipantID[:])
	w.u64(p.RoundNumber)
	w.u8(boolByte(p.HasPublicIP))
	w.u8(boolByte(p.UPnPAvailable))
	w.u16(p.UPnPMappedPort)
	w.u8(uint8(p.StunNATType))
	w.u8(boolByte(p.LANReachable))
	w.u32(p.StunLatencyMs)
	w.u32(p.UploadKbps)
	w.u32(p.DownloadKbps)
	w.u32(p.RTTToACDSMs)
	w.u8(p.JitterMs)
	w.u8(p.PacketLossPct)
	w.lpString8(p.PublicAddress)
	w.u16(p.PublicPort)
	w.u8(p.ICECandidateTypes)
	return w.bytesOut()
}

func DecodeNetworkQuality(payload []byte) (*NetworkQuality, error) {
	r := newReader(payload)
	p := &NetworkQuality{}
	var err error

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

	if p.RoundNumber, err = r.u64(); err != nil {
		return nil, err
	}

	hp, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.HasPublicIP = hp != 0

	up, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.UPnPAvailable = up != 0

	if p.UPnPMappedPort, err = r.u16(); err != nil {
		return nil, err
	}

	nt, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.StunNATType = StunNATType(nt)

	lan, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.LANReachable = lan != 0

	if p.StunLatencyMs, err = r.u32(); err != nil {
		return nil, err
	}
	if p.UploadKbps, err = r.u32(); err != nil {
		return nil, err
	}
	if p.DownloadKbps, err = r.u32(); err != nil {
		return nil, err
	}
	if p.RTTToACDSMs, err = r.u32(); err != nil {
		return nil, err
	}
	if p.JitterMs, err = r.u8(); err != nil {
		return nil, err
	}
	if p.PacketLossPct, err = r.u8(); err != nil {
		return nil, err
	}
	if p.PublicAddress, err = r.lpString8(); err != nil {
		return nil, err
	}
	if p.PublicPort, err = r.u16(); err != nil {
		return nil, err
	}
	if p.ICECandidateTypes, err = r.u8(); err != nil {
		return nil, err
	}

	return p, nil
}
