package wire

// ParticipantJoined is the S→C unicast notification sent to every other
// participant when a new one successfully joins (spec.md §4.6).
type ParticipantJoined struct {
	SessionID           ID
	ParticipantID       ID
	PubKey              PubKey
	CurrentParticipants uint8
}

func (p *ParticipantJoined) Encode() []byte {
	w := newWriter(65)
	w.bytes(p.SessionID[:])
	w.bytes(p.ParticipantID[:])
	w.bytes(p.PubKey[:])
	w.u8(p.CurrentParticipants)
	return w.bytesOut()
}

func DecodeParticipantJoined(payload []byte) (*ParticipantJoined, error) {
	r := newReader(payload)
	p := &ParticipantJoined{}

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

	pk, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(p.PubKey[:], pk)

	if p.CurrentParticipants, err = r.u8(); err != nil {
		return nil, err
	}

	return p, nil
}

// ParticipantLeft is the S→C unicast notification sent on any leave
// (graceful LEAVE, EOF, or TTL) per spec.md §4.6.
type ParticipantLeft struct {
	SessionID     ID
	ParticipantID ID
	WasHost       bool
}

func (p *ParticipantLeft) Encode() []byte {
	w := newWriter(33)
	w.bytes(p.SessionID[:])
	w.bytes(p.ParticipantID[:])
	w.u8(boolByte(p.WasHost))
	return w.bytesOut()
}

func DecodeParticipantLeft(payload []byte) (*ParticipantLeft, error) {
	r := newReader(payload)
	p := &ParticipantLeft{}

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

	wh, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.WasHost = wh != 0

	return p, nil
}

// ParticipantEntry is one row of a PARTICIPANT_LIST response.
type ParticipantEntry struct {
	ParticipantID ID
	Address       string
	Port          uint16
	ConnType      SessionType
}

// ParticipantList is the S→C payload for PARTICIPANT_LIST (spec.md §4.10).
type ParticipantList struct {
	SessionID ID
	Entries   []ParticipantEntry
}

func (p *ParticipantList) Encode() []byte {
	w := newWriter(16 + len(p.Entries)*80)
	w.bytes(p.SessionID[:])
	w.u8(uint8(len(p.Entries)))
	for _, e := range p.Entries {
		w.bytes(e.ParticipantID[:])
		w.lpString8(e.Address)
		w.u16(e.Port)
		w.u8(uint8(e.ConnType))
	}
	return w.bytesOut()
}

func DecodeParticipantList(payload []byte) (*ParticipantList, error) {
	r := newReader(payload)
	p := &ParticipantList{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	count, err := r.u8()
	if err != nil {
		return nil, err
	}

	p.Entries = make([]ParticipantEntry, 0, count)
	for i := uint8(0); i < count; i++ {
		var e ParticipantEntry
		pid, err := r.fixed(16)
		if err != nil {
			return nil, err
		}
		copy(e.ParticipantID[:], pid)

		if e.Address, err = r.lpString8(); err != nil {
			return nil, err
		}
		if e.Port, err = r.u16(); err != nil {
			return nil, err
		}
		ct, err := r.u8()
		if err != nil {
			return nil, err
		}
		e.ConnType = SessionType(ct)

		p.Entries = append(p.Entries, e)
	}

	return p, nil
}
