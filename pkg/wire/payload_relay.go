package wire

// RelaySignal is the shared shape of WEBRTC_SDP and WEBRTC_ICE: the engine
// never parses Body, it only routes it by recipient (spec.md §4.6). An
// all-zero RecipientID means "broadcast to every other participant".
type RelaySignal struct {
	SessionID   ID
	SenderID    ID
	RecipientID ID
	Body        []byte
}

func (p *RelaySignal) Encode() []byte {
	w := newWriter(48 + len(p.Body))
	w.bytes(p.SessionID[:])
	w.bytes(p.SenderID[:])
	w.bytes(p.RecipientID[:])
	w.lpBytes(p.Body)
	return w.bytesOut()
}

func DecodeRelaySignal(payload []byte) (*RelaySignal, error) {
	r := newReader(payload)
	p := &RelaySignal{}

	sid, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SessionID[:], sid)

	sender, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.SenderID[:], sender)

	recipient, err := r.fixed(16)
	if err != nil {
		return nil, err
	}
	copy(p.RecipientID[:], recipient)

	if p.Body, err = r.lpBytes(); err != nil {
		return nil, err
	}

	return p, nil
}

// IsBroadcast reports whether RecipientID is the all-zero sentinel.
func (id ID) IsBroadcast() bool {
	return id == ID{}
}
