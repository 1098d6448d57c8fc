package wire

// ACIPError is the S→C payload for ACIP_ERROR: the generic error frame sent
// whenever a handler rejects a request outside of its own reply type
// (spec.md §6, §7).
type ACIPError struct {
	Code    ErrorCode
	Message string
}

func (p *ACIPError) Encode() []byte {
	w := newWriter(8 + len(p.Message))
	w.u8(uint8(p.Code))
	w.lpBytes([]byte(p.Message))
	return w.bytesOut()
}

func DecodeACIPError(payload []byte) (*ACIPError, error) {
	r := newReader(payload)
	p := &ACIPError{}

	code, err := r.u8()
	if err != nil {
		return nil, err
	}
	p.Code = ErrorCode(code)

	msg, err := r.lpBytes()
	if err != nil {
		return nil, err
	}
	p.Message = string(msg)

	return p, nil
}
