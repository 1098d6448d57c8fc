package wire

import (
	"encoding/binary"
	"fmt"
)

// writer accumulates a payload field by field in network byte order.
// append grows the backing slice as needed, the same way the teacher's
// codec built frames by concatenation.
type writer struct {
	buf []byte
}

func newWriter(sizeHint int) *writer {
	return &writer{buf: make([]byte, 0, sizeHint)}
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

// fixed writes exactly n bytes, null-padding or truncating src to fit.
func (w *writer) fixed(src []byte, n int) {
	var b = make([]byte, n)
	copy(b, src)
	w.buf = append(w.buf, b...)
}

// lpBytes writes a u16 length prefix followed by the bytes.
func (w *writer) lpBytes(b []byte) {
	w.u16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

// lpString8 writes a u8 length prefix followed by the string bytes — used
// for short bounded fields like the session string.
func (w *writer) lpString8(s string) {
	w.u8(uint8(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytesOut() []byte { return w.buf }

// reader consumes a payload field by field, returning a typed error the
// moment a declared or implied length doesn't fit the remaining bytes —
// this is the "any declared length field is checked against the
// remaining payload" rule from spec.md §4.3.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

// ErrShortPayload is returned whenever a field's declared or fixed size
// exceeds the bytes remaining in the payload.
var ErrShortPayload = fmt.Errorf("wire: payload shorter than declared field")

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrShortPayload
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrShortPayload
	}
	v := binary.BigEndian.Uint16(r.buf[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortPayload
	}
	v := binary.BigEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrShortPayload
	}
	v := binary.BigEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) fixed(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrShortPayload
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+n])
	r.off += n
	return b, nil
}

func (r *reader) lpBytes() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}

func (r *reader) lpString8() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	b, err := r.fixed(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// boundedString reads a fixed-size buffer and returns its effective
// content up to the first null byte, per spec.md §4.3/§6: "bounded
// strings are null-padded within their buffer; effective length is taken
// ... from the first null" when no explicit length field is present.
func (r *reader) boundedString(n int) (string, error) {
	b, err := r.fixed(n)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// rest returns every remaining byte without consuming a length prefix,
// for an unprefixed trailer whose length is implied by the outer frame
// length. No decoder in this package calls it; the opaque SDP/ICE body
// of a relay signal is read with lpBytes.
func (r *reader) rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

// exhausted reports whether every declared field has been consumed — a
// mismatch here is the "declared length field checked against remaining
// payload" InvalidParam rule.
func (r *reader) exhausted() bool { return r.remaining() == 0 }
