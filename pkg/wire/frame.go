// Package wire implements the ACIP framing codec: a fixed-size, CRC32-protected
// header followed by a type-specific payload, all multi-byte fields in
// network byte order. The frame codec in this file never interprets
// payload bytes; the payload_*.go files hold the per-type payload
// encoders and decoders that the handlers call.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Magic is the fixed well-known constant that opens every ACIP frame:
// the ASCII bytes "ACIPDISC".
const Magic uint64 = 0x4143495044495343

// HeaderSize is the number of bytes in a fixed ACIP header:
// magic(8) + type(2) + length(4) + crc32(4) + client_id(8).
const HeaderSize = 8 + 2 + 4 + 4 + ClientIDSize

// ClientIDSize is the width of the header's opaque client_id tag.
//
// spec.md leaves the exact client_id layout as an open question ("variable
// per existing layout"); this implementation fixes it at 8 bytes, constant
// for the lifetime of a deployment, carried opaquely and never interpreted
// by the codec itself. See DESIGN.md for the rationale.
const ClientIDSize = 8

// MaxPayloadSize is the compile-time cap on a single frame's payload,
// exactly 16 MiB, spec.md's documented minimum.
const MaxPayloadSize = 16 * 1024 * 1024

// ClientID is an opaque per-deployment sender tag carried in every header.
type ClientID [ClientIDSize]byte

// Header is the fixed portion of an ACIP frame.
type Header struct {
	Type     uint16
	Length   uint32
	CRC32    uint32
	ClientID ClientID
}

// Errors returned by Decode. Framing errors are fatal to the connection
// per spec.md §7 — callers must not attempt to resynchronize the stream.
var (
	ErrBadMagic   = errors.New("wire: bad magic")
	ErrCorruptCRC = errors.New("wire: corrupt crc32")
	ErrTruncated  = errors.New("wire: truncated frame")
	ErrOversize   = errors.New("wire: payload exceeds maximum size")
	ErrCleanEOF   = errors.New("wire: clean eof before new frame")
)

// Encode builds a contiguous wire frame for the given type and payload.
// A zero-length payload always carries crc32 = 0 per spec.md §4.1.
func Encode(packetType uint16, payload []byte, clientID ClientID) []byte {
	buf := make([]byte, HeaderSize+len(payload))

	binary.BigEndian.PutUint64(buf[0:8], Magic)
	binary.BigEndian.PutUint16(buf[8:10], packetType)
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(payload)))

	var crc uint32
	if len(payload) > 0 {
		crc = crc32.ChecksumIEEE(payload)
	}
	binary.BigEndian.PutUint32(buf[14:18], crc)
	copy(buf[18:18+ClientIDSize], clientID[:])
	copy(buf[HeaderSize:], payload)

	return buf
}

// Decode reads exactly one frame from r, returning its type and an owned
// payload buffer. The caller owns the returned slice and must not retain
// it past the point it hands the payload off — the payload decoders copy
// out every field they return (spec.md §4.1, §4.3).
//
// EOF before any byte of a new header is read returns ErrCleanEOF; EOF
// mid-header or mid-payload returns ErrTruncated.
func Decode(r *bufio.Reader) (packetType uint16, payload []byte, clientID ClientID, err error) {
	var hdr [HeaderSize]byte

	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return 0, nil, ClientID{}, ErrCleanEOF
		}
		return 0, nil, ClientID{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	magic := binary.BigEndian.Uint64(hdr[0:8])
	if magic != Magic {
		return 0, nil, ClientID{}, ErrBadMagic
	}

	packetType = binary.BigEndian.Uint16(hdr[8:10])
	length := binary.BigEndian.Uint32(hdr[10:14])
	wantCRC := binary.BigEndian.Uint32(hdr[14:18])
	copy(clientID[:], hdr[18:18+ClientIDSize])

	if length > MaxPayloadSize {
		return 0, nil, ClientID{}, ErrOversize
	}

	if length == 0 {
		if wantCRC != 0 {
			return 0, nil, ClientID{}, ErrCorruptCRC
		}
		return packetType, nil, clientID, nil
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, ClientID{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	if crc32.ChecksumIEEE(payload) != wantCRC {
		return 0, nil, ClientID{}, ErrCorruptCRC
	}

	return packetType, payload, clientID, nil
}

// IsFatal reports whether a Decode error is fatal to the connection per
// spec.md §7 (all framing errors except a clean EOF, which is a normal
// connection close).
func IsFatal(err error) bool {
	return errors.Is(err, ErrBadMagic) ||
		errors.Is(err, ErrCorruptCRC) ||
		errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrOversize)
}
