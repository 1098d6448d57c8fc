package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cid := ClientID{1, 2, 3, 4, 5, 6, 7, 8}
	payload := []byte("hello ACIP")

	frame := Encode(TypeSessionLookup, payload, cid)
	r := bufio.NewReader(bytes.NewReader(frame))

	gotType, gotPayload, gotCID, err := Decode(r)
	require.NoError(t, err)
	require.Equal(t, TypeSessionLookup, gotType)
	require.Equal(t, payload, gotPayload)
	require.Equal(t, cid, gotCID)
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	frame := Encode(TypeSessionEnd, nil, ClientID{})
	r := bufio.NewReader(bytes.NewReader(frame))

	gotType, gotPayload, _, err := Decode(r)
	require.NoError(t, err)
	require.Equal(t, TypeSessionEnd, gotType)
	require.Empty(t, gotPayload)
}

func TestDecodeBadMagic(t *testing.T) {
	frame := Encode(TypeSessionLookup, []byte("x"), ClientID{})
	frame[0] ^= 0xFF

	r := bufio.NewReader(bytes.NewReader(frame))
	_, _, _, err := Decode(r)
	require.ErrorIs(t, err, ErrBadMagic)
	require.True(t, IsFatal(err))
}

func TestDecodeCorruptCRC(t *testing.T) {
	frame := Encode(TypeSessionLookup, []byte("abcdef"), ClientID{})
	// flip a payload byte after CRC has been computed over the original.
	frame[len(frame)-1] ^= 0xFF

	r := bufio.NewReader(bytes.NewReader(frame))
	_, _, _, err := Decode(r)
	require.ErrorIs(t, err, ErrCorruptCRC)
	require.True(t, IsFatal(err))
}

func TestDecodeTruncated(t *testing.T) {
	frame := Encode(TypeSessionLookup, []byte("abcdef"), ClientID{})
	truncated := frame[:len(frame)-3]

	r := bufio.NewReader(bytes.NewReader(truncated))
	_, _, _, err := Decode(r)
	require.ErrorIs(t, err, ErrTruncated)
	require.True(t, IsFatal(err))
}

func TestDecodeOversize(t *testing.T) {
	var hdr [HeaderSize]byte
	// Hand-build a header declaring a length over MaxPayloadSize; no
	// payload bytes are needed since Decode must reject before reading.
	buf := new(bytes.Buffer)
	buf.Write(hdr[:])
	frame := buf.Bytes()

	// Patch in a valid magic and an oversize length field directly.
	full := Encode(TypeSessionLookup, nil, ClientID{})
	copy(frame, full)
	frame[10] = 0xFF
	frame[11] = 0xFF
	frame[12] = 0xFF
	frame[13] = 0xFF

	r := bufio.NewReader(bytes.NewReader(frame))
	_, _, _, err := Decode(r)
	require.ErrorIs(t, err, ErrOversize)
	require.True(t, IsFatal(err))
}

func TestDecodeCleanEOF(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(nil))
	_, _, _, err := Decode(r)
	require.ErrorIs(t, err, ErrCleanEOF)
	require.False(t, IsFatal(err))
}

func TestEncodeZeroPayloadHasZeroCRC(t *testing.T) {
	frame := Encode(TypeSessionEnd, nil, ClientID{})
	crc := frame[14:18]
	require.Equal(t, []byte{0, 0, 0, 0}, crc)
}
