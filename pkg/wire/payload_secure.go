package wire

// BoxNonceSize and BoxKeySize mirror golang.org/x/crypto/nacl/box's
// constants (24-byte nonce, 32-byte Curve25519 key) so this package stays
// free of a crypto import — pkg/secure owns the actual sealing/opening.
const (
	BoxNonceSize = 24
	BoxKeySize   = 32
)

// SecurityEnvelope is the payload of an ENCRYPTED frame: every other frame
// type, once a secure channel is established, travels sealed inside one of
// these (spec.md §4.2). SenderPubKey lets the receiver pick the right key
// during a rekey's dual-key acceptance window.
type SecurityEnvelope struct {
	SenderPubKey [BoxKeySize]byte
	Nonce        [BoxNonceSize]byte
	Sealed       []byte
}

func (p *SecurityEnvelope) Encode() []byte {
	w := newWriter(BoxKeySize + BoxNonceSize + 4 + len(p.Sealed))
	w.bytes(p.SenderPubKey[:])
	w.bytes(p.Nonce[:])
	w.lpBytes(p.Sealed)
	return w.bytesOut()
}

func DecodeSecurityEnvelope(payload []byte) (*SecurityEnvelope, error) {
	r := newReader(payload)
	p := &SecurityEnvelope{}

	pk, err := r.fixed(BoxKeySize)
	if err != nil {
		return nil, err
	}
	copy(p.SenderPubKey[:], pk)

	nonce, err := r.fixed(BoxNonceSize)
	if err != nil {
		return nil, err
	}
	copy(p.Nonce[:], nonce)

	if p.Sealed, err = r.lpBytes(); err != nil {
		return nil, err
	}

	return p, nil
}

// HandshakeHello is the cleartext payload exchanged before a secure channel
// exists: both sides present an ephemeral box public key plus a signature
// over it from their long-term Ed25519 identity, binding the channel to the
// already-authenticated participant (spec.md §4.2). HANDSHAKE_HELLO is the
// one frame type an encrypted channel never requires to itself be wrapped.
type HandshakeHello struct {
	IdentityPubKey PubKey
	EphemeralKey   [BoxKeySize]byte
	Signature      Signature
}

func (p *HandshakeHello) Encode() []byte {
	w := newWriter(32 + BoxKeySize + 64)
	w.bytes(p.IdentityPubKey[:])
	w.bytes(p.EphemeralKey[:])
	w.bytes(p.Signature[:])
	return w.bytesOut()
}

func DecodeHandshakeHello(payload []byte) (*HandshakeHello, error) {
	r := newReader(payload)
	p := &HandshakeHello{}

	idk, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(p.IdentityPubKey[:], idk)

	ek, err := r.fixed(BoxKeySize)
	if err != nil {
		return nil, err
	}
	copy(p.EphemeralKey[:], ek)

	sig, err := r.fixed(64)
	if err != nil {
		return nil, err
	}
	copy(p.Signature[:], sig)

	return p, nil
}

// RekeyRequest asks the peer to rotate to a fresh ephemeral key without
// tearing down the session (spec.md §4.2). It always travels inside an
// existing SecurityEnvelope, never in cleartext.
type RekeyRequest struct {
	NewEphemeralKey [BoxKeySize]byte
}

func (p *RekeyRequest) Encode() []byte {
	w := newWriter(BoxKeySize)
	w.bytes(p.NewEphemeralKey[:])
	return w.bytesOut()
}

func DecodeRekeyRequest(payload []byte) (*RekeyRequest, error) {
	r := newReader(payload)
	p := &RekeyRequest{}
	k, err := r.fixed(BoxKeySize)
	if err != nil {
		return nil, err
	}
	copy(p.NewEphemeralKey[:], k)
	return p, nil
}

// RekeyResponse is the peer's counter-offer ephemeral key, completing the
// key agreement for the new epoch.
type RekeyResponse struct {
	NewEphemeralKey [BoxKeySize]byte
}

func (p *RekeyResponse) Encode() []byte {
	w := newWriter(BoxKeySize)
	w.bytes(p.NewEphemeralKey[:])
	return w.bytesOut()
}

func DecodeRekeyResponse(payload []byte) (*RekeyResponse, error) {
	r := newReader(payload)
	p := &RekeyResponse{}
	k, err := r.fixed(BoxKeySize)
	if err != nil {
		return nil, err
	}
	copy(p.NewEphemeralKey[:], k)
	return p, nil
}

// RekeyComplete confirms the new key is in use; after this, the old key is
// no longer accepted for incoming envelopes.
type RekeyComplete struct{}

func (p *RekeyComplete) Encode() []byte { return nil }

func DecodeRekeyComplete(payload []byte) (*RekeyComplete, error) {
	return &RekeyComplete{}, nil
}
