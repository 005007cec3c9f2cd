// Package wire implements Nodalync's deterministic binary wire protocol:
// the fixed envelope of spec.md §4.2/§6.1 and the canonical CBOR payload
// encoding beneath it. Round-trip and determinism are load-bearing here —
// decode(encode(m)) must equal m, and encode of equal messages must be
// byte-identical, because signatures are computed over the encoded bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nodalync/node/crypto"
)

const (
	// Magic is the envelope's leading byte.
	Magic byte = 0x00
	// ProtocolVersion is the only version this implementation understands.
	ProtocolVersion uint8 = 0x01

	signatureSize = 64
	headerSize    = 1 + 1 + 2 + 4 // magic, version, type, payload_len
)

// Type identifies a payload's shape, grouped into the stable ranges of
// spec.md §6.1.
type Type uint16

const (
	TypeDiscoveryAnnounce Type = 0x0100

	TypePreviewRequest  Type = 0x0200
	TypePreviewResponse Type = 0x0201

	TypeQueryRequest  Type = 0x0300
	TypeQueryResponse Type = 0x0301

	TypeVersionRequest  Type = 0x0400
	TypeVersionResponse Type = 0x0401

	TypeChannelOpen     Type = 0x0500
	TypeChannelAccept   Type = 0x0501
	TypeChannelClose    Type = 0x0502
	TypeChannelCloseAck Type = 0x0503

	TypeSettleConfirm Type = 0x0600

	TypePeerPing Type = 0x0700
	TypePeerPong Type = 0x0701
)

// Envelope is the bit-exact wire frame of spec.md §6.1:
// 0x00 | u8 version | u16_be type | u32_be len | payload[len] | sig[64].
type Envelope struct {
	Version   uint8
	Type      Type
	Payload   []byte
	Signature crypto.Signature
}

var (
	ErrBadMagic       = errors.New("wire: bad magic byte")
	ErrBadVersion     = errors.New("wire: unsupported protocol version")
	ErrTruncated      = errors.New("wire: truncated envelope")
	ErrLengthMismatch = errors.New("wire: payload length mismatch")
)

// EncodeEnvelope serializes env to the bit-exact wire format. The signature
// bytes are written as given — callers sign over EncodeEnvelope with the
// signature field zeroed and then call this again with the real signature.
func EncodeEnvelope(env Envelope) []byte {
	out := make([]byte, 0, headerSize+len(env.Payload)+signatureSize)
	out = append(out, Magic, env.Version)
	var typeBuf [2]byte
	binary.BigEndian.PutUint16(typeBuf[:], uint16(env.Type))
	out = append(out, typeBuf[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(env.Payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, env.Payload...)
	out = append(out, env.Signature[:]...)
	return out
}

// DecodeEnvelope parses raw bytes into an Envelope, checking magic, version,
// truncation and length-consistency. It does not verify the signature or
// decode the payload — that's valid.CheckMessage's job, since it needs the
// sender's public key.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if len(raw) < headerSize+signatureSize {
		return Envelope{}, ErrTruncated
	}
	if raw[0] != Magic {
		return Envelope{}, ErrBadMagic
	}
	version := raw[1]
	if version != ProtocolVersion {
		return Envelope{}, ErrBadVersion
	}
	typ := Type(binary.BigEndian.Uint16(raw[2:4]))
	payloadLen := binary.BigEndian.Uint32(raw[4:8])
	expected := headerSize + int(payloadLen) + signatureSize
	if len(raw) != expected {
		return Envelope{}, fmt.Errorf("%w: have %d want %d", ErrLengthMismatch, len(raw), expected)
	}
	payload := raw[headerSize : headerSize+int(payloadLen)]
	var sig crypto.Signature
	copy(sig[:], raw[headerSize+int(payloadLen):])

	return Envelope{
		Version:   version,
		Type:      typ,
		Payload:   append([]byte(nil), payload...),
		Signature: sig,
	}, nil
}

// SigningBytes returns the envelope bytes with the signature field zeroed,
// the input to crypto.MessageHash per spec.md §4.2.
func SigningBytes(env Envelope) []byte {
	env.Signature = crypto.Signature{}
	return EncodeEnvelope(env)
}

// HashForSigning computes the domain-separated message hash a signer signs
// and a verifier checks against.
func HashForSigning(env Envelope) crypto.Hash {
	return crypto.MessageHash(SigningBytes(env))
}
