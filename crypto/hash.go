// Package crypto implements Nodalync's stateless cryptographic primitives:
// domain-separated hashing, Ed25519 signing, peer-id derivation and the
// at-rest keystore. Every function here is pure or touches only the local
// filesystem for key material — no network, no store.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// domain separator bytes, see spec.md §3.1.
const (
	domainContent      byte = 0x00
	domainMessage      byte = 0x01
	domainChannelState byte = 0x02
	domainMerkleNode   byte = 0x03
)

// hashDomain computes SHA256(domain || uint64_be(len(payload)) || payload)
// for each part concatenated in sequence, i.e. the domain byte and length
// prefix cover the whole logical payload built from parts.
func hashDomain(domain byte, parts ...[]byte) Hash {
	h := sha256.New()
	h.Write([]byte{domain})
	var total uint64
	for _, p := range parts {
		total += uint64(len(p))
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], total)
	h.Write(lenBuf[:])
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ContentHash is SHA-256 of 0x00 || uint64_be(len(data)) || data.
func ContentHash(data []byte) Hash {
	return hashDomain(domainContent, data)
}

// MessageHash is the same construction with domain 0x01, applied to an
// envelope's canonical serialization.
func MessageHash(envelopeBytes []byte) Hash {
	return hashDomain(domainMessage, envelopeBytes)
}

// ChannelStateHash is domain 0x02 over channel_id || nonce || balance_initiator || balance_responder.
func ChannelStateHash(channelID Hash, nonce uint64, balanceInitiator, balanceResponder uint64) Hash {
	var nonceBuf, balA, balB [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(balA[:], balanceInitiator)
	binary.BigEndian.PutUint64(balB[:], balanceResponder)
	return hashDomain(domainChannelState, channelID[:], nonceBuf[:], balA[:], balB[:])
}

// PaymentID is H(channel_id || nonce || amount || recipient), spec.md §3.7.
// It reuses the content domain since a payment id is, like a content hash,
// just a collision-resistant fingerprint of fixed application data.
func PaymentID(channelID Hash, nonce, amount uint64, recipient PeerID) Hash {
	var nonceBuf, amountBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(amountBuf[:], amount)
	return hashDomain(domainContent, channelID[:], nonceBuf[:], amountBuf[:], recipient[:])
}

// MerkleNodeHash combines two child hashes for the econ package's balanced
// Merkle tree. Domain byte 0x03 keeps internal-node hashes distinct from
// content/message/channel hashes of the same length.
func MerkleNodeHash(left, right []byte) Hash {
	return hashDomain(domainMerkleNode, left, right)
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash as a slice.
func (h Hash) Bytes() []byte {
	out := make([]byte, len(h))
	copy(out, h[:])
	return out
}

func (h Hash) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, len(h)*2)
	for _, b := range h {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}

// ParseHash decodes the hex string produced by Hash.String back into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("crypto: parse hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("crypto: parse hash: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
