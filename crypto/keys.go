package crypto

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// PeerID is the first 20 bytes of SHA-256(0x00 || ed25519 pubkey).
type PeerID [20]byte

// Signature is a detached Ed25519 signature.
type Signature [ed25519.SignatureSize]byte

// bech32HRP is the human-readable part every encoded Nodalync peer-id address
// begins with.
const bech32HRP = "ndl"

var (
	// ErrInvalidSignature is returned by Verify when the signature does not
	// match the message under the given public key.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
	// ErrInvalidChecksum is returned by DecodePeerID on a malformed or
	// tampered address string.
	ErrInvalidChecksum = errors.New("crypto: invalid peer-id checksum")
)

// Keygen produces a new random Ed25519 key pair.
func Keygen() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: keygen: %w", err)
	}
	return priv, pub, nil
}

// Sign signs msg with the given Ed25519 private key.
func Sign(priv ed25519.PrivateKey, msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(priv, msg))
	return sig
}

// Verify reports whether sig is a valid Ed25519 signature over msg by pub.
func Verify(pub ed25519.PublicKey, msg []byte, sig Signature) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig[:])
}

// VerifyErr is Verify but returns ErrInvalidSignature on failure, for callers
// that want to propagate a sentinel error rather than a bool.
func VerifyErr(pub ed25519.PublicKey, msg []byte, sig Signature) error {
	if !Verify(pub, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// DerivePeerID computes the 20-byte peer-id from an Ed25519 public key:
// the first 20 bytes of SHA-256(0x00 || pubkey), spec.md §3.1. This is a
// plain hash over that literal preimage, not ContentHash's length-prefixed,
// domain-separated construction — a second implementation following the
// spec's bit-exact definition must derive the same peer id.
func DerivePeerID(pub ed25519.PublicKey) PeerID {
	h := sha256.Sum256(append([]byte{0x00}, pub...))
	var id PeerID
	copy(id[:], h[:20])
	return id
}

// Bytes returns the raw 20-byte peer-id.
func (p PeerID) Bytes() []byte {
	out := make([]byte, len(p))
	copy(out, p[:])
	return out
}

func (p PeerID) IsZero() bool { return p == PeerID{} }

// EncodePeerID renders a peer-id as a checksummed bech32-style string
// beginning "ndl1", the way leanlp-BTC-coinjoin and toole-brendan-shell
// encode segwit-style addresses with btcutil/bech32.
func EncodePeerID(id PeerID) (string, error) {
	conv, err := bech32.ConvertBits(id[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("crypto: encode peer-id: %w", err)
	}
	s, err := bech32.Encode(bech32HRP, conv)
	if err != nil {
		return "", fmt.Errorf("crypto: encode peer-id: %w", err)
	}
	return s, nil
}

// DecodePeerID parses a string produced by EncodePeerID, verifying its
// checksum. An invalid checksum or wrong human-readable part fails.
func DecodePeerID(s string) (PeerID, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return PeerID{}, ErrInvalidChecksum
	}
	if hrp != bech32HRP {
		return PeerID{}, ErrInvalidChecksum
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return PeerID{}, ErrInvalidChecksum
	}
	if len(raw) != 20 {
		return PeerID{}, ErrInvalidChecksum
	}
	var id PeerID
	copy(id[:], raw)
	return id, nil
}

func (p PeerID) String() string {
	s, err := EncodePeerID(p)
	if err != nil {
		return "<invalid-peer-id>"
	}
	return s
}
