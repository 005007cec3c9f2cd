package crypto

// Keystore persists a node's Ed25519 identity key to disk encrypted under a
// password, per spec.md §9 "Private key lifecycle". This module already
// standardizes on XChaCha20-Poly1305 for authenticated encryption
// (core/security.go); we pair it with an Argon2id KDF instead of a bare
// password hash, and add the explicit Zeroize step the spec calls for that
// the teacher's Wipe() helper (core/wallet.go) only sketches.

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = chacha20poly1305.KeySize
	saltLen      = 16
)

// ErrWrongPassword is returned by OpenKeystore when decryption fails, which
// for an AEAD almost always means the password (or file) is wrong.
var ErrWrongPassword = errors.New("crypto: wrong password or corrupt keystore")

// keystoreFile is the on-disk JSON envelope. Field names are stable; this is
// not wire-protocol data so JSON (not the CBOR wire codec) is appropriate.
type keystoreFile struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Seed  []byte `json:"seed"` // XChaCha20-Poly1305 ciphertext of the 64-byte ed25519 private key
}

// Keystore holds a decrypted identity key in process memory. Callers must
// call Zeroize when the node shuts down.
type Keystore struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewKeystore writes a freshly generated (or supplied) identity key to path,
// encrypted under password.
func NewKeystore(path string, password []byte, seed ed25519.PrivateKey) (*Keystore, error) {
	if seed == nil {
		priv, _, err := Keygen()
		if err != nil {
			return nil, err
		}
		seed = priv
	}
	if len(seed) != ed25519.PrivateKeySize {
		return nil, errors.New("crypto: invalid seed length")
	}

	salt := make([]byte, saltLen)
	if _, err := crand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: keystore salt: %w", err)
	}
	key := argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := crand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: keystore nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, seed, nil)
	Zeroize(key)

	kf := keystoreFile{Salt: salt, Nonce: nonce, Seed: ciphertext}
	raw, err := json.Marshal(kf)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal keystore: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("crypto: keystore dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("crypto: write keystore: %w", err)
	}

	pub := seed.Public().(ed25519.PublicKey)
	return &Keystore{priv: append(ed25519.PrivateKey(nil), seed...), pub: pub}, nil
}

// OpenKeystore decrypts the identity key at path under password and holds it
// in memory for the node's lifetime. Returns ErrWrongPassword on AEAD
// authentication failure.
func OpenKeystore(path string, password []byte) (*Keystore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: read keystore: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("crypto: parse keystore: %w", err)
	}

	key := argon2.IDKey(password, kf.Salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	defer Zeroize(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: keystore cipher: %w", err)
	}
	seed, err := aead.Open(nil, kf.Nonce, kf.Seed, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	priv := ed25519.PrivateKey(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keystore{priv: priv, pub: pub}, nil
}

// PublicKey returns the node's Ed25519 public key.
func (k *Keystore) PublicKey() ed25519.PublicKey { return k.pub }

// PeerID returns the node's derived peer-id.
func (k *Keystore) PeerID() PeerID { return DerivePeerID(k.pub) }

// Sign signs msg with the held private key.
func (k *Keystore) Sign(msg []byte) Signature { return Sign(k.priv, msg) }

// Zeroize overwrites the keystore's private key material in place. The
// Keystore must not be used afterward.
func (k *Keystore) Zeroize() {
	Zeroize(k.priv)
}

// Zeroize overwrites b with zeros in place. Best-effort: the Go GC may have
// already copied the backing array elsewhere, but this closes the obvious
// window where a reference is held past its useful life.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
