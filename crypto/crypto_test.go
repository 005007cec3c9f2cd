package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	require.Equal(t, a, b)
}

func TestContentHashCollisionBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		x := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "x")
		y := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "y")
		same := ContentHash(x) == ContentHash(y)
		if string(x) == string(y) {
			require.True(rt, same)
		} else {
			require.False(rt, same, "distinct inputs must not collide in this test corpus")
		}
	})
}

func TestDomainSeparation(t *testing.T) {
	payload := []byte("same-bytes")
	c := ContentHash(payload)
	m := MessageHash(payload)
	require.NotEqual(t, c, m, "domain bytes must make identical payloads hash differently")
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := Keygen()
	require.NoError(t, err)
	msg := []byte("query-request")
	sig := Sign(priv, msg)
	require.True(t, Verify(pub, msg, sig))

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xff
	require.False(t, Verify(pub, tampered, sig))
}

func TestPeerIDEncodeDecodeRoundTrip(t *testing.T) {
	_, pub, err := Keygen()
	require.NoError(t, err)
	id := DerivePeerID(pub)

	s, err := EncodePeerID(id)
	require.NoError(t, err)
	require.Contains(t, s, "ndl1")

	got, err := DecodePeerID(s)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestPeerIDBadChecksumFails(t *testing.T) {
	_, pub, err := Keygen()
	require.NoError(t, err)
	id := DerivePeerID(pub)
	s, err := EncodePeerID(id)
	require.NoError(t, err)

	tampered := []byte(s)
	tampered[len(tampered)-1] ^= 1
	_, err = DecodePeerID(string(tampered))
	require.ErrorIs(t, err, ErrInvalidChecksum)
}

func TestKeystoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity", "keystore.json")
	password := []byte("correct horse battery staple")

	ks, err := NewKeystore(path, password, nil)
	require.NoError(t, err)
	pub := ks.PublicKey()

	opened, err := OpenKeystore(path, password)
	require.NoError(t, err)
	require.Equal(t, pub, opened.PublicKey())

	msg := []byte("sign-me")
	sig := opened.Sign(msg)
	require.True(t, Verify(pub, msg, sig))
}

func TestKeystoreWrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keystore.json")
	_, err := NewKeystore(path, []byte("right"), nil)
	require.NoError(t, err)

	_, err = OpenKeystore(path, []byte("wrong"))
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestKeystoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keystore.json")
	_, err := NewKeystore(path, []byte("pw"), nil)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
