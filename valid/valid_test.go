package valid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

func l0Manifest(data []byte, owner types.PeerID) types.Manifest {
	h := crypto.ContentHash(data)
	return types.Manifest{
		Hash:        h,
		ContentType: types.ContentL0,
		Owner:       owner,
		Version:     types.Version{Number: 1, Root: h},
		Visibility:  types.VisibilityShared,
		Metadata:    types.Metadata{Title: "doc", SizeBytes: uint64(len(data))},
		Economics:   types.Economics{Price: 100, Currency: types.Currency},
		Provenance:  types.Provenance{RootL0L1: []types.ProvenanceEntry{{Hash: h, Owner: owner, Weight: 1}}},
	}
}

func TestCheckContentAccepts(t *testing.T) {
	data := []byte("hello world")
	mf := l0Manifest(data, types.PeerID{1})
	require.NoError(t, CheckContent(mf, data))
}

func TestCheckContentRejectsHashMismatch(t *testing.T) {
	data := []byte("hello world")
	mf := l0Manifest(data, types.PeerID{1})
	err := CheckContent(mf, []byte("tampered"))
	require.ErrorIs(t, err, types.ErrInvalidHash)
}

func TestCheckContentRejectsOversize(t *testing.T) {
	data := []byte("hello world")
	mf := l0Manifest(data, types.PeerID{1})
	mf.Metadata.SizeBytes = types.MaxContentBytes + 1
	err := CheckContent(mf, make([]byte, types.MaxContentBytes+1))
	require.ErrorIs(t, err, types.ErrContentTooLarge)
}

func TestCheckVersionFirst(t *testing.T) {
	h := crypto.ContentHash([]byte("x"))
	v := types.Version{Number: 1, Root: h}
	require.NoError(t, CheckVersion(v, h, nil))
}

func TestCheckVersionChain(t *testing.T) {
	root := crypto.ContentHash([]byte("root"))
	prevHash := crypto.ContentHash([]byte("v1"))
	prevManifest := types.Manifest{Hash: prevHash, Version: types.Version{Number: 1, Root: root, Timestamp: 100}}

	v2Hash := crypto.ContentHash([]byte("v2"))
	v2 := types.Version{Number: 2, Previous: &prevHash, Root: root, Timestamp: 200}
	require.NoError(t, CheckVersion(v2, v2Hash, &prevManifest))

	stale := types.Version{Number: 2, Previous: &prevHash, Root: root, Timestamp: 50}
	err := CheckVersion(stale, v2Hash, &prevManifest)
	require.ErrorIs(t, err, types.ErrInvalidVersion)
}

func TestCheckProvenanceL0(t *testing.T) {
	mf := l0Manifest([]byte("data"), types.PeerID{1})
	require.NoError(t, CheckProvenance(mf, nil))
}

func TestCheckProvenanceL3RecomputesRoots(t *testing.T) {
	owner := types.PeerID{1}
	src1 := l0Manifest([]byte("src1"), owner)
	src2 := l0Manifest([]byte("src2"), owner)

	derivedHash := crypto.ContentHash([]byte("derived"))
	mergedRoots := types.MergeRoots(src1.Provenance, src2.Provenance)
	l3 := types.Manifest{
		Hash:        derivedHash,
		ContentType: types.ContentL3,
		Owner:       owner,
		Provenance: types.Provenance{
			RootL0L1:    mergedRoots,
			DerivedFrom: []types.Hash{src1.Hash, src2.Hash},
			Depth:       1,
		},
	}
	require.NoError(t, CheckProvenance(l3, []types.Manifest{src1, src2}))

	l3.Provenance.Depth = 5
	err := CheckProvenance(l3, []types.Manifest{src1, src2})
	require.ErrorIs(t, err, types.ErrInvalidProvenance)
}

func TestCheckAccessPrivateAlwaysDenied(t *testing.T) {
	mf := l0Manifest([]byte("x"), types.PeerID{1})
	mf.Visibility = types.VisibilityPrivate
	err := CheckAccess(mf, types.PeerID{2}, 0)
	require.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestCheckAccessUnlistedAllowlist(t *testing.T) {
	mf := l0Manifest([]byte("x"), types.PeerID{1})
	mf.Visibility = types.VisibilityUnlisted
	mf.Access.Allowlist = []types.PeerID{{2}}

	require.NoError(t, CheckAccess(mf, types.PeerID{2}, 0))
	err := CheckAccess(mf, types.PeerID{3}, 0)
	require.ErrorIs(t, err, types.ErrAccessDenied)
}

func TestCheckAccessBond(t *testing.T) {
	mf := l0Manifest([]byte("x"), types.PeerID{1})
	mf.Visibility = types.VisibilityShared
	mf.Access.RequireBond = true
	mf.Access.BondAmount = 1000

	err := CheckAccess(mf, types.PeerID{2}, 500)
	require.ErrorIs(t, err, types.ErrAccessDenied)
	require.NoError(t, CheckAccess(mf, types.PeerID{2}, 1000))
}

func TestCheckPayment(t *testing.T) {
	owner := types.PeerID{1}
	mf := l0Manifest([]byte("x"), owner)
	priv, pub, err := crypto.Keygen()
	require.NoError(t, err)

	ch := types.Channel{ChannelID: types.Hash{9}, State: types.ChannelOpen, TheirBalance: 1000, Nonce: 5}
	p := types.Payment{
		Amount:             200,
		Recipient:          owner,
		QueryHash:          mf.Hash,
		Nonce:              6,
		ProvenanceSnapshot: mf.Provenance.RootL0L1,
	}
	msg := []byte("signing-bytes")
	p.PayerSignature = crypto.Sign(priv, msg)

	require.NoError(t, CheckPayment(p, mf, ch, pub, msg))

	p.Nonce = 5
	err = CheckPayment(p, mf, ch, pub, msg)
	require.ErrorIs(t, err, types.ErrInvalidNonce)
}

func TestCheckMessage(t *testing.T) {
	priv, pub, err := crypto.Keygen()
	require.NoError(t, err)
	senderID := crypto.DerivePeerID(pub)

	payload, err := wire.MarshalPayload(wire.PeerPing{Nonce: 1, Timestamp: 1000, Sender: senderID})
	require.NoError(t, err)
	env := wire.Envelope{Version: wire.ProtocolVersion, Type: wire.TypePeerPing, Payload: payload}
	hash := wire.HashForSigning(env)
	env.Signature = crypto.Sign(priv, hash[:])

	decoded, err := CheckMessage(env, pub, senderID, 1000)
	require.NoError(t, err)
	ping, ok := decoded.(*wire.PeerPing)
	require.True(t, ok)
	require.EqualValues(t, 1, ping.Nonce)

	_, err = CheckMessage(env, pub, senderID, 1000+types.MessageTimestampSkewMS+1)
	require.Error(t, err)
}
