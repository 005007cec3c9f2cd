package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Config{
		DBPath:        filepath.Join(dir, "db"),
		ContentDir:    filepath.Join(dir, "content"),
		CacheDir:      filepath.Join(dir, "cache"),
		CacheMaxBytes: 1 << 20,
		CacheMaxItems: 100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContentStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	data := []byte("hello nodalync")

	h, err := s.Content().Store(data)
	require.NoError(t, err)
	require.Equal(t, crypto.ContentHash(data), h)

	got, err := s.Content().Load(h)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.True(t, s.Content().Exists(h))

	size, err := s.Content().Size(h)
	require.NoError(t, err)
	require.EqualValues(t, len(data), size)

	require.NoError(t, s.Content().Delete(h))
	require.False(t, s.Content().Exists(h))
}

func TestContentStoreVerifiedRejectsMismatch(t *testing.T) {
	s := openTestStore(t)
	wrongHash := crypto.ContentHash([]byte("not this"))
	err := s.Content().StoreVerified(wrongHash, []byte("actual data"))
	require.ErrorIs(t, err, types.ErrInvalidHash)
}

func testManifest(hash types.Hash) types.Manifest {
	return types.Manifest{
		Hash:        hash,
		ContentType: types.ContentL0,
		Visibility:  types.VisibilityShared,
		Version:     types.Version{Number: 1, Root: hash},
		CreatedAt:   100,
		UpdatedAt:   100,
	}
}

func TestManifestStoreCRUD(t *testing.T) {
	s := openTestStore(t)
	hash := crypto.ContentHash([]byte("doc-1"))
	mf := testManifest(hash)

	require.NoError(t, s.Manifests().Put(mf))
	require.True(t, s.Manifests().Exists(hash))

	got, err := s.Manifests().Get(hash)
	require.NoError(t, err)
	require.Equal(t, mf, got)

	require.NoError(t, s.Manifests().Delete(hash))
	require.False(t, s.Manifests().Exists(hash))

	_, err = s.Manifests().Get(hash)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestManifestStoreListFilter(t *testing.T) {
	s := openTestStore(t)

	shared := testManifest(crypto.ContentHash([]byte("shared")))
	shared.Visibility = types.VisibilityShared
	shared.CreatedAt = 1
	private := testManifest(crypto.ContentHash([]byte("private")))
	private.Visibility = types.VisibilityPrivate
	private.CreatedAt = 2

	require.NoError(t, s.Manifests().Put(shared))
	require.NoError(t, s.Manifests().Put(private))

	vis := types.VisibilityShared
	out, err := s.Manifests().List(types.ManifestFilter{Visibility: &vis})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, shared.Hash, out[0].Hash)
}

func TestManifestStoreGetVersions(t *testing.T) {
	s := openTestStore(t)
	root := crypto.ContentHash([]byte("root"))

	v1 := testManifest(root)
	v1.Version = types.Version{Number: 1, Root: root}

	v2Hash := crypto.ContentHash([]byte("v2"))
	v2 := testManifest(v2Hash)
	v2.Version = types.Version{Number: 2, Root: root}

	require.NoError(t, s.Manifests().Put(v2))
	require.NoError(t, s.Manifests().Put(v1))

	chain, err := s.Manifests().GetVersions(root)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, uint64(1), chain[0].Version.Number)
	require.Equal(t, uint64(2), chain[1].Version.Number)
}

func TestProvenanceGraphRootsAndDerivations(t *testing.T) {
	s := openTestStore(t)
	parent := crypto.ContentHash([]byte("parent"))
	child := crypto.ContentHash([]byte("child"))

	roots := []types.ProvenanceEntry{{Hash: parent, Weight: 100}}
	require.NoError(t, s.Provenance().Add(child, []types.Hash{parent}, roots))

	got, err := s.Provenance().GetRoots(child)
	require.NoError(t, err)
	require.Equal(t, roots, got)

	kids, err := s.Provenance().GetDerivations(parent)
	require.NoError(t, err)
	require.Equal(t, []types.Hash{child}, kids)

	ok, err := s.Provenance().IsAncestor(parent, child)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Provenance().IsAncestor(child, parent)
	require.NoError(t, err)
	require.False(t, ok)
}

func testChannel(id types.Hash, peer types.PeerID) types.Channel {
	return types.Channel{
		ChannelID:    id,
		Peer:         peer,
		State:        types.ChannelOpen,
		MyBalance:    1000,
		TheirBalance: 1000,
		Nonce:        0,
	}
}

func TestChannelStoreLifecycle(t *testing.T) {
	s := openTestStore(t)
	id := crypto.ContentHash([]byte("channel-1"))
	peer := types.PeerID{1, 2, 3}
	ch := testChannel(id, peer)

	require.NoError(t, s.Channels().Create(ch))
	require.True(t, s.Channels().Exists(peer))

	got, err := s.Channels().Get(peer)
	require.NoError(t, err)
	require.Equal(t, ch, got)

	updated, err := s.Channels().Credit(id, -100, 100)
	require.NoError(t, err)
	require.EqualValues(t, 900, updated.MyBalance)
	require.EqualValues(t, 1100, updated.TheirBalance)

	bumped, err := s.Channels().IncrementNonce(id, 1, 12345)
	require.NoError(t, err)
	require.EqualValues(t, 1, bumped.Nonce)

	paymentID := crypto.ContentHash([]byte("payment-1"))
	require.NoError(t, s.Channels().AddPayment(id, paymentID))
	pending, err := s.Channels().GetPendingPayments(id)
	require.NoError(t, err)
	require.Equal(t, []types.Hash{paymentID}, pending)

	require.NoError(t, s.Channels().ClearPayments(id))
	pending, err = s.Channels().GetPendingPayments(id)
	require.NoError(t, err)
	require.Empty(t, pending)

	open, err := s.Channels().ListOpen()
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestCacheStoreEviction(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{
		DBPath:        filepath.Join(dir, "db"),
		ContentDir:    filepath.Join(dir, "content"),
		CacheDir:      filepath.Join(dir, "cache"),
		CacheMaxBytes: 9,
		CacheMaxItems: 100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h1 := crypto.ContentHash([]byte("aaaaa"))
	h2 := crypto.ContentHash([]byte("bbbbb"))

	require.NoError(t, s.Cache().Put(h1, []byte("aaaaa"), types.PaymentReceipt{PaymentID: h1}))
	require.True(t, s.Cache().IsCached(h1))

	require.NoError(t, s.Cache().Put(h2, []byte("bbbbb"), types.PaymentReceipt{PaymentID: h2}))
	require.True(t, s.Cache().IsCached(h2))
	require.False(t, s.Cache().IsCached(h1)) // evicted: 9-byte budget can't hold both

	data, receipt, err := s.Cache().Get(h2)
	require.NoError(t, err)
	require.Equal(t, []byte("bbbbb"), data)
	require.Equal(t, h2, receipt.PaymentID)
}

func TestSettlementQueueLifecycle(t *testing.T) {
	s := openTestStore(t)
	recipient := types.PeerID{9, 9, 9}
	source := crypto.ContentHash([]byte("source"))
	paymentID := crypto.ContentHash([]byte("payment"))

	require.NoError(t, s.Queue().Enqueue(types.QueuedDistribution{
		PaymentID:  paymentID,
		Recipient:  recipient,
		Amount:     500,
		SourceHash: source,
		QueuedAt:   1,
	}))

	total, err := s.Queue().GetPendingTotal()
	require.NoError(t, err)
	require.EqualValues(t, 500, total)

	forRecipient, err := s.Queue().GetPendingFor(recipient)
	require.NoError(t, err)
	require.Len(t, forRecipient, 1)

	batchID := crypto.ContentHash([]byte("batch"))
	require.NoError(t, s.Queue().MarkSettled([]types.Hash{paymentID}, batchID))

	total, err = s.Queue().GetPendingTotal()
	require.NoError(t, err)
	require.Zero(t, total)

	last, err := s.Queue().GetLastSettlementTime()
	require.NoError(t, err)
	require.Zero(t, last)
	require.NoError(t, s.Queue().SetLastSettlementTime(999))
	last, err = s.Queue().GetLastSettlementTime()
	require.NoError(t, err)
	require.EqualValues(t, 999, last)
}
