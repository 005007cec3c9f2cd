package econ

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

func TestSplitBasic(t *testing.T) {
	owner := types.PeerID{1}
	rootOwner := types.PeerID{2}
	roots := []types.ProvenanceEntry{{Hash: types.Hash{9}, Owner: rootOwner, Weight: 1}}

	dist := Split(1000, owner, roots)
	require.Len(t, dist, 2)

	var ownerAmt, rootAmt uint64
	for _, d := range dist {
		if d.Recipient == owner {
			ownerAmt = d.Amount
		}
		if d.Recipient == rootOwner {
			rootAmt = d.Amount
		}
	}
	require.EqualValues(t, 50, ownerAmt) // 5% of 1000
	require.EqualValues(t, 950, rootAmt) // 95% pool, single root, no dust
}

func TestSplitZeroWeightGoesToOwner(t *testing.T) {
	owner := types.PeerID{1}
	dist := Split(500, owner, nil)
	require.Len(t, dist, 1)
	require.Equal(t, owner, dist[0].Recipient)
	require.EqualValues(t, 500, dist[0].Amount)
}

func TestSplitDustAbsorbedByOwner(t *testing.T) {
	owner := types.PeerID{1}
	roots := []types.ProvenanceEntry{
		{Hash: types.Hash{1}, Owner: types.PeerID{2}, Weight: 1},
		{Hash: types.Hash{2}, Owner: types.PeerID{3}, Weight: 1},
		{Hash: types.Hash{3}, Owner: types.PeerID{4}, Weight: 1},
	}
	// amount=100: owner_share=5, root_pool=95, per_weight=95/3=31, allocated=93, dust=2
	dist := Split(100, owner, roots)

	var total uint64
	var ownerAmt uint64
	for _, d := range dist {
		total += d.Amount
		if d.Recipient == owner {
			ownerAmt = d.Amount
		}
	}
	require.EqualValues(t, 100, total) // every unit accounted for
	require.EqualValues(t, 7, ownerAmt) // 5 flat + 2 dust
}

func TestSplitCollapsesSameOwnerRoots(t *testing.T) {
	owner := types.PeerID{1}
	sharedOwner := types.PeerID{2}
	roots := []types.ProvenanceEntry{
		{Hash: types.Hash{1}, Owner: sharedOwner, Weight: 1},
		{Hash: types.Hash{2}, Owner: sharedOwner, Weight: 1},
	}
	dist := Split(1000, owner, roots)
	require.Len(t, dist, 2) // owner + sharedOwner, not 3
}

func TestSplitConservesTotal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		amount := rapid.Uint64Range(1, 1_000_000).Draw(rt, "amount")
		n := rapid.IntRange(0, 5).Draw(rt, "n")
		owner := types.PeerID{byte(rapid.IntRange(0, 255).Draw(rt, "owner"))}

		var roots []types.ProvenanceEntry
		for i := 0; i < n; i++ {
			roots = append(roots, types.ProvenanceEntry{
				Hash:   types.Hash{byte(i + 1)},
				Owner:  types.PeerID{byte(rapid.IntRange(0, 255).Draw(rt, "root-owner"))},
				Weight: rapid.Uint64Range(1, 1000).Draw(rt, "weight"),
			})
		}

		dist := Split(amount, owner, roots)
		var total uint64
		for _, d := range dist {
			total += d.Amount
		}
		require.EqualValues(rt, amount, total)
	})
}

func TestAggregate(t *testing.T) {
	recipient := types.PeerID{5}
	p1 := types.Payment{ID: types.Hash{1}, QueryHash: types.Hash{100}}
	p2 := types.Payment{ID: types.Hash{2}, QueryHash: types.Hash{100}}

	splitFn := func(p types.Payment, owner types.PeerID) []types.Distribution {
		return []types.Distribution{{Recipient: recipient, Amount: 100, SourceHash: types.Hash{100}}}
	}
	ownerOf := func(types.Hash) types.PeerID { return types.PeerID{9} }

	entries := Aggregate([]types.Payment{p1, p2}, ownerOf, splitFn)
	require.Len(t, entries, 1)
	require.EqualValues(t, 200, entries[0].Amount)
	require.Len(t, entries[0].PaymentIDs, 2)
	require.Len(t, entries[0].ProvenanceHashes, 1)
}

func TestBuildBatchDeterministic(t *testing.T) {
	entries := []types.SettlementEntry{
		{Recipient: types.PeerID{1}, Amount: 100, PaymentIDs: []types.Hash{{1}}},
		{Recipient: types.PeerID{2}, Amount: 200, PaymentIDs: []types.Hash{{2}}},
	}
	encode := func(e types.SettlementEntry) []byte {
		return append(e.Recipient.Bytes(), byte(e.Amount))
	}

	b1, err := BuildBatch(entries, encode)
	require.NoError(t, err)
	b2, err := BuildBatch(entries, encode)
	require.NoError(t, err)
	require.Equal(t, b1.BatchID, b2.BatchID)
	require.Equal(t, b1.MerkleRoot, b2.MerkleRoot)
}

func TestMerkleRoundTrip(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	root, err := Root(leaves)
	require.NoError(t, err)

	for i := range leaves {
		proof, gotRoot, err := Proof(leaves, i)
		require.NoError(t, err)
		require.Equal(t, root, gotRoot)
		require.True(t, VerifyProof(root, leaves[i], proof, i))
	}
}

func TestMerkleOddNodePromoted(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	tree, err := BuildTree(leaves)
	require.NoError(t, err)
	// level 0 has 3 leaves -> level 1 has 2 nodes (pair + promoted lone c)
	require.Len(t, tree[0], 3)
	require.Len(t, tree[1], 2)
	require.Equal(t, crypto.ContentHash([]byte("c")), tree[1][1])
}

func TestShouldSettle(t *testing.T) {
	require.True(t, ShouldSettle(types.SettlementBatchThreshold, 0, 0))
	require.True(t, ShouldSettle(0, 0, types.SettlementMaxIntervalMS))
	require.False(t, ShouldSettle(0, 1000, 1000+types.SettlementMaxIntervalMS-1))
}
