// Package econ is Nodalync's pure economics layer, spec.md §4.5: revenue
// split, settlement batch aggregation, the batch Merkle commitment, and the
// settlement trigger policy. Nothing here touches the store or network.
package econ

import "github.com/nodalync/node/types"

// Split computes the per-payment revenue split of spec.md §4.5: a flat 5%
// owner share plus a 95% pool divided among provenance roots by weight,
// with rounding dust folded back into the owner's share. If roots carry zero
// total weight (degenerate but possible for a malformed-but-already-past-valid
// record), the owner takes the entire amount.
func Split(amount uint64, owner types.PeerID, roots []types.ProvenanceEntry) []types.Distribution {
	ownerShare := amount * types.OwnerShareNumerator / types.OwnerShareDenominator
	rootPool := amount - ownerShare

	totalWeight := uint64(0)
	for _, r := range roots {
		totalWeight += r.Weight
	}

	byOwner := make(map[types.PeerID]*types.Distribution)
	order := make([]types.PeerID, 0, len(roots)+1)

	addTo := func(recipient types.PeerID, delta uint64, source types.Hash) {
		if delta == 0 {
			return
		}
		d, ok := byOwner[recipient]
		if !ok {
			d = &types.Distribution{Recipient: recipient, SourceHash: source}
			byOwner[recipient] = d
			order = append(order, recipient)
		}
		d.Amount += delta
	}

	if totalWeight == 0 {
		addTo(owner, amount, types.Hash{})
		return collect(order, byOwner)
	}

	perWeight := rootPool / totalWeight
	var allocated uint64
	for _, r := range roots {
		alloc := perWeight * r.Weight
		allocated += alloc
		addTo(r.Owner, alloc, r.Hash)
	}

	dust := rootPool - allocated
	addTo(owner, ownerShare+dust, types.Hash{})

	return collect(order, byOwner)
}

func collect(order []types.PeerID, byOwner map[types.PeerID]*types.Distribution) []types.Distribution {
	out := make([]types.Distribution, 0, len(order))
	for _, peer := range order {
		out = append(out, *byOwner[peer])
	}
	return out
}
