package econ

import (
	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

// Aggregate folds a set of payments' per-payment splits into one
// SettlementEntry per recipient, spec.md §4.5. splitFn computes a single
// payment's Distributions (normally econ.Split); it's a parameter so tests
// can supply canned splits without constructing full manifests.
func Aggregate(payments []types.Payment, ownerOf func(types.Hash) types.PeerID, splitFn func(types.Payment, types.PeerID) []types.Distribution) []types.SettlementEntry {
	type bucket struct {
		entry       types.SettlementEntry
		seenSources map[types.Hash]bool
	}
	byRecipient := make(map[types.PeerID]*bucket)
	order := make([]types.PeerID, 0)

	for _, p := range payments {
		owner := ownerOf(p.QueryHash)
		for _, d := range splitFn(p, owner) {
			if d.Amount == 0 {
				continue
			}
			b, ok := byRecipient[d.Recipient]
			if !ok {
				b = &bucket{
					entry:       types.SettlementEntry{Recipient: d.Recipient},
					seenSources: make(map[types.Hash]bool),
				}
				byRecipient[d.Recipient] = b
				order = append(order, d.Recipient)
			}
			b.entry.Amount += d.Amount
			if !d.SourceHash.IsZero() && !b.seenSources[d.SourceHash] {
				b.seenSources[d.SourceHash] = true
				b.entry.ProvenanceHashes = append(b.entry.ProvenanceHashes, d.SourceHash)
			}
			b.entry.PaymentIDs = appendUnique(b.entry.PaymentIDs, p.ID)
		}
	}

	out := make([]types.SettlementEntry, 0, len(order))
	for _, recipient := range order {
		out = append(out, byRecipient[recipient].entry)
	}
	return out
}

func concatBytes(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func appendUnique(ids []types.Hash, id types.Hash) []types.Hash {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// BuildBatch computes the settlement batch for entries: the Merkle root over
// each entry's canonical bytes, and batch_id = H(merkle_root || count ||
// first_payment_id), spec.md §4.5.
func BuildBatch(entries []types.SettlementEntry, encodeEntry func(types.SettlementEntry) []byte) (types.SettlementBatch, error) {
	leaves := make([][]byte, len(entries))
	for i, e := range entries {
		leaves[i] = encodeEntry(e)
	}
	root, err := Root(leaves)
	if err != nil {
		return types.SettlementBatch{}, err
	}

	var firstPaymentID types.Hash
	if len(entries) > 0 && len(entries[0].PaymentIDs) > 0 {
		firstPaymentID = entries[0].PaymentIDs[0]
	}
	count := uint64(len(entries))
	var countBuf [8]byte
	for i := 0; i < 8; i++ {
		countBuf[7-i] = byte(count >> (8 * i))
	}
	batchID := crypto.ContentHash(concatBytes(root.Bytes(), countBuf[:], firstPaymentID.Bytes()))

	return types.SettlementBatch{
		BatchID:    batchID,
		Entries:    entries,
		MerkleRoot: root,
	}, nil
}
