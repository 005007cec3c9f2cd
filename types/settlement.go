package types

// QueuedDistribution is a settlement-queue entry, spec.md §3.8.
type QueuedDistribution struct {
	PaymentID  Hash   `cbor:"payment_id"`
	Recipient  PeerID `cbor:"recipient"`
	Amount     uint64 `cbor:"amount"`
	SourceHash Hash   `cbor:"source_hash"` // for audit
	QueuedAt   int64  `cbor:"queued_at"`
	Settled    bool   `cbor:"settled"`
	BatchID    *Hash  `cbor:"batch_id,omitempty"`
}

// SettlementEntry is one recipient's aggregated payout within a batch,
// spec.md §3.9.
type SettlementEntry struct {
	Recipient        PeerID   `cbor:"recipient"`
	Amount           uint64   `cbor:"amount"`
	ProvenanceHashes []Hash   `cbor:"provenance_hashes"`
	PaymentIDs       []Hash   `cbor:"payment_ids"`
}

// SettlementBatch is an aggregated, Merkle-committed set of payouts,
// spec.md §3.9.
type SettlementBatch struct {
	BatchID    Hash              `cbor:"batch_id"`
	Entries    []SettlementEntry `cbor:"entries"`
	MerkleRoot Hash              `cbor:"merkle_root"`
}
