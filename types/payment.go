package types

// Payment is a single priced query's payment, spec.md §3.7. Per spec.md §9's
// Open Question, ChannelID is included even though the abstract model
// mentions it only implicitly — it's required to compute Id and to look
// payments up by channel.
type Payment struct {
	ID                Hash              `cbor:"id"`
	ChannelID         Hash              `cbor:"channel_id"`
	Amount            uint64            `cbor:"amount"`
	Recipient         PeerID            `cbor:"recipient"`
	QueryHash         Hash              `cbor:"query_hash"`
	ProvenanceSnapshot []ProvenanceEntry `cbor:"provenance_snapshot"`
	Nonce             uint64            `cbor:"nonce"`
	Timestamp         int64             `cbor:"timestamp"`
	PayerSignature    Signature         `cbor:"payer_signature"`
}

// PaymentReceipt is returned to the requester on a successful query,
// spec.md §4.6.
type PaymentReceipt struct {
	PaymentID          Hash      `cbor:"payment_id"`
	Amount             uint64    `cbor:"amount"`
	Timestamp          int64     `cbor:"timestamp"`
	ChannelNonce       uint64    `cbor:"channel_nonce"`
	DistributorSignature Signature `cbor:"distributor_signature"`
}

// Distribution is one recipient's share of a single payment, computed by
// econ.Split (spec.md §4.5).
type Distribution struct {
	Recipient  PeerID `cbor:"recipient"`
	Amount     uint64 `cbor:"amount"`
	SourceHash Hash   `cbor:"source_hash"` // the root (or owner manifest) this share is attributed to
}
