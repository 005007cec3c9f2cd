package types

// Hard limits enforced by the valid package (spec.md §3.3–§4.1) and consulted
// by ops when constructing manifests.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
	MaxTags           = 20
	MaxTagLen         = 50
	MaxContentBytes   = 100 * 1024 * 1024 // 100 MB, spec.md §4.1
	MaxProvenanceDepth = 100

	MinPrice = 1
	MaxPrice = 10_000_000_000_000_000 // 10^16, spec.md §3.7

	// SettlementBatchThreshold is the pending-total in smallest units that
	// forces an immediate settlement run (spec.md §4.5).
	SettlementBatchThreshold uint64 = 10_000_000_000 // 10^10
	// SettlementMaxInterval is the maximum time between settlement runs in
	// milliseconds, regardless of pending total (spec.md §4.5).
	SettlementMaxIntervalMS int64 = 3_600_000 // 1 hour

	// MessageTimestampSkewMS is the maximum allowed |now - timestamp| for any
	// signed message (spec.md §4.4 rule 6, §6.1).
	MessageTimestampSkewMS int64 = 5 * 60 * 1000

	// ChannelDisputePeriodMS is the ledger-side wait before a dispute
	// resolves to the highest-nonce state submitted (spec.md §4.6).
	ChannelDisputePeriodMS int64 = 24 * 60 * 60 * 1000

	// OwnerShareNumerator/Denominator is the flat owner cut of every payment
	// before the provenance-root split (spec.md §4.5): 5%.
	OwnerShareNumerator   = 5
	OwnerShareDenominator = 100
)
