package types

// ChannelState is the payment channel's lifecycle, spec.md §3.6/§3.10.
type ChannelState uint8

const (
	ChannelOpening ChannelState = iota
	ChannelOpen
	ChannelClosing
	ChannelClosed
	ChannelDisputed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelOpening:
		return "opening"
	case ChannelOpen:
		return "open"
	case ChannelClosing:
		return "closing"
	case ChannelClosed:
		return "closed"
	case ChannelDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// Channel is a bilaterally-signed off-ledger balance, spec.md §3.6.
//
// Invariant (enforced by store/valid, not here): MyBalance+TheirBalance
// equals the on-ledger escrow minus any settled-off amount; Nonce is
// strictly monotonic per update.
type Channel struct {
	ChannelID      Hash         `cbor:"channel_id"`
	Peer           PeerID       `cbor:"peer"`
	State          ChannelState `cbor:"state"`
	MyBalance      uint64       `cbor:"my_balance"`
	TheirBalance   uint64       `cbor:"their_balance"`
	Nonce          uint64       `cbor:"nonce"`
	LastUpdate     int64        `cbor:"last_update"`
	PendingPayments []Hash      `cbor:"pending_payments"` // payment ids not yet enqueued/settled
}

// SignedChannelState is the dispute-evidence payload exchanged on every
// update and submitted to the ledger on dispute/counter-dispute, spec.md
// §4.6.
type SignedChannelState struct {
	ChannelID        Hash      `cbor:"channel_id"`
	Nonce            uint64    `cbor:"nonce"`
	BalanceInitiator uint64    `cbor:"balance_initiator"`
	BalanceResponder uint64    `cbor:"balance_responder"`
	StateHash        Hash      `cbor:"state_hash"`
	SignatureA       Signature `cbor:"signature_a"`
	SignatureB       Signature `cbor:"signature_b,omitempty"`
}
