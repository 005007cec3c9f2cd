package wire

import (
	"fmt"

	"github.com/nodalync/node/types"
)

// PaymentSigningBytes returns the deterministic bytes a Payment's
// PayerSignature covers: the payment encoded canonically with the signature
// field zeroed, mirroring how envelope signatures zero Signature before
// hashing (spec.md §3.7, §4.2).
func PaymentSigningBytes(p types.Payment) []byte {
	p.PayerSignature = types.Signature{}
	b, err := MarshalPayload(p)
	if err != nil {
		panic(fmt.Sprintf("wire: marshal payment for signing: %v", err))
	}
	return b
}

// AnnouncePayload is the DHT put value for a published (Shared) hash,
// spec.md §6.2.
type AnnouncePayload struct {
	Hash        types.Hash        `cbor:"hash"`
	ContentType types.ContentType `cbor:"content_type"`
	Title       string            `cbor:"title"`
	L1Summary   *types.L1Summary  `cbor:"l1_summary,omitempty"`
	Price       uint64            `cbor:"price"`
	Addresses   []string          `cbor:"addresses"`
	Timestamp   int64             `cbor:"timestamp"`
	Sender      types.PeerID      `cbor:"sender"`
}

// PreviewRequest asks a peer for a manifest and its L1 summary, free of
// charge (spec.md §4.6 preview).
type PreviewRequest struct {
	Hash      types.Hash   `cbor:"hash"`
	Timestamp int64        `cbor:"timestamp"`
	Sender    types.PeerID `cbor:"sender"`
}

// PreviewResponse answers a PreviewRequest.
type PreviewResponse struct {
	Manifest  types.Manifest   `cbor:"manifest"`
	L1Summary *types.L1Summary `cbor:"l1_summary,omitempty"`
	Timestamp int64            `cbor:"timestamp"`
	Sender    types.PeerID     `cbor:"sender"`
}

// QueryRequest is the requester's priced content request, spec.md §4.6.
type QueryRequest struct {
	Hash      types.Hash    `cbor:"hash"`
	Payment   types.Payment `cbor:"payment"`
	Timestamp int64         `cbor:"timestamp"`
	Sender    types.PeerID  `cbor:"sender"`
}

// QueryResponse carries the paid-for content back to the requester.
type QueryResponse struct {
	Hash      types.Hash           `cbor:"hash"`
	Content   []byte               `cbor:"content"`
	Manifest  types.Manifest       `cbor:"manifest"`
	Receipt   types.PaymentReceipt `cbor:"receipt"`
	Timestamp int64                `cbor:"timestamp"`
	Sender    types.PeerID         `cbor:"sender"`
}

// VersionRequest asks for the version chain rooted at Root (get_versions,
// spec.md §4.3).
type VersionRequest struct {
	Root      types.Hash   `cbor:"root"`
	Timestamp int64        `cbor:"timestamp"`
	Sender    types.PeerID `cbor:"sender"`
}

// VersionResponse answers a VersionRequest with the chain ordered by
// version.number.
type VersionResponse struct {
	Versions  []types.Version `cbor:"versions"`
	Timestamp int64           `cbor:"timestamp"`
	Sender    types.PeerID    `cbor:"sender"`
}

// ChannelOpen proposes opening a channel with the given initial deposit,
// spec.md §4.6.
type ChannelOpen struct {
	ChannelID types.Hash   `cbor:"channel_id"`
	Deposit   uint64       `cbor:"deposit"`
	Timestamp int64        `cbor:"timestamp"`
	Sender    types.PeerID `cbor:"sender"`
}

// ChannelAccept replies to a ChannelOpen with the accepting peer's deposit.
type ChannelAccept struct {
	ChannelID   types.Hash   `cbor:"channel_id"`
	PeerDeposit uint64       `cbor:"peer_deposit"`
	Timestamp   int64        `cbor:"timestamp"`
	Sender      types.PeerID `cbor:"sender"`
}

// ChannelClose starts the cooperative close flow with the proposer's
// signature over the final balances.
type ChannelClose struct {
	State     types.SignedChannelState `cbor:"state"`
	Timestamp int64                    `cbor:"timestamp"`
	Sender    types.PeerID             `cbor:"sender"`
}

// ChannelCloseAck carries the counterparty's signature back, completing the
// 2-of-2 signed final state before ledger submission.
type ChannelCloseAck struct {
	State     types.SignedChannelState `cbor:"state"`
	Timestamp int64                    `cbor:"timestamp"`
	Sender    types.PeerID             `cbor:"sender"`
}

// SettleConfirm is broadcast after a settlement batch is confirmed on-ledger,
// spec.md §4.6.
type SettleConfirm struct {
	BatchID   types.Hash   `cbor:"batch_id"`
	TxID      string       `cbor:"tx_id"`
	Timestamp int64        `cbor:"timestamp"`
	Sender    types.PeerID `cbor:"sender"`
}

// PeerPing/PeerPong are a minimal liveness pair in the Peer type range.
type PeerPing struct {
	Nonce     uint64       `cbor:"nonce"`
	Timestamp int64        `cbor:"timestamp"`
	Sender    types.PeerID `cbor:"sender"`
}

type PeerPong struct {
	Nonce     uint64       `cbor:"nonce"`
	Timestamp int64        `cbor:"timestamp"`
	Sender    types.PeerID `cbor:"sender"`
}

func init() {
	registerPrototype(TypeDiscoveryAnnounce, func() interface{} { return &AnnouncePayload{} })
	registerPrototype(TypePreviewRequest, func() interface{} { return &PreviewRequest{} })
	registerPrototype(TypePreviewResponse, func() interface{} { return &PreviewResponse{} })
	registerPrototype(TypeQueryRequest, func() interface{} { return &QueryRequest{} })
	registerPrototype(TypeQueryResponse, func() interface{} { return &QueryResponse{} })
	registerPrototype(TypeVersionRequest, func() interface{} { return &VersionRequest{} })
	registerPrototype(TypeVersionResponse, func() interface{} { return &VersionResponse{} })
	registerPrototype(TypeChannelOpen, func() interface{} { return &ChannelOpen{} })
	registerPrototype(TypeChannelAccept, func() interface{} { return &ChannelAccept{} })
	registerPrototype(TypeChannelClose, func() interface{} { return &ChannelClose{} })
	registerPrototype(TypeChannelCloseAck, func() interface{} { return &ChannelCloseAck{} })
	registerPrototype(TypeSettleConfirm, func() interface{} { return &SettleConfirm{} })
	registerPrototype(TypePeerPing, func() interface{} { return &PeerPing{} })
	registerPrototype(TypePeerPong, func() interface{} { return &PeerPong{} })
}

// MessageTimestamp extracts the Timestamp field from any registered payload
// via a type switch, for valid.CheckMessage's skew check. Returns false if
// payload is not a recognized message type.
func MessageTimestamp(payload interface{}) (int64, bool) {
	switch p := payload.(type) {
	case *AnnouncePayload:
		return p.Timestamp, true
	case *PreviewRequest:
		return p.Timestamp, true
	case *PreviewResponse:
		return p.Timestamp, true
	case *QueryRequest:
		return p.Timestamp, true
	case *QueryResponse:
		return p.Timestamp, true
	case *VersionRequest:
		return p.Timestamp, true
	case *VersionResponse:
		return p.Timestamp, true
	case *ChannelOpen:
		return p.Timestamp, true
	case *ChannelAccept:
		return p.Timestamp, true
	case *ChannelClose:
		return p.Timestamp, true
	case *ChannelCloseAck:
		return p.Timestamp, true
	case *SettleConfirm:
		return p.Timestamp, true
	case *PeerPing:
		return p.Timestamp, true
	case *PeerPong:
		return p.Timestamp, true
	default:
		return 0, false
	}
}

// MessageSender extracts the Sender field the same way MessageTimestamp
// extracts Timestamp.
func MessageSender(payload interface{}) (types.PeerID, bool) {
	switch p := payload.(type) {
	case *AnnouncePayload:
		return p.Sender, true
	case *PreviewRequest:
		return p.Sender, true
	case *PreviewResponse:
		return p.Sender, true
	case *QueryRequest:
		return p.Sender, true
	case *QueryResponse:
		return p.Sender, true
	case *VersionRequest:
		return p.Sender, true
	case *VersionResponse:
		return p.Sender, true
	case *ChannelOpen:
		return p.Sender, true
	case *ChannelAccept:
		return p.Sender, true
	case *ChannelClose:
		return p.Sender, true
	case *ChannelCloseAck:
		return p.Sender, true
	case *SettleConfirm:
		return p.Sender, true
	case *PeerPing:
		return p.Sender, true
	case *PeerPong:
		return p.Sender, true
	default:
		return types.PeerID{}, false
	}
}
