// Package settle declares the on-ledger settlement surface Nodalync
// consumes, spec.md §6.3. As with net.Overlay, only the interface lives
// here: the concrete chain/ledger backend is out of scope for this module.
package settle

import (
	"context"
	"errors"

	"github.com/nodalync/node/types"
)

// TxStatus is the confirmation state of a submitted transaction, spec.md
// §6.3.
type TxStatus uint8

const (
	TxPending TxStatus = iota
	TxConfirmed
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrChannelDisputed is returned by CloseChannel attempts made while a
// dispute's challenge period has not yet elapsed.
var ErrChannelDisputed = errors.New("settle: channel is under dispute")

// Ledger is the on-chain surface a node deposits into, attests content
// roots against, and settles payment channels and batches through.
type Ledger interface {
	Deposit(ctx context.Context, amount uint64) (txID string, err error)
	Withdraw(ctx context.Context, amount uint64) (txID string, err error)
	GetBalance(ctx context.Context) (uint64, error)

	// Attest records a content hash's provenance root on-ledger for public
	// verifiability.
	Attest(ctx context.Context, contentHash, provenanceRoot types.Hash) (txID string, err error)

	OpenChannel(ctx context.Context, peer types.PeerID, myDeposit, peerDeposit uint64) (channelID types.Hash, txID string, err error)
	CloseChannel(ctx context.Context, channelID types.Hash, state types.SignedChannelState) (txID string, err error)
	DisputeChannel(ctx context.Context, channelID types.Hash, state types.SignedChannelState) (txID string, err error)
	CounterDispute(ctx context.Context, channelID types.Hash, betterState types.SignedChannelState) (txID string, err error)
	ResolveDispute(ctx context.Context, channelID types.Hash) (txID string, err error)

	SettleBatch(ctx context.Context, batch types.SettlementBatch) (txID string, err error)
	VerifySettlement(ctx context.Context, txID string) (TxStatus, error)
}
