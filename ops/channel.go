package ops

import (
	"context"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/settle"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

// OpenChannel opens a channel with peer, depositing myDeposit, spec.md §4.6
// open_channel(). It submits the deposit to the ledger first (so the
// channel_id the ledger assigns is authoritative), then negotiates the
// peer's counter-deposit over the wire before marking the channel Open.
func (n *Node) OpenChannel(ctx context.Context, peer types.PeerID, myDeposit uint64) (types.Channel, error) {
	if n.store.Channels().Exists(peer) {
		return types.Channel{}, types.NewError(types.CodeInvalidManifest, "ops: channel with peer already exists")
	}

	channelID, _, err := n.ledger.OpenChannel(ctx, peer, myDeposit, 0)
	if err != nil {
		return types.Channel{}, fmtTxErr("open_channel", err)
	}

	ch := types.Channel{
		ChannelID:  channelID,
		Peer:       peer,
		State:      types.ChannelOpening,
		MyBalance:  myDeposit,
		LastUpdate: n.now(),
	}
	if err := n.store.Channels().Create(ch); err != nil {
		return types.Channel{}, err
	}

	resp, err := n.send(ctx, peer, wire.TypeChannelOpen, wire.ChannelOpen{
		ChannelID: channelID,
		Deposit:   myDeposit,
		Timestamp: n.now(),
		Sender:    n.Self(),
	})
	if err != nil {
		return types.Channel{}, err
	}
	accept, ok := resp.(*wire.ChannelAccept)
	if !ok || accept.ChannelID != channelID {
		return types.Channel{}, types.NewError(types.CodeInvalidManifest, "ops: unexpected response to channel_open")
	}

	ch.State = types.ChannelOpen
	ch.TheirBalance = accept.PeerDeposit
	ch.LastUpdate = n.now()
	if err := n.store.Channels().Update(ch); err != nil {
		return types.Channel{}, err
	}
	return ch, nil
}

// HandleChannelOpen is the server side of open_channel, spec.md §4.6
// handle_channel_open(): auto-accept with the node's configured default
// deposit if no channel with the proposer exists yet.
func (n *Node) HandleChannelOpen(req wire.ChannelOpen) (wire.ChannelAccept, error) {
	if n.store.Channels().Exists(req.Sender) {
		return wire.ChannelAccept{}, types.NewError(types.CodeInvalidManifest, "ops: channel with peer already exists")
	}
	ch := types.Channel{
		ChannelID:    req.ChannelID,
		Peer:         req.Sender,
		State:        types.ChannelOpen,
		MyBalance:    n.defaultDeposit,
		TheirBalance: req.Deposit,
		LastUpdate:   n.now(),
	}
	if err := n.store.Channels().Create(ch); err != nil {
		return wire.ChannelAccept{}, err
	}
	return wire.ChannelAccept{
		ChannelID:   req.ChannelID,
		PeerDeposit: n.defaultDeposit,
		Timestamp:   n.now(),
		Sender:      n.Self(),
	}, nil
}

// UpdateChannel folds a newly validated payment into channel state, bumping
// nonce and balances atomically and producing the signed state dispute
// evidence the counterparty should countersign, spec.md §4.6 update_channel().
func (n *Node) UpdateChannel(channelID types.Hash, payment types.Payment) (types.Channel, types.SignedChannelState, error) {
	ch, err := n.store.Channels().Credit(channelID, int64(payment.Amount), -int64(payment.Amount))
	if err != nil {
		return types.Channel{}, types.SignedChannelState{}, err
	}
	ch, err = n.store.Channels().IncrementNonce(channelID, payment.Nonce, n.now())
	if err != nil {
		return types.Channel{}, types.SignedChannelState{}, err
	}
	if err := n.store.Channels().AddPayment(channelID, payment.ID); err != nil {
		return types.Channel{}, types.SignedChannelState{}, err
	}

	state := n.signChannelState(ch)
	return ch, state, nil
}

func (n *Node) signChannelState(ch types.Channel) types.SignedChannelState {
	stateHash := crypto.ChannelStateHash(ch.ChannelID, ch.Nonce, ch.MyBalance, ch.TheirBalance)
	return types.SignedChannelState{
		ChannelID:        ch.ChannelID,
		Nonce:            ch.Nonce,
		BalanceInitiator: ch.MyBalance,
		BalanceResponder: ch.TheirBalance,
		StateHash:        stateHash,
		SignatureA:       n.sign(stateHash[:]),
	}
}

// CloseChannel runs the cooperative 2-of-2 close flow and submits the
// jointly signed final state to the ledger, spec.md §4.6 close_channel().
func (n *Node) CloseChannel(ctx context.Context, channelID types.Hash) (string, error) {
	ch, err := n.store.Channels().GetByID(channelID)
	if err != nil {
		return "", err
	}

	mine := n.signChannelState(ch)
	resp, err := n.send(ctx, ch.Peer, wire.TypeChannelClose, wire.ChannelClose{
		State:     mine,
		Timestamp: n.now(),
		Sender:    n.Self(),
	})
	if err != nil {
		return "", err
	}
	ack, ok := resp.(*wire.ChannelCloseAck)
	if !ok || ack.State.ChannelID != channelID || ack.State.StateHash != mine.StateHash {
		return "", types.NewError(types.CodeInvalidManifest, "ops: close ack does not match proposed state")
	}
	mine.SignatureB = ack.State.SignatureA

	txID, err := n.ledger.CloseChannel(ctx, channelID, mine)
	if err != nil {
		return "", fmtTxErr("close_channel", err)
	}

	ch.State = types.ChannelClosed
	ch.LastUpdate = n.now()
	if err := n.store.Channels().Update(ch); err != nil {
		return "", err
	}
	// The final signed state supersedes every individual payment that led to
	// it, so the per-channel dispute trail is no longer needed.
	if err := n.store.Channels().ClearPayments(channelID); err != nil {
		return "", err
	}
	return txID, nil
}

// HandleChannelClose is the counterparty's side of the cooperative close
// flow: countersign the proposed final state.
func (n *Node) HandleChannelClose(req wire.ChannelClose) (wire.ChannelCloseAck, error) {
	ch, err := n.store.Channels().GetByID(req.State.ChannelID)
	if err != nil {
		return wire.ChannelCloseAck{}, err
	}
	want := crypto.ChannelStateHash(ch.ChannelID, ch.Nonce, ch.TheirBalance, ch.MyBalance)
	if want != req.State.StateHash {
		return wire.ChannelCloseAck{}, types.NewError(types.CodeInvalidManifest, "ops: close proposal does not match local channel state")
	}

	sig := n.sign(req.State.StateHash[:])
	ack := req.State
	ack.SignatureA = sig

	ch.State = types.ChannelClosed
	ch.LastUpdate = n.now()
	if err := n.store.Channels().Update(ch); err != nil {
		return wire.ChannelCloseAck{}, err
	}
	if err := n.store.Channels().ClearPayments(req.State.ChannelID); err != nil {
		return wire.ChannelCloseAck{}, err
	}

	return wire.ChannelCloseAck{
		State:     ack,
		Timestamp: n.now(),
		Sender:    n.Self(),
	}, nil
}

// DisputeChannel submits the highest known signed state to the ledger,
// spec.md §4.6 dispute_channel(). The ledger contract waits
// types.ChannelDisputePeriodMS and resolves to the highest-nonce state seen.
func (n *Node) DisputeChannel(ctx context.Context, channelID types.Hash, myState types.SignedChannelState) (string, error) {
	txID, err := n.ledger.DisputeChannel(ctx, channelID, myState)
	if err != nil {
		if err == settle.ErrChannelDisputed {
			return "", err
		}
		return "", fmtTxErr("dispute_channel", err)
	}
	ch, err := n.store.Channels().GetByID(channelID)
	if err != nil {
		return txID, err
	}
	ch.State = types.ChannelDisputed
	ch.LastUpdate = n.now()
	_ = n.store.Channels().Update(ch)
	return txID, nil
}

// CounterDispute submits a higher-nonce state than the one currently
// disputed, spec.md §4.6.
func (n *Node) CounterDispute(ctx context.Context, channelID types.Hash, betterState types.SignedChannelState) (string, error) {
	txID, err := n.ledger.CounterDispute(ctx, channelID, betterState)
	if err != nil {
		return "", fmtTxErr("counter_dispute", err)
	}
	return txID, nil
}
