package ops

import (
	"context"
	"errors"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/econ"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/valid"
	"github.com/nodalync/node/wire"
)

// Query is the requester side of a priced content fetch, spec.md §4.6
// query(). amount lets a caller offer more than the listed price (e.g. a
// tip); passing 0 pays exactly the manifest's price. On success the content
// is cached locally alongside its receipt.
func (n *Node) Query(ctx context.Context, hash types.Hash, amount uint64) ([]byte, types.Manifest, types.PaymentReceipt, error) {
	announce, found, err := n.overlay.DHTGet(ctx, hash)
	if err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, fmtTxErr("query", err)
	}
	if !found {
		return nil, types.Manifest{}, types.PaymentReceipt{}, types.NewError(types.CodeNotFound, "ops: content not announced on overlay")
	}
	owner := announce.Sender

	resp, err := n.send(ctx, owner, wire.TypePreviewRequest, wire.PreviewRequest{
		Hash:      hash,
		Timestamp: n.now(),
		Sender:    n.Self(),
	})
	if err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}
	preview, ok := resp.(*wire.PreviewResponse)
	if !ok {
		return nil, types.Manifest{}, types.PaymentReceipt{}, types.NewError(types.CodeInvalidManifest, "ops: unexpected response to preview_request")
	}
	mf := preview.Manifest

	ch, err := n.store.Channels().Get(owner)
	if err != nil {
		if !errors.Is(err, types.ErrChannelNotFound) {
			return nil, types.Manifest{}, types.PaymentReceipt{}, err
		}
		ch, err = n.autoOpenChannel(ctx, owner)
		if err != nil {
			return nil, types.Manifest{}, types.PaymentReceipt{}, err
		}
	}

	if amount == 0 {
		amount = mf.Economics.Price
	}
	if amount < mf.Economics.Price {
		return nil, types.Manifest{}, types.PaymentReceipt{}, types.NewError(types.CodePaymentInvalid, "ops: offered amount below manifest price")
	}
	if ch.MyBalance < amount {
		return nil, types.Manifest{}, types.PaymentReceipt{}, types.NewError(types.CodeInsufficientBalance, "ops: my_balance insufficient for query amount")
	}

	payment := types.Payment{
		ChannelID:          ch.ChannelID,
		Amount:             amount,
		Recipient:          mf.Owner,
		QueryHash:          hash,
		ProvenanceSnapshot: mf.Provenance.RootL0L1,
		Nonce:              ch.Nonce + 1,
		Timestamp:          n.now(),
	}
	payment.ID = crypto.PaymentID(payment.ChannelID, payment.Nonce, payment.Amount, payment.Recipient)
	payment.PayerSignature = n.sign(wire.PaymentSigningBytes(payment))

	resp2, err := n.send(ctx, owner, wire.TypeQueryRequest, wire.QueryRequest{
		Hash:      hash,
		Payment:   payment,
		Timestamp: n.now(),
		Sender:    n.Self(),
	})
	if err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}
	qresp, ok := resp2.(*wire.QueryResponse)
	if !ok {
		return nil, types.Manifest{}, types.PaymentReceipt{}, types.NewError(types.CodeInvalidManifest, "ops: unexpected response to query_request")
	}

	// Hash mismatch is fatal to the query: no channel debit, no cache write,
	// spec.md §4.6 step 5 / §7.
	if crypto.ContentHash(qresp.Content) != hash {
		return nil, types.Manifest{}, types.PaymentReceipt{}, types.NewError(types.CodeInvalidHash, "ops: response content does not hash to requested hash")
	}

	ch, err = n.store.Channels().Credit(ch.ChannelID, -int64(amount), int64(amount))
	if err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}
	if _, err := n.store.Channels().IncrementNonce(ch.ChannelID, payment.Nonce, n.now()); err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}
	if err := n.store.Channels().AddPayment(ch.ChannelID, payment.ID); err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}
	if err := n.store.Cache().Put(hash, qresp.Content, qresp.Receipt); err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}
	// Keep a local read-replica of the paid-for manifest so a later Derive
	// can find it via "locally owned or present in the query cache"
	// (spec.md §4.6 derive()) without re-fetching it over the wire.
	if err := n.store.Manifests().Put(qresp.Manifest); err != nil {
		return nil, types.Manifest{}, types.PaymentReceipt{}, err
	}

	return qresp.Content, qresp.Manifest, qresp.Receipt, nil
}

// autoOpenChannel opens a channel to peer capped at the node's available
// ledger balance, refusing with PaymentRequired if that balance can't meet
// MinDeposit, spec.md §4.6 query() step 2.
func (n *Node) autoOpenChannel(ctx context.Context, peer types.PeerID) (types.Channel, error) {
	balance, err := n.ledger.GetBalance(ctx)
	if err != nil {
		return types.Channel{}, fmtTxErr("query", err)
	}
	if balance < n.minDeposit {
		return types.Channel{}, types.NewError(types.CodePaymentRequired, "ops: ledger balance below minimum auto-open deposit")
	}
	deposit := n.defaultDeposit
	if balance < deposit {
		deposit = balance
	}
	return n.OpenChannel(ctx, peer, deposit)
}

// HandleQueryRequest is the owner side of a priced content fetch, spec.md
// §4.6's query handler. req must already have passed valid.CheckMessage
// (signature, skew, sender identity) at the transport layer.
func (n *Node) HandleQueryRequest(req wire.QueryRequest) (wire.QueryResponse, error) {
	mf, err := n.store.Manifests().Get(req.Hash)
	if err != nil {
		return wire.QueryResponse{}, err
	}

	// Bond posting isn't tracked by any store subsystem in this protocol
	// version (spec.md doesn't name one), so require_bond policies can never
	// be satisfied externally; 0 is the only value this node can attest to.
	if err := valid.CheckAccess(mf, req.Sender, 0); err != nil {
		return wire.QueryResponse{}, err
	}
	if !n.Allow(req.Sender, mf.Access.MaxQueriesPerPeer) {
		return wire.QueryResponse{}, types.NewError(types.CodeRateLimited, "ops: query rate limit exceeded")
	}

	ch, err := n.store.Channels().Get(req.Sender)
	if err != nil {
		return wire.QueryResponse{}, err
	}
	payerPub, ok := n.peerKey(req.Sender)
	if !ok {
		return wire.QueryResponse{}, types.NewError(types.CodePeerNotFound, "ops: unknown public key for requester")
	}
	signingBytes := wire.PaymentSigningBytes(req.Payment)
	if err := valid.CheckPayment(req.Payment, mf, ch, payerPub, signingBytes); err != nil {
		return wire.QueryResponse{}, err
	}

	ch, _, err = n.UpdateChannel(ch.ChannelID, req.Payment)
	if err != nil {
		return wire.QueryResponse{}, err
	}

	distributions := econ.Split(req.Payment.Amount, mf.Owner, mf.Provenance.RootL0L1)
	now := n.now()
	for _, d := range distributions {
		if err := n.store.Queue().Enqueue(types.QueuedDistribution{
			PaymentID:  req.Payment.ID,
			Recipient:  d.Recipient,
			Amount:     d.Amount,
			SourceHash: d.SourceHash,
			QueuedAt:   now,
		}); err != nil {
			return wire.QueryResponse{}, err
		}
	}

	mf.Economics.TotalQueries++
	mf.Economics.TotalRevenue += req.Payment.Amount
	mf.UpdatedAt = now
	if err := n.store.Manifests().Put(mf); err != nil {
		return wire.QueryResponse{}, err
	}

	n.maybeTriggerSettlement()

	data, err := n.store.Content().Load(req.Hash)
	if err != nil {
		return wire.QueryResponse{}, err
	}

	receipt := types.PaymentReceipt{
		PaymentID:            req.Payment.ID,
		Amount:               req.Payment.Amount,
		Timestamp:            now,
		ChannelNonce:         ch.Nonce,
		DistributorSignature: n.sign(req.Payment.ID[:]),
	}

	return wire.QueryResponse{
		Hash:      req.Hash,
		Content:   data,
		Manifest:  mf,
		Receipt:   receipt,
		Timestamp: now,
		Sender:    n.Self(),
	}, nil
}
