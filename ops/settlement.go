package ops

import (
	"context"
	"time"

	"github.com/nodalync/node/econ"
	"github.com/nodalync/node/net"
	"github.com/nodalync/node/settle"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

// maybeTriggerSettlement fires TriggerSettlement in the background after a
// query handler commits, spec.md §4.6 query-handler step 6. The trigger
// signal is idempotent (spec.md §5): concurrent wake-ups coalesce onto the
// single in-flight run singleflight.Group already serializes.
func (n *Node) maybeTriggerSettlement() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), net.SendTimeout)
		defer cancel()
		if err := n.TriggerSettlement(ctx); err != nil {
			n.log.WithError(err).Warn("ops: background settlement trigger failed")
		}
	}()
}

// TriggerSettlement runs econ's threshold/interval policy and, if due,
// builds and submits a settlement batch, spec.md §4.6 trigger_settlement().
// Concurrent callers coalesce onto a single run via singleflight.
func (n *Node) TriggerSettlement(ctx context.Context) error {
	_, err, _ := n.settleGroup.Do("settle", func() (interface{}, error) {
		return nil, n.runSettlement(ctx)
	})
	return err
}

func (n *Node) runSettlement(ctx context.Context) error {
	pendingTotal, err := n.store.Queue().GetPendingTotal()
	if err != nil {
		return err
	}
	lastTime, err := n.store.Queue().GetLastSettlementTime()
	if err != nil {
		return err
	}
	if !econ.ShouldSettle(pendingTotal, lastTime, n.now()) {
		return nil
	}

	// Snapshot pending entries before building the batch, spec.md §5: a
	// concurrently running trigger must not observe enqueues that arrive
	// mid-build.
	pending, err := n.store.Queue().GetPending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	entries := aggregateQueued(pending)
	batch, err := econ.BuildBatch(entries, func(e types.SettlementEntry) []byte {
		b, err := wire.MarshalPayload(e)
		if err != nil {
			panic(err) // SettlementEntry always encodes; see wire.PaymentSigningBytes.
		}
		return b
	})
	if err != nil {
		return fmtTxErr("trigger_settlement", err)
	}

	txID, err := n.ledger.SettleBatch(ctx, batch)
	if err != nil {
		return fmtTxErr("trigger_settlement", err)
	}
	status, err := n.ledger.VerifySettlement(ctx, txID)
	if err != nil {
		return fmtTxErr("trigger_settlement", err)
	}
	if status != settle.TxConfirmed {
		// Not marked settled unless the ledger reports Confirmed, spec.md §7.
		return types.NewError(types.CodeInternalError, "ops: settlement batch not confirmed on-ledger")
	}

	paymentIDs := make([]types.Hash, 0, len(pending))
	for _, d := range pending {
		paymentIDs = append(paymentIDs, d.PaymentID)
	}
	if err := n.store.Queue().MarkSettled(paymentIDs, batch.BatchID); err != nil {
		return err
	}
	if err := n.store.Queue().SetLastSettlementTime(n.now()); err != nil {
		return err
	}

	return n.broadcast(ctx, wire.TypeSettleConfirm, wire.SettleConfirm{
		BatchID:   batch.BatchID,
		TxID:      txID,
		Timestamp: n.now(),
		Sender:    n.Self(),
	})
}

// aggregateQueued folds already-split queue entries into one
// SettlementEntry per recipient, spec.md §3.9/§4.5. Unlike econ.Aggregate
// (which recomputes splits from raw Payments), queue entries are the
// post-split Distributions a prior query handler already enqueued, so this
// only needs to dedup by recipient/source/payment-id.
func aggregateQueued(pending []types.QueuedDistribution) []types.SettlementEntry {
	type bucket struct {
		entry       types.SettlementEntry
		seenSources map[types.Hash]bool
		seenIDs     map[types.Hash]bool
	}
	byRecipient := make(map[types.PeerID]*bucket)
	order := make([]types.PeerID, 0)

	for _, d := range pending {
		b, ok := byRecipient[d.Recipient]
		if !ok {
			b = &bucket{
				entry:       types.SettlementEntry{Recipient: d.Recipient},
				seenSources: make(map[types.Hash]bool),
				seenIDs:     make(map[types.Hash]bool),
			}
			byRecipient[d.Recipient] = b
			order = append(order, d.Recipient)
		}
		b.entry.Amount += d.Amount
		if !d.SourceHash.IsZero() && !b.seenSources[d.SourceHash] {
			b.seenSources[d.SourceHash] = true
			b.entry.ProvenanceHashes = append(b.entry.ProvenanceHashes, d.SourceHash)
		}
		if !b.seenIDs[d.PaymentID] {
			b.seenIDs[d.PaymentID] = true
			b.entry.PaymentIDs = append(b.entry.PaymentIDs, d.PaymentID)
		}
	}

	out := make([]types.SettlementEntry, 0, len(order))
	for _, r := range order {
		out = append(out, byRecipient[r].entry)
	}
	return out
}

// Reconcile periodically resubmits any settlement run that's overdue per
// econ's interval policy even with no fresh queries arriving, the
// background counterpart to maybeTriggerSettlement's per-query signal.
// It drives its own time.Ticker at the given interval and returns when ctx
// is done, so callers typically run it in its own goroutine.
func (n *Node) Reconcile(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.TriggerSettlement(ctx); err != nil {
				n.log.WithError(err).Warn("ops: periodic settlement reconcile failed")
			}
		}
	}
}
