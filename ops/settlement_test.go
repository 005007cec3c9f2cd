package ops

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

// TestTriggerSettlementAtThreshold reproduces spec.md §8 scenario 5: a single
// payment that crosses SettlementBatchThreshold forces a batch with one
// entry per unique recipient, and MarkSettled empties the pending queue.
func TestTriggerSettlementAtThreshold(t *testing.T) {
	h := newTestHarness()
	alice := h.newNode(t, 1_000_000_000_000)
	bob := h.newNode(t, 1_000_000_000_000)
	h.linkKeys(alice, bob)
	ctx := context.Background()

	mf, err := alice.Create(types.ContentL0, []byte("big"), types.Metadata{Title: "doc"}, types.Hash{})
	require.NoError(t, err)
	price := types.SettlementBatchThreshold + 1
	_, err = alice.Publish(ctx, mf.Hash, types.VisibilityShared, price, nil)
	require.NoError(t, err)

	_, err = bob.OpenChannel(ctx, alice.Self(), price+1_000)
	require.NoError(t, err)

	_, _, _, err = bob.Query(ctx, mf.Hash, 0)
	require.NoError(t, err)

	total, err := alice.store.Queue().GetPendingTotal()
	require.NoError(t, err)
	require.GreaterOrEqual(t, total, types.SettlementBatchThreshold)

	// HandleQueryRequest's own background trigger races this call; either
	// one settles the batch, and singleflight coalesces a second attempt
	// into the first's result, so calling it here makes the outcome
	// deterministic regardless of goroutine scheduling.
	require.NoError(t, alice.TriggerSettlement(ctx))

	pending, err := alice.store.Queue().GetPending()
	require.NoError(t, err)
	require.Empty(t, pending)

	totalAfter, err := alice.store.Queue().GetPendingTotal()
	require.NoError(t, err)
	require.Zero(t, totalAfter)
}

// TestQueryRejectsReplayedNonce reproduces spec.md §8 scenario 4: a payment
// whose nonce does not strictly exceed the channel's current nonce is
// rejected, and the channel/queue are left exactly as before the attempt.
func TestQueryRejectsReplayedNonce(t *testing.T) {
	h := newTestHarness()
	alice := h.newNode(t, 10_000_000_000)
	bob := h.newNode(t, 10_000_000_000)
	h.linkKeys(alice, bob)
	ctx := context.Background()

	mf, err := alice.Create(types.ContentL0, []byte("hello"), types.Metadata{Title: "doc"}, types.Hash{})
	require.NoError(t, err)
	_, err = alice.Publish(ctx, mf.Hash, types.VisibilityShared, 50, nil)
	require.NoError(t, err)

	_, _, _, err = bob.Query(ctx, mf.Hash, 0)
	require.NoError(t, err)

	ch, err := bob.store.Channels().Get(alice.Self())
	require.NoError(t, err)
	aliceCh, err := alice.store.Channels().Get(bob.Self())
	require.NoError(t, err)
	balanceBefore := aliceCh.MyBalance
	totalBefore, err := alice.store.Queue().GetPendingTotal()
	require.NoError(t, err)

	replay := types.Payment{
		ChannelID:          ch.ChannelID,
		Amount:             50,
		Recipient:          mf.Owner,
		QueryHash:          mf.Hash,
		ProvenanceSnapshot: mf.Provenance.RootL0L1,
		Nonce:              ch.Nonce, // not strictly greater than the channel's current nonce
		Timestamp:          bob.now(),
	}
	replay.ID = crypto.PaymentID(replay.ChannelID, replay.Nonce, replay.Amount, replay.Recipient)
	replay.PayerSignature = bob.sign(wire.PaymentSigningBytes(replay))

	_, err = alice.HandleQueryRequest(wire.QueryRequest{
		Hash:      mf.Hash,
		Payment:   replay,
		Timestamp: alice.now(),
		Sender:    bob.Self(),
	})
	require.True(t, errors.Is(err, types.ErrInvalidNonce))

	chAfter, err := alice.store.Channels().Get(bob.Self())
	require.NoError(t, err)
	require.Equal(t, balanceBefore, chAfter.MyBalance)

	totalAfter, err := alice.store.Queue().GetPendingTotal()
	require.NoError(t, err)
	require.Equal(t, totalBefore, totalAfter)
}
