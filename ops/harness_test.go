package ops

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/net"
	"github.com/nodalync/node/settle"
	"github.com/nodalync/node/store"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/valid"
	"github.com/nodalync/node/wire"
)

// fakeLedger is an in-memory settle.Ledger good enough to drive ops tests:
// balances are tracked per node, every channel lifecycle call succeeds, and
// every submitted batch/tx is immediately Confirmed.
type fakeLedger struct {
	mu       sync.Mutex
	balance  uint64
	channels int
}

func newFakeLedger(balance uint64) *fakeLedger { return &fakeLedger{balance: balance} }

func (l *fakeLedger) Deposit(ctx context.Context, amount uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += amount
	return "tx-deposit", nil
}
func (l *fakeLedger) Withdraw(ctx context.Context, amount uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance -= amount
	return "tx-withdraw", nil
}
func (l *fakeLedger) GetBalance(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}
func (l *fakeLedger) Attest(ctx context.Context, contentHash, provenanceRoot types.Hash) (string, error) {
	return "tx-attest", nil
}
func (l *fakeLedger) OpenChannel(ctx context.Context, peer types.PeerID, myDeposit, peerDeposit uint64) (types.Hash, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channels++
	id := crypto.ContentHash([]byte{byte(l.channels)})
	return id, "tx-open", nil
}
func (l *fakeLedger) CloseChannel(ctx context.Context, channelID types.Hash, state types.SignedChannelState) (string, error) {
	return "tx-close", nil
}
func (l *fakeLedger) DisputeChannel(ctx context.Context, channelID types.Hash, state types.SignedChannelState) (string, error) {
	return "tx-dispute", nil
}
func (l *fakeLedger) CounterDispute(ctx context.Context, channelID types.Hash, betterState types.SignedChannelState) (string, error) {
	return "tx-counter", nil
}
func (l *fakeLedger) ResolveDispute(ctx context.Context, channelID types.Hash) (string, error) {
	return "tx-resolve", nil
}
func (l *fakeLedger) SettleBatch(ctx context.Context, batch types.SettlementBatch) (string, error) {
	return "tx-batch", nil
}
func (l *fakeLedger) VerifySettlement(ctx context.Context, txID string) (settle.TxStatus, error) {
	return settle.TxConfirmed, nil
}

var _ settle.Ledger = (*fakeLedger)(nil)

// fakeOverlay routes Send/Broadcast/DHT calls directly between in-process
// *Node instances, standing in for the out-of-scope transport layer: it
// decodes the envelope, dispatches to the right Handle* method by wire type,
// and re-encodes the handler's response the same way ops/transport.go does.
type fakeOverlay struct {
	mu        sync.Mutex
	nodes     map[types.PeerID]*Node
	announces map[types.Hash]wire.AnnouncePayload
}

func newFakeOverlay() *fakeOverlay {
	return &fakeOverlay{
		nodes:     make(map[types.PeerID]*Node),
		announces: make(map[types.Hash]wire.AnnouncePayload),
	}
}

func (o *fakeOverlay) register(n *Node) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nodes[n.Self()] = n
}

func (o *fakeOverlay) DHTAnnounce(ctx context.Context, hash types.Hash, payload wire.AnnouncePayload) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.announces[hash] = payload
	return nil
}

func (o *fakeOverlay) DHTGet(ctx context.Context, hash types.Hash) (wire.AnnouncePayload, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.announces[hash]
	return p, ok, nil
}

func (o *fakeOverlay) DHTRemove(ctx context.Context, hash types.Hash) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.announces, hash)
	return nil
}

func (o *fakeOverlay) Send(ctx context.Context, peer types.PeerID, envelope []byte) ([]byte, error) {
	o.mu.Lock()
	target, ok := o.nodes[peer]
	o.mu.Unlock()
	if !ok {
		return nil, types.NewError(types.CodePeerNotFound, "fakeOverlay: unknown peer")
	}

	env, err := wire.DecodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	payload, ok := wire.NewPayload(env.Type)
	if !ok {
		return nil, types.NewError(types.CodeInvalidManifest, "fakeOverlay: unrecognized type")
	}
	if err := wire.UnmarshalPayload(env.Payload, payload); err != nil {
		return nil, err
	}
	senderID, _ := wire.MessageSender(payload)
	senderPub, ok := target.peerKey(senderID)
	if !ok {
		return nil, types.NewError(types.CodePeerNotFound, "fakeOverlay: target doesn't know sender's key")
	}
	verified, err := valid.CheckMessage(env, senderPub, senderID, target.now())
	if err != nil {
		return nil, err
	}

	var respPayload interface{}
	var respType wire.Type
	switch req := verified.(type) {
	case *wire.PreviewRequest:
		resp, herr := target.HandlePreviewRequest(*req)
		if herr != nil {
			return nil, herr
		}
		respPayload, respType = resp, wire.TypePreviewResponse
	case *wire.QueryRequest:
		resp, herr := target.HandleQueryRequest(*req)
		if herr != nil {
			return nil, herr
		}
		respPayload, respType = resp, wire.TypeQueryResponse
	case *wire.VersionRequest:
		resp, herr := target.HandleVersionRequest(*req)
		if herr != nil {
			return nil, herr
		}
		respPayload, respType = resp, wire.TypeVersionResponse
	case *wire.ChannelOpen:
		resp, herr := target.HandleChannelOpen(*req)
		if herr != nil {
			return nil, herr
		}
		respPayload, respType = resp, wire.TypeChannelAccept
	case *wire.ChannelClose:
		resp, herr := target.HandleChannelClose(*req)
		if herr != nil {
			return nil, herr
		}
		respPayload, respType = resp, wire.TypeChannelCloseAck
	default:
		return nil, types.NewError(types.CodeInvalidManifest, "fakeOverlay: no handler for type")
	}

	return wire.EncodeMessage(respType, respPayload, target.sign)
}

func (o *fakeOverlay) Broadcast(ctx context.Context, envelope []byte) error {
	return nil
}

var _ net.Overlay = (*fakeOverlay)(nil)

// testHarness builds Nodes (newNode) with real store/crypto, all wired to one
// shared fakeOverlay and each given its own fakeLedger; linkKeys registers
// two nodes' peer keys both ways so they can verify each other's signed
// messages.
type testHarness struct {
	overlay *fakeOverlay
	// clock is a shared deterministic millis counter: using the real
	// wall-clock would make econ.ShouldSettle's "too long since last
	// settlement" branch fire on the very first query (last_settlement_time
	// defaults to 0), settling every test's queue out from under it.
	clock int64
}

func newTestHarness() *testHarness {
	return &testHarness{overlay: newFakeOverlay()}
}

func (h *testHarness) newNode(t *testing.T, ledgerBalance uint64) *Node {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(store.Config{
		DBPath:        filepath.Join(dir, "db"),
		ContentDir:    filepath.Join(dir, "content"),
		CacheDir:      filepath.Join(dir, "cache"),
		CacheMaxBytes: 1 << 30,
		CacheMaxItems: 1000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	keyPath := filepath.Join(dir, "identity")
	ks, err := crypto.NewKeystore(keyPath, []byte("test-password"), nil)
	require.NoError(t, err)

	n := New(Config{
		Store:          s,
		Overlay:        h.overlay,
		Ledger:         newFakeLedger(ledgerBalance),
		Extractor:      stubExtractor{},
		Keys:           ks,
		DefaultDeposit: 1_000_000,
		MinDeposit:     1,
		Now:            func() int64 { return atomic.AddInt64(&h.clock, 1) },
	})
	h.overlay.register(n)
	return n
}

func (h *testHarness) linkKeys(a, b *Node) {
	a.RegisterPeerKey(b.Self(), b.keys.PublicKey())
	b.RegisterPeerKey(a.Self(), a.keys.PublicKey())
}

type stubExtractor struct{}

func (stubExtractor) Extract(content []byte, mime string) ([]types.Mention, error) {
	return nil, nil
}
