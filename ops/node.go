// Package ops is Nodalync's orchestrator, spec.md §4.6: every user-visible
// operation composed from store, valid, econ, net and settle. Nothing below
// this package talks to disk or network directly except through those five.
package ops

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/net"
	"github.com/nodalync/node/settle"
	"github.com/nodalync/node/store"
	"github.com/nodalync/node/types"
)

// Extractor is the pluggable L1 extraction collaborator, spec.md §6.5. No
// global registration: it's handed to the orchestrator at construction.
type Extractor interface {
	Extract(content []byte, mime string) ([]types.Mention, error)
}

// Config wires together everything a Node needs.
type Config struct {
	Store     *store.Store
	Overlay   net.Overlay
	Ledger    settle.Ledger
	Extractor Extractor
	Keys      *crypto.Keystore

	// DefaultDeposit is the auto-open channel deposit query() uses when no
	// channel exists yet, capped by the node's available ledger balance.
	DefaultDeposit uint64
	// MinDeposit is the floor below which query() refuses with
	// PaymentRequired rather than opening an under-funded channel.
	MinDeposit uint64
	// DefaultRateLimit applies to peers with no access.max_queries_per_peer
	// override, spec.md §5.
	DefaultRateLimit rate.Limit

	Logger *logrus.Logger
	// Now returns the current unix-millis clock; defaults to time.Now. Tests
	// supply a deterministic clock.
	Now func() int64
}

// retry policy, spec.md §7: base 100ms, factor 2, up to 3 attempts.
const (
	retryBase        = 100 * time.Millisecond
	retryFactor      = 2
	retryMaxAttempts = 3
)

// Node is the orchestrator instance bound to one node's identity and state.
type Node struct {
	store     *store.Store
	overlay   net.Overlay
	ledger    settle.Ledger
	extractor Extractor
	keys      *crypto.Keystore

	defaultDeposit   uint64
	minDeposit       uint64
	defaultRateLimit rate.Limit

	log *logrus.Logger
	now func() int64

	peerKeysMu sync.RWMutex
	peerKeys   map[types.PeerID]ed25519.PublicKey

	limitersMu sync.Mutex
	limiters   map[types.PeerID]*rate.Limiter

	settleGroup singleflight.Group
}

// New builds a Node from cfg.
func New(cfg Config) *Node {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}
	if cfg.DefaultRateLimit == 0 {
		cfg.DefaultRateLimit = rate.Limit(50) // 50 req/s per peer, spec.md §5 default
	}
	return &Node{
		store:            cfg.Store,
		overlay:          cfg.Overlay,
		ledger:           cfg.Ledger,
		extractor:        cfg.Extractor,
		keys:             cfg.Keys,
		defaultDeposit:   cfg.DefaultDeposit,
		minDeposit:       cfg.MinDeposit,
		defaultRateLimit: cfg.DefaultRateLimit,
		log:              cfg.Logger,
		now:              cfg.Now,
		peerKeys:         make(map[types.PeerID]ed25519.PublicKey),
		limiters:         make(map[types.PeerID]*rate.Limiter),
	}
}

// Self returns this node's own peer-id.
func (n *Node) Self() types.PeerID {
	return n.keys.PeerID()
}

// RegisterPeerKey records a peer's Ed25519 public key, learned out-of-band
// (handshake, announce, or operator configuration) so later signature
// verification against that peer's messages can succeed. The abstract
// protocol in spec.md §6 doesn't specify key distribution, so this is the
// minimal extension point ops needs to make §4.4 rule 6 checkable.
func (n *Node) RegisterPeerKey(id types.PeerID, pub ed25519.PublicKey) {
	n.peerKeysMu.Lock()
	defer n.peerKeysMu.Unlock()
	n.peerKeys[id] = pub
}

func (n *Node) peerKey(id types.PeerID) (ed25519.PublicKey, bool) {
	n.peerKeysMu.RLock()
	defer n.peerKeysMu.RUnlock()
	pub, ok := n.peerKeys[id]
	return pub, ok
}

// limiterFor returns the rate limiter governing id, honoring a manifest's
// access.max_queries_per_peer override when maxPerSec > 0.
func (n *Node) limiterFor(id types.PeerID, maxPerSec uint64) *rate.Limiter {
	n.limitersMu.Lock()
	defer n.limitersMu.Unlock()

	limit := n.defaultRateLimit
	if maxPerSec > 0 {
		limit = rate.Limit(maxPerSec)
	}
	l, ok := n.limiters[id]
	if !ok || rate.Limit(l.Limit()) != limit {
		l = rate.NewLimiter(limit, int(limit)+1)
		n.limiters[id] = l
	}
	return l
}

// Allow reports whether requester may make another request right now against
// a resource whose access rules cap it at maxPerSec (0 = use the node
// default), spec.md §5's backpressure clause.
func (n *Node) Allow(requester types.PeerID, maxPerSec uint64) bool {
	return n.limiterFor(requester, maxPerSec).Allow()
}

// withRetry runs fn up to retryMaxAttempts times with exponential backoff,
// retrying only on types.ErrTimeout/types.ErrConnectionFailed, spec.md §7.
func withRetry(ctx context.Context, fn func(context.Context) error) error {
	delay := retryBase
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= retryFactor
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	nerr, ok := err.(*types.Error)
	if !ok {
		return false
	}
	return nerr.Code == types.CodeTimeout || nerr.Code == types.CodeConnectionFailed
}

func (n *Node) sign(msg []byte) crypto.Signature {
	return n.keys.Sign(msg)
}

func fmtTxErr(op string, err error) error {
	return types.Wrap(types.CodeInternalError, fmt.Sprintf("ops: %s", op), err)
}
