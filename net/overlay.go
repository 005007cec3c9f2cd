// Package net declares the overlay transport Nodalync consumes, spec.md
// §6.2. Only the interface lives here — the concrete libp2p/DHT/pubsub
// wiring core/peer_management.go shows is out of scope for this module; ops
// is built against Overlay so any transport can be plugged in later.
package net

import (
	"context"
	"errors"
	"time"

	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

// SendTimeout bounds a single request/response round trip, spec.md §6.2.
const SendTimeout = 30 * time.Second

// AnnounceTopic is the pub/sub topic broadcast messages go out on.
const AnnounceTopic = "/nodalync/announce/1.0.0"

// ErrPeerUnreachable is returned by Send when peer cannot be reached within
// SendTimeout.
var ErrPeerUnreachable = errors.New("net: peer unreachable")

// Overlay is the network surface ops needs: a DHT for content discovery and
// a request/response + pub/sub messaging layer between peers.
type Overlay interface {
	// DHTAnnounce is an idempotent put of payload under hash.
	DHTAnnounce(ctx context.Context, hash types.Hash, payload wire.AnnouncePayload) error
	// DHTGet looks up a single AnnouncePayload record. Returns
	// (payload, true, nil) on a hit, (zero, false, nil) on a clean miss.
	DHTGet(ctx context.Context, hash types.Hash) (wire.AnnouncePayload, bool, error)
	// DHTRemove is a best-effort withdrawal of a previously announced hash.
	DHTRemove(ctx context.Context, hash types.Hash) error

	// Send delivers an encoded envelope to peer and returns its response,
	// bounded by SendTimeout via ctx.
	Send(ctx context.Context, peer types.PeerID, envelope []byte) ([]byte, error)
	// Broadcast publishes an encoded envelope to AnnounceTopic.
	Broadcast(ctx context.Context, envelope []byte) error
}
