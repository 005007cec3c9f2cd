package ops

import (
	"context"

	"github.com/nodalync/node/types"
	"github.com/nodalync/node/valid"
	"github.com/nodalync/node/wire"
)

// send builds a signed envelope around payload, delivers it to peer with
// bounded retry (spec.md §7), and returns the verified, decoded response
// payload. peer's public key must already be known via RegisterPeerKey.
func (n *Node) send(ctx context.Context, peer types.PeerID, typ wire.Type, payload interface{}) (interface{}, error) {
	body, err := wire.EncodeMessage(typ, payload, n.sign)
	if err != nil {
		return nil, fmtTxErr("send", err)
	}

	var respBytes []byte
	err = withRetry(ctx, func(ctx context.Context) error {
		b, sendErr := n.overlay.Send(ctx, peer, body)
		if sendErr != nil {
			// net.Overlay doesn't distinguish timeout from connection
			// failure at the interface level, so both map onto the same
			// retryable code; the retrier treats them identically anyway.
			return types.Wrap(types.CodeConnectionFailed, "ops: send failed", sendErr)
		}
		respBytes = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	env, err := wire.DecodeEnvelope(respBytes)
	if err != nil {
		return nil, types.Wrap(types.CodeInvalidManifest, "ops: malformed response envelope", err)
	}
	pub, ok := n.peerKey(peer)
	if !ok {
		return nil, types.NewError(types.CodePeerNotFound, "ops: unknown public key for peer")
	}
	return valid.CheckMessage(env, pub, peer, n.now())
}

// broadcast signs and publishes payload to every subscriber, with retry.
func (n *Node) broadcast(ctx context.Context, typ wire.Type, payload interface{}) error {
	body, err := wire.EncodeMessage(typ, payload, n.sign)
	if err != nil {
		return fmtTxErr("broadcast", err)
	}
	return withRetry(ctx, func(ctx context.Context) error {
		if err := n.overlay.Broadcast(ctx, body); err != nil {
			return types.Wrap(types.CodeConnectionFailed, "ops: broadcast failed", err)
		}
		return nil
	})
}
