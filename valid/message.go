package valid

import (
	"crypto/ed25519"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

// CheckMessage validates a decoded envelope, spec.md §4.4 rule 6. senderPub
// is the public key the caller looked up for env's claimed sender; nowMS is
// the current unix-millis clock. On success it returns the decoded payload.
//
// Protocol version and truncation/length checks already happen in
// wire.DecodeEnvelope before a message reaches here; this only covers what
// DecodeEnvelope can't: type recognition, signature, skew, sender identity
// and payload decoding.
func CheckMessage(env wire.Envelope, senderPub ed25519.PublicKey, senderID types.PeerID, nowMS int64) (interface{}, error) {
	payload, ok := wire.NewPayload(env.Type)
	if !ok {
		return nil, types.NewError(types.CodeInvalidManifest, "valid: unrecognized message type")
	}

	if senderID.IsZero() || crypto.DerivePeerID(senderPub) != senderID {
		return nil, types.NewError(types.CodeInvalidManifest, "valid: sender peer-id malformed or mismatched")
	}

	hash := wire.HashForSigning(env)
	if !crypto.Verify(senderPub, hash[:], env.Signature) {
		return nil, types.Wrap(types.CodeInvalidSignature, "valid: message signature does not verify", nil)
	}

	if err := wire.UnmarshalPayload(env.Payload, payload); err != nil {
		return nil, types.Wrap(types.CodeInvalidManifest, "valid: payload does not decode as declared type", err)
	}

	ts, ok := wire.MessageTimestamp(payload)
	if !ok {
		return nil, types.NewError(types.CodeInvalidManifest, "valid: payload carries no timestamp")
	}
	skew := nowMS - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > types.MessageTimestampSkewMS {
		return nil, types.NewError(types.CodeInvalidManifest, "valid: message timestamp outside allowed skew")
	}

	return payload, nil
}
