package valid

import (
	"crypto/ed25519"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

// CheckPayment validates a payment against the manifest it pays for and the
// channel it rides on, spec.md §4.4 rule 4. payerPub is the requester's
// Ed25519 public key, and signingBytes is the exact bytes p.PayerSignature
// was computed over.
func CheckPayment(p types.Payment, mf types.Manifest, ch types.Channel, payerPub ed25519.PublicKey, signingBytes []byte) error {
	if p.Amount < mf.Economics.Price {
		return types.Wrap(types.CodePaymentInvalid, "valid: amount below manifest price", nil)
	}
	if p.Recipient != mf.Owner {
		return types.Wrap(types.CodePaymentInvalid, "valid: recipient does not match manifest owner", nil)
	}
	if p.QueryHash != mf.Hash {
		return types.Wrap(types.CodePaymentInvalid, "valid: query hash does not match manifest", nil)
	}
	if ch.State != types.ChannelOpen {
		return types.Wrap(types.CodeChannelClosed, "valid: channel is not open", nil)
	}
	if ch.TheirBalance < p.Amount {
		return types.Wrap(types.CodeInsufficientBalance, "valid: their_balance insufficient for amount", nil)
	}
	if p.Nonce <= ch.Nonce {
		return types.Wrap(types.CodeInvalidNonce, "valid: payment nonce must exceed channel nonce", nil)
	}
	if !crypto.Verify(payerPub, signingBytes, p.PayerSignature) {
		return types.Wrap(types.CodeInvalidSignature, "valid: payer signature does not verify", nil)
	}
	if !rootsEqual(p.ProvenanceSnapshot, mf.Provenance.RootL0L1) {
		return types.Wrap(types.CodePaymentInvalid, "valid: provenance snapshot does not match manifest", nil)
	}
	return nil
}
