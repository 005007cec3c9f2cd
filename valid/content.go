// Package valid implements Nodalync's six pure validation rule groups,
// spec.md §4.4: content, version, provenance, payment, access, message. Every
// check here is a pure function over its arguments — no store lookups, no
// network calls, no side effects — so ops composes them with whatever state
// it already has in hand.
package valid

import (
	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

// CheckContent validates a manifest against the raw bytes it describes,
// spec.md §4.4 rule 1.
func CheckContent(mf types.Manifest, data []byte) error {
	if uint64(len(data)) > types.MaxContentBytes {
		return types.Wrap(types.CodeContentTooLarge, "valid: content exceeds max size", nil)
	}
	if crypto.ContentHash(data) != mf.Hash {
		return types.Wrap(types.CodeInvalidHash, "valid: content does not match manifest hash", nil)
	}
	if mf.Metadata.SizeBytes != uint64(len(data)) {
		return types.Wrap(types.CodeInvalidManifest, "valid: declared size does not match content", nil)
	}
	return CheckManifestMetadata(mf)
}

// CheckManifestMetadata validates the metadata/visibility/economics fields
// of a manifest on their own, independent of the content bytes — the part of
// rule 1 that publish() still needs to re-check after editing
// a manifest's mutable fields without re-hashing any bytes.
func CheckManifestMetadata(mf types.Manifest) error {
	if !mf.ContentType.Valid() {
		return types.Wrap(types.CodeInvalidManifest, "valid: unknown content type", nil)
	}
	if !mf.Visibility.Valid() {
		return types.Wrap(types.CodeInvalidManifest, "valid: unknown visibility", nil)
	}
	if len(mf.Metadata.Title) == 0 || len(mf.Metadata.Title) > types.MaxTitleLen {
		return types.Wrap(types.CodeInvalidManifest, "valid: title length out of bounds", nil)
	}
	if len(mf.Metadata.Description) > types.MaxDescriptionLen {
		return types.Wrap(types.CodeInvalidManifest, "valid: description too long", nil)
	}
	if len(mf.Metadata.Tags) > types.MaxTags {
		return types.Wrap(types.CodeInvalidManifest, "valid: too many tags", nil)
	}
	for _, tag := range mf.Metadata.Tags {
		if len(tag) > types.MaxTagLen {
			return types.Wrap(types.CodeInvalidManifest, "valid: tag too long", nil)
		}
	}
	if mf.ContentType == types.ContentL2 {
		// L2 is always Private and zero-priced, spec.md §9.
		if mf.Visibility != types.VisibilityPrivate || mf.Economics.Price != 0 {
			return types.Wrap(types.CodeInvalidManifest, "valid: L2 content must be private and zero-priced", nil)
		}
	} else if mf.Visibility != types.VisibilityPrivate {
		// create() builds a zero-priced Private manifest (spec.md §4.6); the
		// [1, 10^16] bound only binds once publish() makes it reachable.
		if mf.Economics.Price < types.MinPrice || mf.Economics.Price > types.MaxPrice {
			return types.Wrap(types.CodeInvalidManifest, "valid: price out of bounds", nil)
		}
	} else if mf.Economics.Price > types.MaxPrice {
		return types.Wrap(types.CodeInvalidManifest, "valid: price out of bounds", nil)
	}
	if mf.Economics.Currency != types.Currency {
		return types.Wrap(types.CodeInvalidManifest, "valid: unsupported currency", nil)
	}
	return nil
}
