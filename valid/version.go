package valid

import "github.com/nodalync/node/types"

// CheckVersion validates v's chain invariants, spec.md §3.4/§4.4 rule 2.
// prevManifest is the manifest v.Previous is supposed to point at, or nil for
// a first version.
func CheckVersion(v types.Version, hash types.Hash, prevManifest *types.Manifest) error {
	if v.Number == 0 {
		return types.Wrap(types.CodeInvalidVersion, "valid: version number must start at 1", nil)
	}
	if v.Number == 1 {
		if v.Previous != nil {
			return types.Wrap(types.CodeInvalidVersion, "valid: first version must not have a previous", nil)
		}
		if v.Root != hash {
			return types.Wrap(types.CodeInvalidVersion, "valid: first version's root must equal its own hash", nil)
		}
		return nil
	}

	if v.Previous == nil {
		return types.Wrap(types.CodeInvalidVersion, "valid: non-first version requires a previous hash", nil)
	}
	if prevManifest == nil {
		return types.Wrap(types.CodeInvalidVersion, "valid: previous version record not supplied", nil)
	}
	if *v.Previous != prevManifest.Hash {
		return types.Wrap(types.CodeInvalidVersion, "valid: previous hash does not match supplied manifest", nil)
	}
	prev := prevManifest.Version
	if v.Root != prev.Root {
		return types.Wrap(types.CodeInvalidVersion, "valid: root must match the chain's root", nil)
	}
	if v.Number != prev.Number+1 {
		return types.Wrap(types.CodeInvalidVersion, "valid: version number must increment by one", nil)
	}
	if v.Timestamp <= prev.Timestamp {
		return types.Wrap(types.CodeInvalidVersion, "valid: timestamp must strictly increase", nil)
	}
	return nil
}
