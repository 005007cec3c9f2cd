package valid

import "github.com/nodalync/node/types"

// CheckAccess implements the decision table of spec.md §4.4 rule 5.
// bondPosted is how much the requester has bonded with this node, compared
// against mf.Access.BondAmount when RequireBond is set.
func CheckAccess(mf types.Manifest, requester types.PeerID, bondPosted uint64) error {
	switch mf.Visibility {
	case types.VisibilityPrivate:
		return types.Wrap(types.CodeAccessDenied, "valid: private content is never accessible externally", nil)

	case types.VisibilityUnlisted:
		if len(mf.Access.Allowlist) > 0 && !containsPeer(mf.Access.Allowlist, requester) {
			return types.Wrap(types.CodeAccessDenied, "valid: requester not on allowlist", nil)
		}
		if containsPeer(mf.Access.Denylist, requester) {
			return types.Wrap(types.CodeAccessDenied, "valid: requester on denylist", nil)
		}

	case types.VisibilityShared:
		if containsPeer(mf.Access.Denylist, requester) {
			return types.Wrap(types.CodeAccessDenied, "valid: requester on denylist", nil)
		}

	default:
		return types.Wrap(types.CodeInvalidManifest, "valid: unknown visibility", nil)
	}

	if mf.Access.RequireBond && bondPosted < mf.Access.BondAmount {
		return types.Wrap(types.CodeAccessDenied, "valid: required bond not posted", nil)
	}
	return nil
}

func containsPeer(list []types.PeerID, p types.PeerID) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}
