package valid

import "github.com/nodalync/node/types"

// CheckProvenance validates mf's provenance structure, spec.md §3.5/§4.4
// rule 3. For L1/L3 artifacts, sources carries the manifests named in
// mf.Provenance.DerivedFrom, in the same order, so root_L0L1 and depth can be
// recomputed and checked for equality.
func CheckProvenance(mf types.Manifest, sources []types.Manifest) error {
	prov := mf.Provenance

	if prov.Depth > types.MaxProvenanceDepth {
		return types.Wrap(types.CodeInvalidProvenance, "valid: provenance depth exceeds maximum", nil)
	}
	for _, h := range prov.DerivedFrom {
		if h == mf.Hash {
			return types.Wrap(types.CodeInvalidProvenance, "valid: artifact cannot derive from itself", nil)
		}
	}
	for _, e := range prov.RootL0L1 {
		if e.Hash == mf.Hash {
			return types.Wrap(types.CodeInvalidProvenance, "valid: artifact cannot be its own provenance root", nil)
		}
	}

	switch mf.ContentType {
	case types.ContentL0:
		return checkL0Provenance(mf, prov)
	case types.ContentL1:
		return checkL1Provenance(prov, sources)
	case types.ContentL3:
		return checkL3Provenance(prov, sources)
	case types.ContentL2:
		// L2 never carries a provenance root of its own; it may be named as a
		// derived_from source by an L3 but is never itself derived, spec.md §9.
		if len(prov.RootL0L1) != 0 || len(prov.DerivedFrom) != 0 || prov.Depth != 0 {
			return types.Wrap(types.CodeInvalidProvenance, "valid: L2 content must carry no provenance", nil)
		}
		return nil
	default:
		return types.Wrap(types.CodeInvalidManifest, "valid: unknown content type", nil)
	}
}

func checkL0Provenance(mf types.Manifest, prov types.Provenance) error {
	if len(prov.DerivedFrom) != 0 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L0 must not derive from anything", nil)
	}
	if prov.Depth != 0 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L0 depth must be 0", nil)
	}
	if len(prov.RootL0L1) != 1 || prov.RootL0L1[0].Hash != mf.Hash {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L0 root_l0l1 must be a single self-entry", nil)
	}
	return nil
}

func checkL1Provenance(prov types.Provenance, sources []types.Manifest) error {
	if len(prov.DerivedFrom) != 1 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L1 must derive from exactly one source", nil)
	}
	if prov.Depth != 1 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L1 depth must be 1", nil)
	}
	if len(sources) != 1 || sources[0].Hash != prov.DerivedFrom[0] {
		return types.Wrap(types.CodeInvalidProvenance, "valid: source manifest does not match derived_from", nil)
	}
	if sources[0].ContentType != types.ContentL0 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L1 must derive from an L0", nil)
	}
	return nil
}

func checkL3Provenance(prov types.Provenance, sources []types.Manifest) error {
	if len(prov.DerivedFrom) == 0 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L3 must derive from at least one source", nil)
	}
	if len(prov.RootL0L1) == 0 {
		return types.Wrap(types.CodeInvalidProvenance, "valid: L3 root_l0l1 must be non-empty", nil)
	}
	if len(sources) != len(prov.DerivedFrom) {
		return types.Wrap(types.CodeInvalidProvenance, "valid: sources do not match derived_from", nil)
	}
	sourceProv := make([]types.Provenance, 0, len(sources))
	for i, src := range sources {
		if src.Hash != prov.DerivedFrom[i] {
			return types.Wrap(types.CodeInvalidProvenance, "valid: sources must match derived_from order", nil)
		}
		if src.ContentType != types.ContentL0 && src.ContentType != types.ContentL1 && src.ContentType != types.ContentL3 && src.ContentType != types.ContentL2 {
			return types.Wrap(types.CodeInvalidProvenance, "valid: L3 source has unsupported content type", nil)
		}
		sourceProv = append(sourceProv, src.Provenance)
	}

	wantDepth := types.MaxDepth(sourceProv...) + 1
	if prov.Depth != wantDepth {
		return types.Wrap(types.CodeInvalidProvenance, "valid: depth must be max(source depth)+1", nil)
	}

	// Recomputing from sourceProv (rather than trusting prov.RootL0L1) is what
	// guarantees every root is L0/L1: each source's own RootL0L1 was checked
	// by this same function when that source was created.
	wantRoots := types.MergeRoots(sourceProv...)
	if !rootsEqual(prov.RootL0L1, wantRoots) {
		return types.Wrap(types.CodeInvalidProvenance, "valid: root_l0l1 does not match recomputed merge", nil)
	}
	return nil
}

func rootsEqual(a, b []types.ProvenanceEntry) bool {
	if len(a) != len(b) {
		return false
	}
	idx := make(map[types.Hash]types.ProvenanceEntry, len(b))
	for _, e := range b {
		idx[e.Hash] = e
	}
	for _, e := range a {
		other, ok := idx[e.Hash]
		if !ok || other.Weight != e.Weight || other.Owner != e.Owner || other.VisibilityAtDerivation != e.VisibilityAtDerivation {
			return false
		}
	}
	return true
}
