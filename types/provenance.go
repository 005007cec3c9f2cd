package types

// ProvenanceEntry is one root (an L0 or L1 artifact) that ultimately backs a
// derived artifact, carrying the accumulated weight of every path that
// reaches it (spec.md §3.5).
type ProvenanceEntry struct {
	Hash                   Hash       `cbor:"hash"`
	Owner                  PeerID     `cbor:"owner"`
	VisibilityAtDerivation Visibility `cbor:"visibility_at_derivation"`
	Weight                 uint64     `cbor:"weight"`
}

// Provenance is the append-only derivation record carried by every
// manifest, spec.md §3.5.
//
// Invariants (enforced by valid, not here):
//   L0: RootL0L1 == [self-entry], DerivedFrom == [], Depth == 0.
//   L1: len(DerivedFrom) == 1 (the source L0), Depth == 1.
//   L3: DerivedFrom non-empty, RootL0L1 non-empty,
//       Depth == max(source.Depth)+1, every RootL0L1 entry is L0 or L1.
//   Never self-referential; Depth <= MaxProvenanceDepth.
type Provenance struct {
	RootL0L1    []ProvenanceEntry `cbor:"root_l0l1"`
	DerivedFrom []Hash            `cbor:"derived_from"`
	Depth       uint32            `cbor:"depth"`
}

// TotalWeight sums the weight of every root entry. Per spec.md §4.5, a valid
// L3's root weights must sum to > 0; a sum of 0 sends the entire payment to
// the owner.
func (p Provenance) TotalWeight() uint64 {
	var total uint64
	for _, e := range p.RootL0L1 {
		total += e.Weight
	}
	return total
}

// MergeRoots merges the RootL0L1 tables of a set of source provenances, the
// way derive() and valid's provenance check both need to (spec.md §3.5,
// §4.6): roots that share a Hash collapse into one entry whose Weight is the
// sum across every path that reaches it.
func MergeRoots(sources ...Provenance) []ProvenanceEntry {
	order := make([]Hash, 0)
	byHash := make(map[Hash]*ProvenanceEntry)
	for _, src := range sources {
		for _, e := range src.RootL0L1 {
			if existing, ok := byHash[e.Hash]; ok {
				existing.Weight += e.Weight
				continue
			}
			entry := e
			byHash[e.Hash] = &entry
			order = append(order, e.Hash)
		}
	}
	out := make([]ProvenanceEntry, 0, len(order))
	for _, h := range order {
		out = append(out, *byHash[h])
	}
	return out
}

// MaxDepth returns the largest Depth across the given provenances, used when
// constructing a derived artifact's Depth == max(source.Depth)+1.
func MaxDepth(sources ...Provenance) uint32 {
	var max uint32
	for _, src := range sources {
		if src.Depth > max {
			max = src.Depth
		}
	}
	return max
}
