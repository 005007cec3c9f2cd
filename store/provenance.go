package store

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

const (
	provEdgePrefix  = "prov:edge:"
	provRootsPrefix = "prov:roots:"
)

// ProvenanceGraph indexes the derivation edges implied by every manifest's
// Provenance.DerivedFrom, and caches each artifact's merged root table so
// econ's revenue split doesn't have to walk the graph on every query
// (spec.md §3.5/§4.5).
type ProvenanceGraph struct {
	db  *leveldb.DB
	log *logrus.Logger
}

func newProvenanceGraph(db *leveldb.DB, log *logrus.Logger) *ProvenanceGraph {
	return &ProvenanceGraph{db: db, log: log}
}

func provEdgeKey(parent, child types.Hash) []byte {
	return []byte(provEdgePrefix + parent.String() + ":" + child.String())
}

func provRootsKey(h types.Hash) []byte {
	return []byte(provRootsPrefix + h.String())
}

// Add records child's derivation edges from every hash in derivedFrom, and
// caches child's merged root table. Called once, at creation time, since
// provenance is append-only (spec.md §3.5).
func (g *ProvenanceGraph) Add(child types.Hash, derivedFrom []types.Hash, roots []types.ProvenanceEntry) error {
	batch := new(leveldb.Batch)
	for _, parent := range derivedFrom {
		batch.Put(provEdgeKey(parent, child), []byte{})
	}
	raw, err := json.Marshal(roots)
	if err != nil {
		return fmt.Errorf("store: marshal provenance roots: %w", err)
	}
	batch.Put(provRootsKey(child), raw)
	if err := g.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: add provenance: %w", err)
	}
	return nil
}

// GetRoots returns the cached merged root table for hash, spec.md §3.5's
// root_L0L1. L0 artifacts have a single self-entry, written by the same Add
// call that creates them with derivedFrom == nil.
func (g *ProvenanceGraph) GetRoots(hash types.Hash) ([]types.ProvenanceEntry, error) {
	raw, err := g.db.Get(provRootsKey(hash), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, types.Wrap(types.CodeNotFound, "store: no provenance recorded for hash", err)
		}
		return nil, fmt.Errorf("store: get provenance roots: %w", err)
	}
	var roots []types.ProvenanceEntry
	if err := json.Unmarshal(raw, &roots); err != nil {
		return nil, fmt.Errorf("store: unmarshal provenance roots: %w", err)
	}
	return roots, nil
}

// GetDerivations returns every hash directly derived from parent.
func (g *ProvenanceGraph) GetDerivations(parent types.Hash) ([]types.Hash, error) {
	prefix := []byte(provEdgePrefix + parent.String() + ":")
	iter := g.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []types.Hash
	for iter.Next() {
		childHex := string(iter.Key()[len(prefix):])
		h, err := crypto.ParseHash(childHex)
		if err != nil {
			g.log.WithError(err).Warn("store: skipping corrupt provenance edge key")
			continue
		}
		out = append(out, h)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: get derivations: %w", err)
	}
	return out, nil
}

// IsAncestor reports whether descendant is reachable from ancestor by
// following derivation edges forward, bounded by MaxProvenanceDepth hops to
// match the depth ceiling valid enforces on creation (spec.md §4.4 rule 2).
func (g *ProvenanceGraph) IsAncestor(ancestor, descendant types.Hash) (bool, error) {
	if ancestor == descendant {
		return false, nil
	}
	frontier := []types.Hash{ancestor}
	visited := map[types.Hash]bool{ancestor: true}
	for depth := 0; depth < types.MaxProvenanceDepth && len(frontier) > 0; depth++ {
		var next []types.Hash
		for _, h := range frontier {
			children, err := g.GetDerivations(h)
			if err != nil {
				return false, err
			}
			for _, c := range children {
				if c == descendant {
					return true, nil
				}
				if !visited[c] {
					visited[c] = true
					next = append(next, c)
				}
			}
		}
		frontier = next
	}
	return false, nil
}
