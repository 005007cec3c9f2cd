package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

const (
	manifestPrefix = "manifest:"
	versionIdxPrefix = "versionidx:"
)

// ManifestStore is CRUD over manifests with a filtered list and per-chain
// version lookup, spec.md §4.3.
type ManifestStore struct {
	db  *leveldb.DB
	log *logrus.Logger
}

func newManifestStore(db *leveldb.DB, log *logrus.Logger) *ManifestStore {
	return &ManifestStore{db: db, log: log}
}

func manifestKey(h types.Hash) []byte {
	return []byte(manifestPrefix + h.String())
}

func versionIdxKey(root types.Hash, number uint64) []byte {
	var numBuf [8]byte
	binary.BigEndian.PutUint64(numBuf[:], number)
	return []byte(fmt.Sprintf("%s%s:%x", versionIdxPrefix, root.String(), numBuf))
}

// Put creates or overwrites a manifest, and indexes it by version chain.
func (m *ManifestStore) Put(mf types.Manifest) error {
	raw, err := json.Marshal(mf)
	if err != nil {
		return fmt.Errorf("store: marshal manifest: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(manifestKey(mf.Hash), raw)
	batch.Put(versionIdxKey(mf.Version.Root, mf.Version.Number), []byte(mf.Hash.String()))
	if err := m.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: put manifest: %w", err)
	}
	return nil
}

// Get loads a manifest by content hash.
func (m *ManifestStore) Get(h types.Hash) (types.Manifest, error) {
	raw, err := m.db.Get(manifestKey(h), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return types.Manifest{}, types.Wrap(types.CodeNotFound, "store: manifest not found", err)
		}
		return types.Manifest{}, fmt.Errorf("store: get manifest: %w", err)
	}
	var mf types.Manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		return types.Manifest{}, fmt.Errorf("store: unmarshal manifest: %w", err)
	}
	return mf, nil
}

// Exists reports whether a manifest for hash is stored.
func (m *ManifestStore) Exists(h types.Hash) bool {
	ok, _ := m.db.Has(manifestKey(h), nil)
	return ok
}

// Delete removes a manifest record. Per spec.md §3.10, this does not touch
// the provenance graph, only the manifest itself (used by unpublish-adjacent
// cleanup, not by the normal lifecycle which never deletes manifests).
func (m *ManifestStore) Delete(h types.Hash) error {
	mf, err := m.Get(h)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(manifestKey(h))
	batch.Delete(versionIdxKey(mf.Version.Root, mf.Version.Number))
	return m.db.Write(batch, nil)
}

// List returns manifests matching filter, applying Limit/Offset last.
func (m *ManifestStore) List(filter types.ManifestFilter) ([]types.Manifest, error) {
	iter := m.db.NewIterator(util.BytesPrefix([]byte(manifestPrefix)), nil)
	defer iter.Release()

	var all []types.Manifest
	for iter.Next() {
		var mf types.Manifest
		if err := json.Unmarshal(iter.Value(), &mf); err != nil {
			m.log.WithError(err).Warn("store: skipping corrupt manifest record")
			continue
		}
		if !matchesFilter(mf, filter) {
			continue
		}
		all = append(all, mf)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: list manifests: %w", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt < all[j].CreatedAt })

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return nil, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

func matchesFilter(mf types.Manifest, f types.ManifestFilter) bool {
	if f.Visibility != nil && mf.Visibility != *f.Visibility {
		return false
	}
	if f.ContentType != nil && mf.ContentType != *f.ContentType {
		return false
	}
	if f.CreatedBefore != nil && mf.CreatedAt >= *f.CreatedBefore {
		return false
	}
	if f.CreatedAfter != nil && mf.CreatedAt <= *f.CreatedAfter {
		return false
	}
	return true
}

// GetVersions returns the full version chain rooted at versionRoot, ordered
// by version.number.
func (m *ManifestStore) GetVersions(versionRoot types.Hash) ([]types.Manifest, error) {
	prefix := []byte(versionIdxPrefix + versionRoot.String() + ":")
	iter := m.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []types.Manifest
	for iter.Next() {
		h, err := crypto.ParseHash(string(iter.Value()))
		if err != nil {
			m.log.WithError(err).Warn("store: skipping corrupt version index entry")
			continue
		}
		mf, err := m.Get(h)
		if err != nil {
			continue
		}
		out = append(out, mf)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: get versions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version.Number < out[j].Version.Number })
	return out, nil
}
