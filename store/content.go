package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

// ContentStore is a content-addressed blob store, spec.md §4.3. Blobs live
// under <dir>/<hash[:2]>/<hash>, the same sharded-directory layout
// core/storage.go's disk LRU uses, so no directory holds more than ~1/256th
// of the corpus.
type ContentStore struct {
	dir string
	log *logrus.Logger
}

func newContentStore(dir string, log *logrus.Logger) *ContentStore {
	return &ContentStore{dir: dir, log: log}
}

func (c *ContentStore) pathFor(h types.Hash) string {
	hex := h.String()
	return filepath.Join(c.dir, hex[:2], hex)
}

// Store writes data and returns its content hash. Writes are idempotent:
// the same hash always maps to the same bytes, so a repeat Store of
// identical data is a no-op past the first write.
func (c *ContentStore) Store(data []byte) (types.Hash, error) {
	h := crypto.ContentHash(data)
	if err := c.writeAt(h, data); err != nil {
		return types.Hash{}, err
	}
	return h, nil
}

// StoreVerified writes data only if it hashes to expectedHash, aborting
// otherwise (spec.md §4.3).
func (c *ContentStore) StoreVerified(expectedHash types.Hash, data []byte) error {
	actual := crypto.ContentHash(data)
	if actual != expectedHash {
		return types.Wrap(types.CodeInvalidHash, "store: content does not match expected hash", nil)
	}
	return c.writeAt(expectedHash, data)
}

func (c *ContentStore) writeAt(h types.Hash, data []byte) error {
	p := c.pathFor(h)
	if _, err := os.Stat(p); err == nil {
		return nil // idempotent: already have these bytes under this hash
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("store: content dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write content: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("store: finalize content: %w", err)
	}
	return nil
}

// Load reads back the bytes stored under hash.
func (c *ContentStore) Load(h types.Hash) ([]byte, error) {
	data, err := os.ReadFile(c.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Wrap(types.CodeNotFound, "store: content not found", err)
		}
		return nil, fmt.Errorf("store: load content: %w", err)
	}
	return data, nil
}

// Exists reports whether hash has stored bytes.
func (c *ContentStore) Exists(h types.Hash) bool {
	_, err := os.Stat(c.pathFor(h))
	return err == nil
}

// Delete removes the local bytes for hash. Per spec.md §3.10, content is
// never deleted from the provenance graph — only the local blob may go.
func (c *ContentStore) Delete(h types.Hash) error {
	if err := os.Remove(c.pathFor(h)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete content: %w", err)
	}
	return nil
}

// Size returns the stored byte length for hash.
func (c *ContentStore) Size(h types.Hash) (int64, error) {
	info, err := os.Stat(c.pathFor(h))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, types.Wrap(types.CodeNotFound, "store: content not found", err)
		}
		return 0, fmt.Errorf("store: stat content: %w", err)
	}
	return info.Size(), nil
}
