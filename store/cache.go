package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/nodalync/node/types"
)

// cacheEntry is the in-memory LRU's value: enough to find and size the
// on-disk files without a directory stat on every hit.
type cacheEntry struct {
	size int64
}

// CacheStore is the local query cache: content paid for once and kept around
// for repeat reads, evicted by github.com/hashicorp/golang-lru/v2 the same
// way core/storage.go's diskLRU evicts, but handing eviction bookkeeping to
// a real library instead of a hand-rolled index+ordered-list pair.
type CacheStore struct {
	dir      string
	log      *logrus.Logger
	maxBytes uint64

	mu         sync.Mutex
	totalBytes uint64
	lru        *lru.Cache[types.Hash, cacheEntry]
}

func newCacheStore(_ *leveldb.DB, dir string, maxItems int, maxBytes uint64, log *logrus.Logger) (*CacheStore, error) {
	c := &CacheStore{dir: dir, log: log, maxBytes: maxBytes}

	l, err := lru.NewWithEvict[types.Hash, cacheEntry](maxItems, func(h types.Hash, ent cacheEntry) {
		c.removeFiles(h)
		if ent.size <= int64(c.totalBytes) {
			c.totalBytes -= uint64(ent.size)
		} else {
			c.totalBytes = 0
		}
	})
	if err != nil {
		return nil, fmt.Errorf("store: new cache lru: %w", err)
	}
	c.lru = l
	return c, nil
}

func (c *CacheStore) contentPath(h types.Hash) string {
	hex := h.String()
	return filepath.Join(c.dir, hex[:2], hex+".blob")
}

func (c *CacheStore) receiptPath(h types.Hash) string {
	hex := h.String()
	return filepath.Join(c.dir, hex[:2], hex+".receipt.json")
}

func (c *CacheStore) removeFiles(h types.Hash) {
	_ = os.Remove(c.contentPath(h))
	_ = os.Remove(c.receiptPath(h))
}

// Put caches data and its payment receipt under hash, evicting older entries
// per the configured LRU capacity.
func (c *CacheStore) Put(h types.Hash, data []byte, receipt types.PaymentReceipt) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.contentPath(h)), 0o755); err != nil {
		return fmt.Errorf("store: cache dir: %w", err)
	}
	if err := os.WriteFile(c.contentPath(h), data, 0o644); err != nil {
		return fmt.Errorf("store: write cache blob: %w", err)
	}
	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("store: marshal receipt: %w", err)
	}
	if err := os.WriteFile(c.receiptPath(h), raw, 0o644); err != nil {
		return fmt.Errorf("store: write cache receipt: %w", err)
	}

	c.lru.Add(h, cacheEntry{size: int64(len(data))})
	c.totalBytes += uint64(len(data))

	if c.maxBytes > 0 {
		c.evictLocked()
	}
	return nil
}

// evictLocked drops the oldest entries until totalBytes is back under
// maxBytes. Caller must hold mu.
func (c *CacheStore) evictLocked() {
	for c.totalBytes > c.maxBytes {
		_, _, ok := c.lru.RemoveOldest()
		if !ok {
			return
		}
		// RemoveOldest's eviction callback already adjusted totalBytes.
	}
}

// Get returns the cached content and its receipt, refreshing recency.
func (c *CacheStore) Get(h types.Hash) ([]byte, types.PaymentReceipt, error) {
	c.mu.Lock()
	if _, ok := c.lru.Get(h); !ok {
		c.mu.Unlock()
		return nil, types.PaymentReceipt{}, types.Wrap(types.CodeNotFound, "store: not cached", nil)
	}
	c.mu.Unlock()

	data, err := os.ReadFile(c.contentPath(h))
	if err != nil {
		return nil, types.PaymentReceipt{}, fmt.Errorf("store: read cache blob: %w", err)
	}
	raw, err := os.ReadFile(c.receiptPath(h))
	if err != nil {
		return nil, types.PaymentReceipt{}, fmt.Errorf("store: read cache receipt: %w", err)
	}
	var receipt types.PaymentReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, types.PaymentReceipt{}, fmt.Errorf("store: unmarshal receipt: %w", err)
	}
	return data, receipt, nil
}

// IsCached reports whether hash is currently cached, without affecting LRU
// recency.
func (c *CacheStore) IsCached(h types.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(h)
}

// Evict forces the cache down to at most maxSizeBytes, regardless of the
// configured maxBytes.
func (c *CacheStore) Evict(maxSizeBytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.totalBytes > maxSizeBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			return
		}
	}
}

// Clear empties the cache entirely.
func (c *CacheStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.totalBytes = 0
}
