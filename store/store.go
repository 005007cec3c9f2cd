// Package store is Nodalync's local, transactional persistence layer,
// spec.md §4.3: content blobs, manifests, provenance edges, channel states,
// a query cache with LRU, and the settlement queue.
//
// A single github.com/syndtr/goleveldb/leveldb database backs every
// table-like sub-store (ManifestStore, ProvenanceGraph, ChannelStore,
// SettlementQueueStore) behind namespaced key prefixes — the same
// single-KV-with-prefixes shape core/ledger.go and core/common_structs.go's
// StateRW use, but backed by a real embedded database (toole-brendan-shell
// depends on goleveldb directly) instead of an in-memory map, which is what
// gives us the "writer-serialized, snapshot-consistent range scans" guarantee
// spec.md §4.3/§5 ask for. Content blobs live in their own content-addressed
// file layout, the sharded-directory idea of core/storage.go's disk LRU.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
)

// Config configures Open.
type Config struct {
	DBPath        string
	ContentDir    string
	CacheDir      string
	CacheMaxBytes uint64
	CacheMaxItems int
	Logger        *logrus.Logger
}

// Store bundles every sub-store behind one goleveldb handle.
type Store struct {
	db *leveldb.DB
	log *logrus.Logger

	content     *ContentStore
	manifests   *ManifestStore
	l1summaries *L1SummaryStore
	provenance  *ProvenanceGraph
	channels    *ChannelStore
	cache       *CacheStore
	queue       *SettlementQueueStore
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Open opens (creating if absent) the on-disk database and content
// directories described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.CacheMaxItems == 0 {
		cfg.CacheMaxItems = 10_000
	}
	if err := os.MkdirAll(cfg.ContentDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: content dir: %w", err)
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: cache dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: db dir: %w", err)
	}

	db, err := leveldb.OpenFile(cfg.DBPath, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	s := &Store{db: db, log: cfg.Logger}
	s.content = newContentStore(cfg.ContentDir, cfg.Logger)
	s.manifests = newManifestStore(db, cfg.Logger)
	s.l1summaries = newL1SummaryStore(db, cfg.Logger)
	s.provenance = newProvenanceGraph(db, cfg.Logger)
	s.channels = newChannelStore(db, cfg.Logger)
	cache, err := newCacheStore(db, cfg.CacheDir, cfg.CacheMaxItems, cfg.CacheMaxBytes, cfg.Logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.cache = cache
	s.queue = newSettlementQueueStore(db, cfg.Logger)

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Content() *ContentStore         { return s.content }
func (s *Store) Manifests() *ManifestStore       { return s.manifests }
func (s *Store) L1Summaries() *L1SummaryStore    { return s.l1summaries }
func (s *Store) Provenance() *ProvenanceGraph     { return s.provenance }
func (s *Store) Channels() *ChannelStore         { return s.channels }
func (s *Store) Cache() *CacheStore              { return s.cache }
func (s *Store) Queue() *SettlementQueueStore    { return s.queue }
