package store

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/nodalync/node/types"
)

const l1SummaryPrefix = "l1summary:"

// L1SummaryStore persists the extracted-mentions summary extract_l1
// produces for an L0 artifact, spec.md §4.6/§6.4.
type L1SummaryStore struct {
	db  *leveldb.DB
	log *logrus.Logger
}

func newL1SummaryStore(db *leveldb.DB, log *logrus.Logger) *L1SummaryStore {
	return &L1SummaryStore{db: db, log: log}
}

func l1SummaryKey(l0Hash types.Hash) []byte {
	return []byte(l1SummaryPrefix + l0Hash.String())
}

// Put stores or overwrites the summary for its L0Hash.
func (s *L1SummaryStore) Put(summary types.L1Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("store: marshal l1 summary: %w", err)
	}
	if err := s.db.Put(l1SummaryKey(summary.L0Hash), raw, nil); err != nil {
		return fmt.Errorf("store: put l1 summary: %w", err)
	}
	return nil
}

// Get loads the summary for an L0 artifact, types.Wrap(CodeNotFound) if
// extract_l1 hasn't run for it yet.
func (s *L1SummaryStore) Get(l0Hash types.Hash) (types.L1Summary, error) {
	raw, err := s.db.Get(l1SummaryKey(l0Hash), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return types.L1Summary{}, types.Wrap(types.CodeNotFound, "store: no l1 summary for hash", err)
		}
		return types.L1Summary{}, fmt.Errorf("store: get l1 summary: %w", err)
	}
	var summary types.L1Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return types.L1Summary{}, fmt.Errorf("store: unmarshal l1 summary: %w", err)
	}
	return summary, nil
}

// Exists reports whether a summary has been stored for l0Hash.
func (s *L1SummaryStore) Exists(l0Hash types.Hash) bool {
	ok, _ := s.db.Has(l1SummaryKey(l0Hash), nil)
	return ok
}
