package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nodalync/node/types"
)

const (
	queuePrefix           = "queue:"
	lastSettlementTimeKey = "meta:last_settlement_time"
)

// SettlementQueueStore holds every QueuedDistribution awaiting batching,
// spec.md §3.8/§4.5.
type SettlementQueueStore struct {
	db  *leveldb.DB
	log *logrus.Logger
}

func newSettlementQueueStore(db *leveldb.DB, log *logrus.Logger) *SettlementQueueStore {
	return &SettlementQueueStore{db: db, log: log}
}

// queuePaymentPrefix scopes every QueuedDistribution sharing paymentID,
// since one payment enqueues one entry per recipient (owner + each
// provenance root, spec.md §4.6 query-handler step 4).
func queuePaymentPrefix(paymentID types.Hash) string {
	return queuePrefix + paymentID.String() + ":"
}

// queueKey is keyed by (payment id, recipient), not payment id alone: a
// single payment fans out into one QueuedDistribution per recipient, and
// keying by payment id alone would let later recipients overwrite earlier
// ones under the same key.
func queueKey(paymentID types.Hash, recipient types.PeerID) []byte {
	return []byte(queuePaymentPrefix(paymentID) + recipient.String())
}

// Enqueue records a new pending distribution.
func (q *SettlementQueueStore) Enqueue(d types.QueuedDistribution) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("store: marshal queued distribution: %w", err)
	}
	if err := q.db.Put(queueKey(d.PaymentID, d.Recipient), raw, nil); err != nil {
		return fmt.Errorf("store: enqueue: %w", err)
	}
	return nil
}

func (q *SettlementQueueStore) scan() ([]types.QueuedDistribution, error) {
	iter := q.db.NewIterator(util.BytesPrefix([]byte(queuePrefix)), nil)
	defer iter.Release()

	var out []types.QueuedDistribution
	for iter.Next() {
		var d types.QueuedDistribution
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			q.log.WithError(err).Warn("store: skipping corrupt queue record")
			continue
		}
		out = append(out, d)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: scan queue: %w", err)
	}
	return out, nil
}

// GetPending returns every distribution not yet folded into a settlement
// batch.
func (q *SettlementQueueStore) GetPending() ([]types.QueuedDistribution, error) {
	all, err := q.scan()
	if err != nil {
		return nil, err
	}
	var out []types.QueuedDistribution
	for _, d := range all {
		if !d.Settled {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetPendingFor returns pending distributions owed to recipient.
func (q *SettlementQueueStore) GetPendingFor(recipient types.PeerID) ([]types.QueuedDistribution, error) {
	pending, err := q.GetPending()
	if err != nil {
		return nil, err
	}
	var out []types.QueuedDistribution
	for _, d := range pending {
		if d.Recipient == recipient {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetPendingTotal sums the amount across every pending distribution, the
// figure trigger.go's ShouldSettle compares against
// types.SettlementBatchThreshold.
func (q *SettlementQueueStore) GetPendingTotal() (uint64, error) {
	pending, err := q.GetPending()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, d := range pending {
		total += d.Amount
	}
	return total, nil
}

// MarkSettled marks every distribution queued under any of paymentIDs as
// folded into batchID. A payment id may own several distributions (one per
// recipient), so each is reached by prefix-scanning queuePaymentPrefix
// rather than a single get.
func (q *SettlementQueueStore) MarkSettled(paymentIDs []types.Hash, batchID types.Hash) error {
	batch := new(leveldb.Batch)
	for _, id := range paymentIDs {
		iter := q.db.NewIterator(util.BytesPrefix([]byte(queuePaymentPrefix(id))), nil)
		for iter.Next() {
			var d types.QueuedDistribution
			if err := json.Unmarshal(iter.Value(), &d); err != nil {
				iter.Release()
				return fmt.Errorf("store: unmarshal queued distribution: %w", err)
			}
			d.Settled = true
			bid := batchID
			d.BatchID = &bid
			encoded, err := json.Marshal(d)
			if err != nil {
				iter.Release()
				return fmt.Errorf("store: marshal queued distribution: %w", err)
			}
			batch.Put(queueKey(d.PaymentID, d.Recipient), encoded)
		}
		err := iter.Error()
		iter.Release()
		if err != nil {
			return fmt.Errorf("store: mark settled: %w", err)
		}
	}
	if err := q.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: mark settled: %w", err)
	}
	return nil
}

// GetLastSettlementTime returns the unix-millis timestamp of the most recent
// settlement run, or 0 if none has run yet.
func (q *SettlementQueueStore) GetLastSettlementTime() (int64, error) {
	raw, err := q.db.Get([]byte(lastSettlementTimeKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("store: get last settlement time: %w", err)
	}
	ts, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("store: parse last settlement time: %w", err)
	}
	return ts, nil
}

// SetLastSettlementTime records when a settlement run last completed.
func (q *SettlementQueueStore) SetLastSettlementTime(ts int64) error {
	if err := q.db.Put([]byte(lastSettlementTimeKey), []byte(strconv.FormatInt(ts, 10)), nil); err != nil {
		return fmt.Errorf("store: set last settlement time: %w", err)
	}
	return nil
}
