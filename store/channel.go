package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nodalync/node/crypto"
	"github.com/nodalync/node/types"
)

const (
	channelPrefix     = "channel:"
	channelPeerPrefix = "channelpeer:"
)

// ChannelStore persists payment channel state, spec.md §3.6/§4.6. Every
// read-modify-write (balance transfer, nonce bump, pending-payment edit)
// goes through mu so concurrent query handling can't race a channel update,
// the same single-writer discipline core/state_channel.go gets for free from
// its package-level ChannelEngine singleton.
type ChannelStore struct {
	db  *leveldb.DB
	log *logrus.Logger
	mu  sync.Mutex
}

func newChannelStore(db *leveldb.DB, log *logrus.Logger) *ChannelStore {
	return &ChannelStore{db: db, log: log}
}

func channelKey(id types.Hash) []byte {
	return []byte(channelPrefix + id.String())
}

func channelPeerKey(peer types.PeerID) []byte {
	return []byte(channelPeerPrefix + peer.String())
}

// Create records a newly opened channel and indexes it by peer.
func (c *ChannelStore) Create(ch types.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(ch)
}

func (c *ChannelStore) put(ch types.Channel) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("store: marshal channel: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(channelKey(ch.ChannelID), raw)
	batch.Put(channelPeerKey(ch.Peer), []byte(ch.ChannelID.String()))
	if err := c.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: put channel: %w", err)
	}
	return nil
}

// GetByID loads a channel by its ID.
func (c *ChannelStore) GetByID(id types.Hash) (types.Channel, error) {
	raw, err := c.db.Get(channelKey(id), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return types.Channel{}, types.Wrap(types.CodeChannelNotFound, "store: channel not found", err)
		}
		return types.Channel{}, fmt.Errorf("store: get channel: %w", err)
	}
	var ch types.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return types.Channel{}, fmt.Errorf("store: unmarshal channel: %w", err)
	}
	return ch, nil
}

// Get loads the channel open with peer.
func (c *ChannelStore) Get(peer types.PeerID) (types.Channel, error) {
	idHex, err := c.db.Get(channelPeerKey(peer), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return types.Channel{}, types.Wrap(types.CodeChannelNotFound, "store: no channel with peer", err)
		}
		return types.Channel{}, fmt.Errorf("store: get channel by peer: %w", err)
	}
	id, err := crypto.ParseHash(string(idHex))
	if err != nil {
		return types.Channel{}, fmt.Errorf("store: corrupt peer index: %w", err)
	}
	return c.GetByID(id)
}

// Exists reports whether a channel with peer is already on record.
func (c *ChannelStore) Exists(peer types.PeerID) bool {
	ok, _ := c.db.Has(channelPeerKey(peer), nil)
	return ok
}

// Update overwrites the stored channel record.
func (c *ChannelStore) Update(ch types.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(ch)
}

// ListOpen returns every channel currently in ChannelOpen state.
func (c *ChannelStore) ListOpen() ([]types.Channel, error) {
	iter := c.db.NewIterator(util.BytesPrefix([]byte(channelPrefix)), nil)
	defer iter.Release()

	var out []types.Channel
	for iter.Next() {
		var ch types.Channel
		if err := json.Unmarshal(iter.Value(), &ch); err != nil {
			c.log.WithError(err).Warn("store: skipping corrupt channel record")
			continue
		}
		if ch.State == types.ChannelOpen {
			out = append(out, ch)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: list open channels: %w", err)
	}
	return out, nil
}

// Credit adjusts MyBalance and TheirBalance by signed deltas (a negative delta
// debits, clamped at zero) atomically with respect to other ChannelStore
// mutations, per spec.md §4.6's channel-update flow.
func (c *ChannelStore) Credit(id types.Hash, myDelta, theirDelta int64) (types.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.GetByID(id)
	if err != nil {
		return types.Channel{}, err
	}
	ch.MyBalance = addSigned(ch.MyBalance, myDelta)
	ch.TheirBalance = addSigned(ch.TheirBalance, theirDelta)
	if err := c.put(ch); err != nil {
		return types.Channel{}, err
	}
	return ch, nil
}

func addSigned(base uint64, delta int64) uint64 {
	if delta < 0 {
		d := uint64(-delta)
		if d > base {
			return 0
		}
		return base - d
	}
	return base + uint64(delta)
}

// IncrementNonce bumps a channel's nonce and records lastUpdate, returning
// the updated record. Callers must have already validated the new nonce is
// strictly greater than the stored one (valid's channel rules).
func (c *ChannelStore) IncrementNonce(id types.Hash, newNonce uint64, lastUpdate int64) (types.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.GetByID(id)
	if err != nil {
		return types.Channel{}, err
	}
	ch.Nonce = newNonce
	ch.LastUpdate = lastUpdate
	if err := c.put(ch); err != nil {
		return types.Channel{}, err
	}
	return ch, nil
}

// AddPayment appends paymentID to the channel's pending list.
func (c *ChannelStore) AddPayment(id types.Hash, paymentID types.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.GetByID(id)
	if err != nil {
		return err
	}
	ch.PendingPayments = append(ch.PendingPayments, paymentID)
	return c.put(ch)
}

// GetPendingPayments returns the channel's unsettled payment IDs.
func (c *ChannelStore) GetPendingPayments(id types.Hash) ([]types.Hash, error) {
	ch, err := c.GetByID(id)
	if err != nil {
		return nil, err
	}
	return ch.PendingPayments, nil
}

// ClearPayments empties the channel's whole pending-payment list, called
// once a cooperative close's final signed state supersedes those payments.
func (c *ChannelStore) ClearPayments(id types.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.GetByID(id)
	if err != nil {
		return err
	}
	ch.PendingPayments = nil
	return c.put(ch)
}
