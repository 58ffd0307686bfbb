// Package pebble persists the synchronized order view so a restarted client
// can resume delta polling instead of bootstrapping again.
package pebble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"betsync/internal/exchange/common"
	"betsync/internal/ordersync"
)

// keys: o:<order ref> -> JSON order, seq -> 8-byte big-endian sequence number
var (
	orderPrefix = []byte("o:")
	seqKey      = []byte("seq")
)

func orderKey(ref common.OrderRef) []byte { return append(append([]byte{}, orderPrefix...), ref...) }

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Name() string { return "pebble" }

// StoreOrders writes the update atomically. A full update replaces every
// stored order.
func (s *Store) StoreOrders(ctx context.Context, u ordersync.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if u.Full {
		if err := b.DeleteRange(orderPrefix, keyUpperBound(orderPrefix), nil); err != nil {
			return fmt.Errorf("clear orders: %w", err)
		}
	}
	for _, o := range u.Orders {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal order %s: %w", o.Ref, err)
		}
		if err := b.Set(orderKey(o.Ref), data, nil); err != nil {
			return fmt.Errorf("save order %s: %w", o.Ref, err)
		}
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], uint64(u.Seq))
	if err := b.Set(seqKey, seq[:], nil); err != nil {
		return fmt.Errorf("save sequence number: %w", err)
	}
	return b.Commit(pebble.Sync)
}

// Load returns the stored sequence number and orders. found is false when
// nothing has been stored yet.
func (s *Store) Load() (seq int64, orders []common.Order, found bool, err error) {
	val, closer, err := s.db.Get(seqKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return ordersync.NoSequence, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("get sequence number: %w", err)
	}
	if len(val) != 8 {
		closer.Close()
		return 0, nil, false, fmt.Errorf("corrupt sequence number: %d bytes", len(val))
	}
	seq = int64(binary.BigEndian.Uint64(val))
	closer.Close()

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: orderPrefix,
		UpperBound: keyUpperBound(orderPrefix),
	})
	if err != nil {
		return 0, nil, false, fmt.Errorf("iterate orders: %w", err)
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var o common.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return 0, nil, false, fmt.Errorf("unmarshal order %s: %w", iter.Key()[len(orderPrefix):], err)
		}
		orders = append(orders, o)
	}
	if err := iter.Error(); err != nil {
		return 0, nil, false, err
	}
	return seq, orders, true, nil
}
