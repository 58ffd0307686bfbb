// Package ordersync keeps a local view of the account's orders in step with
// the exchange: one full bootstrap, then delta polls keyed by sequence number.
package ordersync

import (
	"sort"

	"betsync/internal/exchange/common"
)

// NoSequence is the sequence number before any sync has succeeded.
const NoSequence int64 = -1

// Phase is the synchronizer's position in its bootstrap/poll cycle.
type Phase int

const (
	Unsynced Phase = iota
	Bootstrapping
	Synced
	Polling
)

func (p Phase) String() string {
	switch p {
	case Unsynced:
		return "unsynced"
	case Bootstrapping:
		return "bootstrapping"
	case Synced:
		return "synced"
	case Polling:
		return "polling"
	}
	return "unknown"
}

// State is the last acknowledged sequence number and the orders it covers.
// It is not safe for concurrent use; Synchronizer serializes access.
type State struct {
	seq    int64
	orders map[common.OrderRef]common.Order
}

func NewState() *State {
	return &State{seq: NoSequence, orders: make(map[common.OrderRef]common.Order)}
}

func (s *State) SequenceNumber() int64 { return s.seq }

func (s *State) Len() int { return len(s.orders) }

func (s *State) Get(ref common.OrderRef) (common.Order, bool) {
	o, ok := s.orders[ref]
	return o, ok
}

// Snapshot copies the order mapping.
func (s *State) Snapshot() map[common.OrderRef]common.Order {
	out := make(map[common.OrderRef]common.Order, len(s.orders))
	for k, v := range s.orders {
		out[k] = v
	}
	return out
}

// Replace installs a full snapshot.
func (s *State) Replace(orders map[common.OrderRef]common.Order, seq int64) {
	s.orders = make(map[common.OrderRef]common.Order, len(orders))
	for k, v := range orders {
		s.orders[k] = v
	}
	s.advance(seq)
}

// Merge overwrites each changed order by reference and keeps the rest.
func (s *State) Merge(changed map[common.OrderRef]common.Order, seq int64) {
	for k, v := range changed {
		s.orders[k] = v
	}
	s.advance(seq)
}

func (s *State) advance(seq int64) {
	if seq > s.seq {
		s.seq = seq
	}
}

func (s *State) reset() {
	s.seq = NoSequence
	s.orders = make(map[common.OrderRef]common.Order)
}

// Sorted returns orders ordered by reference.
func Sorted(orders map[common.OrderRef]common.Order) []common.Order {
	out := make([]common.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}
