package ordersync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"betsync/internal/exchange/common"
	"betsync/internal/infra/log"
	"betsync/internal/infra/metrics"
)

var (
	ErrNotSynced     = errors.New("orders not bootstrapped")
	ErrAlreadySynced = errors.New("orders already synced")
)

// Synchronizer owns one State. Bootstrap, Poll, Restore and Reset hold a
// lock for the whole call so at most one sync is in flight; readers never
// wait on the network.
type Synchronizer struct {
	transport common.Transport
	sink      Sink
	logger    log.Logger

	syncMu sync.Mutex
	// set after a failed sink write; the next write is a full snapshot.
	// Guarded by syncMu.
	sinkDirty bool

	mu    sync.RWMutex
	phase Phase
	state *State
}

// New returns an Unsynced synchronizer. sink may be nil.
func New(t common.Transport, sink Sink, logger log.Logger) *Synchronizer {
	return &Synchronizer{transport: t, sink: sink, logger: logger, state: NewState()}
}

func (s *Synchronizer) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Synchronizer) SequenceNumber() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SequenceNumber()
}

// Orders returns a copy of the synchronized order mapping.
func (s *Synchronizer) Orders() map[common.OrderRef]common.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Snapshot()
}

func (s *Synchronizer) Order(ref common.OrderRef) (common.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Get(ref)
}

func (s *Synchronizer) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// Bootstrap fetches a full snapshot and replaces the mapping with it. On any
// error the state is left as it was.
func (s *Synchronizer) Bootstrap(ctx context.Context) (map[common.OrderRef]common.Order, error) {
	const op = "list bootstrap orders"
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.Lock()
	prev := s.phase
	seq := s.state.SequenceNumber()
	s.phase = Bootstrapping
	s.mu.Unlock()

	orders, top, err := s.bootstrap(ctx, op, seq)
	if err != nil {
		s.setPhase(prev)
		metrics.SyncsTotal.WithLabelValues("bootstrap", "error").Inc()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	s.mu.Lock()
	s.state.Replace(orders, top)
	s.phase = Synced
	seq = s.state.SequenceNumber()
	n := s.state.Len()
	s.mu.Unlock()

	metrics.SyncsTotal.WithLabelValues("bootstrap", "ok").Inc()
	metrics.OrderSequenceNumber.Set(float64(seq))
	metrics.OrdersTracked.Set(float64(n))
	s.logger.Info().Int64("seq", seq).Int("orders", n).Msg("orders bootstrapped")
	s.store(ctx, Update{Seq: seq, Full: true, Orders: Sorted(orders)})
	return orders, nil
}

func (s *Synchronizer) bootstrap(ctx context.Context, op string, seq int64) (map[common.OrderRef]common.Order, int64, error) {
	resp, err := s.transport.ListBootstrapOrders(ctx, seq)
	if err != nil {
		return nil, 0, err
	}
	if err := common.CheckStatus(op, resp.ReturnStatus); err != nil {
		return nil, 0, err
	}
	orders, top, err := collect(op, resp.Orders)
	if err != nil {
		return nil, 0, err
	}
	if resp.MaximumSequenceNumber > top {
		top = resp.MaximumSequenceNumber
	}
	return orders, top, nil
}

// Poll fetches orders changed since the last acknowledged sequence number and
// merges them by reference. It returns the changed orders, empty when nothing
// changed. The sequence number never moves backwards.
func (s *Synchronizer) Poll(ctx context.Context) (map[common.OrderRef]common.Order, error) {
	const op = "list orders changed since"
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	s.mu.Lock()
	if s.phase == Unsynced {
		s.mu.Unlock()
		return nil, ErrNotSynced
	}
	seq := s.state.SequenceNumber()
	s.phase = Polling
	s.mu.Unlock()
	defer s.setPhase(Synced)

	resp, err := s.transport.ListOrdersChangedSince(ctx, seq)
	if err == nil {
		err = common.CheckStatus(op, resp.ReturnStatus)
	}
	var (
		changed map[common.OrderRef]common.Order
		top     int64
	)
	if err == nil {
		changed, top, err = collect(op, resp.Orders)
	}
	if err != nil {
		metrics.SyncsTotal.WithLabelValues("poll", "error").Inc()
		return nil, fmt.Errorf("poll from %d: %w", seq, err)
	}
	if len(changed) == 0 {
		metrics.SyncsTotal.WithLabelValues("poll", "empty").Inc()
		s.logger.Debug().Int64("seq", seq).Msg("no order changes")
		if s.sinkDirty {
			s.storeFull(ctx)
		}
		return changed, nil
	}

	s.mu.Lock()
	s.state.Merge(changed, top)
	seq = s.state.SequenceNumber()
	n := s.state.Len()
	s.mu.Unlock()

	metrics.SyncsTotal.WithLabelValues("poll", "ok").Inc()
	metrics.OrderSequenceNumber.Set(float64(seq))
	metrics.OrdersTracked.Set(float64(n))
	s.logger.Info().Int64("seq", seq).Int("changed", len(changed)).Msg("orders changed")
	if s.sinkDirty {
		s.storeFull(ctx)
	} else {
		s.store(ctx, Update{Seq: seq, Orders: Sorted(changed)})
	}
	return changed, nil
}

// Restore seeds an Unsynced synchronizer from a persisted snapshot so polling
// resumes from seq without a fresh bootstrap.
func (s *Synchronizer) Restore(seq int64, orders []common.Order) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Unsynced {
		return ErrAlreadySynced
	}
	if seq < 0 {
		return fmt.Errorf("restore: invalid sequence number %d", seq)
	}
	m := make(map[common.OrderRef]common.Order, len(orders))
	for _, o := range orders {
		if o.Ref == "" {
			return fmt.Errorf("restore: order %s has no reference", o)
		}
		m[o.Ref] = o
	}
	s.state.Replace(m, seq)
	s.phase = Synced
	metrics.OrderSequenceNumber.Set(float64(seq))
	metrics.OrdersTracked.Set(float64(len(m)))
	s.logger.Info().Int64("seq", seq).Int("orders", len(m)).Msg("orders restored")
	return nil
}

// Reset discards all state; the next sync must be a bootstrap from NoSequence.
func (s *Synchronizer) Reset() {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.mu.Lock()
	s.state.reset()
	s.phase = Unsynced
	s.mu.Unlock()
	s.sinkDirty = false
	metrics.OrderSequenceNumber.Set(float64(NoSequence))
	metrics.OrdersTracked.Set(0)
	s.logger.Warn().Msg("order sync reset")
}

// store hands u to the sink. A failed write is not retried as such: the sink
// has missed a delta, so the next write replaces its contents instead.
func (s *Synchronizer) store(ctx context.Context, u Update) {
	if s.sink == nil {
		return
	}
	if err := s.sink.StoreOrders(ctx, u); err != nil {
		s.sinkDirty = true
		metrics.SinkErrorsTotal.WithLabelValues(s.sink.Name()).Inc()
		s.logger.Error().Err(err).Str("sink", s.sink.Name()).Int64("seq", u.Seq).Msg("order sink failed")
		return
	}
	s.sinkDirty = false
}

func (s *Synchronizer) storeFull(ctx context.Context) {
	s.mu.RLock()
	u := Update{Seq: s.state.SequenceNumber(), Full: true, Orders: Sorted(s.state.Snapshot())}
	s.mu.RUnlock()
	s.logger.Info().Int64("seq", u.Seq).Int("orders", len(u.Orders)).Msg("resending full order snapshot to sink")
	s.store(ctx, u)
}
