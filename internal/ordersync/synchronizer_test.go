package ordersync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betsync/internal/exchange/common"
	"betsync/internal/exchange/exchangetest"
	"betsync/internal/infra/log"
)

func raw(id string, status int, seq int64) common.RawOrder {
	return common.RawOrder{
		ID:             common.OrderRef(id),
		SelectionID:    42,
		Status:         status,
		MatchedStake:   decimal.NewFromInt(2),
		UnmatchedStake: decimal.NewFromInt(3),
		RequestedPrice: decimal.RequireFromString("2.5"),
		Polarity:       1,
		SequenceNumber: seq,
	}
}

type memSink struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) StoreOrders(ctx context.Context, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	return m.err
}

func bootstrapped(t *testing.T, tr *exchangetest.Transport, sink Sink) *Synchronizer {
	t.Helper()
	tr.BootstrapFn = func(seq int64) (common.RawBootstrapResponse, error) {
		return common.RawBootstrapResponse{
			MaximumSequenceNumber: 10,
			Orders:                common.OneOrMany[common.RawOrder]{raw("A", 1, 7), raw("X", 1, 9)},
		}, nil
	}
	s := New(tr, sink, log.Nop())
	_, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	return s
}

func TestBootstrapThenEmptyPollIsNoop(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := bootstrapped(t, tr, nil)
	assert.Equal(t, Synced, s.Phase())
	assert.Equal(t, int64(10), s.SequenceNumber())
	before := s.Orders()
	require.Len(t, before, 2)

	changed, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, int64(10), s.SequenceNumber())
	assert.Equal(t, before, s.Orders())
	assert.Equal(t, []int64{NoSequence, 10}, tr.Sequences())
}

func TestPollMergesByReference(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := bootstrapped(t, tr, nil)
	tr.ChangedFn = func(seq int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("X", 2, 12)}}, nil
	}

	changed, err := s.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, int64(12), s.SequenceNumber())

	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, common.Unmatched, orders["A"].Status)
	assert.Equal(t, common.Matched, orders["X"].Status)
	assert.True(t, orders["X"].Stake.Equal(decimal.NewFromInt(5)))

	// the same delta again changes nothing observable
	_, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orders, s.Orders())
	assert.Equal(t, int64(12), s.SequenceNumber())
}

func TestSequenceNeverDecreases(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := bootstrapped(t, tr, nil)
	tr.ChangedFn = func(seq int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("B", 3, 4)}}, nil
	}
	_, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.SequenceNumber())
	o, ok := s.Order("B")
	require.True(t, ok)
	assert.Equal(t, common.Cancelled, o.Status)
}

func TestPollBeforeBootstrap(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := New(tr, nil, log.Nop())
	_, err := s.Poll(context.Background())
	assert.ErrorIs(t, err, ErrNotSynced)
	assert.Zero(t, tr.Calls("ListOrdersChangedSince"))
}

func TestPollErrorsLeaveStateUnchanged(t *testing.T) {
	cases := map[string]func(int64) (common.RawOrdersChangedResponse, error){
		"blacklisted": func(int64) (common.RawOrdersChangedResponse, error) {
			return common.RawOrdersChangedResponse{ReturnStatus: common.ReturnStatus{Code: common.StatusPunterBlacklisted}}, nil
		},
		"other status": func(int64) (common.RawOrdersChangedResponse, error) {
			return common.RawOrdersChangedResponse{ReturnStatus: common.ReturnStatus{Code: common.StatusMaxInputRecordsExceeded}}, nil
		},
		"transport": func(int64) (common.RawOrdersChangedResponse, error) {
			return common.RawOrdersChangedResponse{}, &common.TransportError{Op: "poll", Err: errors.New("reset by peer")}
		},
		"bad status code": func(int64) (common.RawOrdersChangedResponse, error) {
			return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("A", 3, 20), raw("Z", 9, 21)}}, nil
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			tr := &exchangetest.Transport{}
			s := bootstrapped(t, tr, nil)
			before := s.Orders()
			tr.ChangedFn = fn
			_, err := s.Poll(context.Background())
			require.Error(t, err)
			assert.Equal(t, int64(10), s.SequenceNumber())
			assert.Equal(t, before, s.Orders())
			assert.Equal(t, Synced, s.Phase())
		})
	}
}

func TestBlacklistedPollIsApiError(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := bootstrapped(t, tr, nil)
	tr.ChangedFn = func(int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{ReturnStatus: common.ReturnStatus{Code: common.StatusPunterBlacklisted}}, nil
	}
	_, err := s.Poll(context.Background())
	var ae *common.ApiError
	require.True(t, errors.As(err, &ae))
	assert.ErrorIs(t, err, common.ErrBlacklisted)
}

func TestInvalidSequenceOnBootstrapThenReset(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := bootstrapped(t, tr, nil)
	tr.BootstrapFn = func(seq int64) (common.RawBootstrapResponse, error) {
		if seq != NoSequence {
			return common.RawBootstrapResponse{ReturnStatus: common.ReturnStatus{Code: common.StatusSequenceNumberInvalid}}, nil
		}
		return common.RawBootstrapResponse{MaximumSequenceNumber: 3, Orders: common.OneOrMany[common.RawOrder]{raw("C", 1, 3)}}, nil
	}

	_, err := s.Bootstrap(context.Background())
	require.ErrorIs(t, err, common.ErrInvalidSequence)
	assert.Equal(t, Synced, s.Phase())
	assert.Len(t, s.Orders(), 2)

	s.Reset()
	assert.Equal(t, Unsynced, s.Phase())
	assert.Equal(t, NoSequence, s.SequenceNumber())
	assert.Empty(t, s.Orders())

	got, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(3), s.SequenceNumber())
	_, ok := s.Order("A")
	assert.False(t, ok)
}

func TestBootstrapWithoutOrders(t *testing.T) {
	tr := &exchangetest.Transport{BootstrapFn: func(int64) (common.RawBootstrapResponse, error) {
		return common.RawBootstrapResponse{MaximumSequenceNumber: 0}, nil
	}}
	s := New(tr, nil, log.Nop())
	got, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(0), s.SequenceNumber())
	assert.Equal(t, Synced, s.Phase())
}

func (m *memSink) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func TestSinkReceivesUpdatesAndFailuresAreSwallowed(t *testing.T) {
	tr := &exchangetest.Transport{}
	sink := &memSink{}
	s := bootstrapped(t, tr, sink)
	tr.ChangedFn = func(int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("X", 2, 12)}}, nil
	}
	sink.setErr(errors.New("disk full"))
	_, err := s.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.updates, 2)
	assert.True(t, sink.updates[0].Full)
	assert.Equal(t, int64(10), sink.updates[0].Seq)
	require.Len(t, sink.updates[0].Orders, 2)
	assert.Equal(t, common.OrderRef("A"), sink.updates[0].Orders[0].Ref)
	assert.False(t, sink.updates[1].Full)
	assert.Equal(t, int64(12), sink.updates[1].Seq)
	assert.Equal(t, int64(12), s.SequenceNumber())
}

func TestSinkGetsFullSnapshotAfterFailedWrite(t *testing.T) {
	tr := &exchangetest.Transport{}
	sink := &memSink{}
	s := bootstrapped(t, tr, sink)

	sink.setErr(errors.New("disk full"))
	tr.ChangedFn = func(int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("A", 2, 11)}}, nil
	}
	_, err := s.Poll(context.Background())
	require.NoError(t, err)

	sink.setErr(nil)
	tr.ChangedFn = func(int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("B", 1, 12)}}, nil
	}
	_, err = s.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.updates, 3)
	last := sink.updates[2]
	assert.True(t, last.Full)
	assert.Equal(t, int64(12), last.Seq)
	require.Len(t, last.Orders, 3)
	assert.Equal(t, common.OrderRef("A"), last.Orders[0].Ref)
	assert.Equal(t, common.Matched, last.Orders[0].Status)

	// back to deltas once the sink has caught up
	tr.ChangedFn = func(int64) (common.RawOrdersChangedResponse, error) {
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("B", 2, 13)}}, nil
	}
	_, err = s.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.updates, 4)
	assert.False(t, sink.updates[3].Full)
	assert.Len(t, sink.updates[3].Orders, 1)
}

func TestEmptyPollResendsSnapshotAfterFailedWrite(t *testing.T) {
	tr := &exchangetest.Transport{}
	sink := &memSink{err: errors.New("disk full")}
	s := bootstrapped(t, tr, sink)

	sink.setErr(nil)
	_, err := s.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.updates, 2)
	assert.True(t, sink.updates[1].Full)
	assert.Equal(t, int64(10), sink.updates[1].Seq)
	assert.Len(t, sink.updates[1].Orders, 2)

	_, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.updates, 2)
}

func TestRestoreResumesPolling(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := New(tr, nil, log.Nop())
	o := common.NewOrder(42, decimal.NewFromInt(5), decimal.RequireFromString("3.5"), common.Lay)
	o.Ref = "R1"
	o.Status = common.Unmatched
	require.NoError(t, s.Restore(17, []common.Order{o}))
	assert.Equal(t, Synced, s.Phase())

	_, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{17}, tr.Sequences())
	assert.Zero(t, tr.Calls("ListBootstrapOrders"))

	assert.ErrorIs(t, s.Restore(20, nil), ErrAlreadySynced)
	assert.Error(t, New(tr, nil, log.Nop()).Restore(-1, nil))
}

func TestConcurrentPollsAreSerialized(t *testing.T) {
	tr := &exchangetest.Transport{}
	s := bootstrapped(t, tr, nil)

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		next     int64 = 11
	)
	tr.ChangedFn = func(seq int64) (common.RawOrdersChangedResponse, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		n := next
		next++
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
		return common.RawOrdersChangedResponse{Orders: common.OneOrMany[common.RawOrder]{raw("X", 2, n)}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Poll(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, int64(18), s.SequenceNumber())
}

func TestCollectKeepsLatestRecordPerRef(t *testing.T) {
	got, top, err := collect("test", []common.RawOrder{raw("A", 1, 5), raw("A", 2, 8), raw("A", 3, 6)})
	require.NoError(t, err)
	assert.Equal(t, int64(8), top)
	assert.Equal(t, common.Matched, got["A"].Status)

	_, _, err = collect("test", []common.RawOrder{{Status: 1, Polarity: 1}})
	var de *common.DataError
	assert.True(t, errors.As(err, &de))
}
