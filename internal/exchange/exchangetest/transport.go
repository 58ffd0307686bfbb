// Package exchangetest provides a scriptable common.Transport and a clock
// that never blocks, for tests of the client core.
package exchangetest

import (
	"context"
	"sync"
	"time"

	"betsync/internal/exchange/common"
)

// Transport answers each call with its *Fn hook, or an empty success response
// when the hook is nil. Every call is recorded.
type Transport struct {
	BootstrapFn func(seq int64) (common.RawBootstrapResponse, error)
	ChangedFn   func(seq int64) (common.RawOrdersChangedResponse, error)
	PricesFn    func(req common.PricesRequest) (common.RawPricesResponse, error)
	PlaceFn     func(req common.PlaceOrdersRequest) (common.RawPlaceResponse, error)
	CancelFn    func(refs []common.OrderRef) (common.RawCancelResponse, error)
	BalancesFn  func() (common.RawBalancesResponse, error)

	mu        sync.Mutex
	calls     map[string]int
	seqs      []int64
	prices    []common.PricesRequest
	placed    []common.PlaceOrdersRequest
	cancelled [][]common.OrderRef
}

func (t *Transport) Name() string { return "fake" }

func (t *Transport) record(op string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls == nil {
		t.calls = make(map[string]int)
	}
	t.calls[op]++
}

// Calls returns how many times op was invoked.
func (t *Transport) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// Sequences returns the sequence numbers sent by bootstrap and poll calls, in order.
func (t *Transport) Sequences() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.seqs...)
}

func (t *Transport) PricesRequests() []common.PricesRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]common.PricesRequest(nil), t.prices...)
}

func (t *Transport) PlaceRequests() []common.PlaceOrdersRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]common.PlaceOrdersRequest(nil), t.placed...)
}

func (t *Transport) CancelRequests() [][]common.OrderRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]common.OrderRef(nil), t.cancelled...)
}

func (t *Transport) ListBootstrapOrders(ctx context.Context, seq int64) (common.RawBootstrapResponse, error) {
	t.record("ListBootstrapOrders")
	t.mu.Lock()
	t.seqs = append(t.seqs, seq)
	t.mu.Unlock()
	if t.BootstrapFn == nil {
		return common.RawBootstrapResponse{}, nil
	}
	return t.BootstrapFn(seq)
}

func (t *Transport) ListOrdersChangedSince(ctx context.Context, seq int64) (common.RawOrdersChangedResponse, error) {
	t.record("ListOrdersChangedSince")
	t.mu.Lock()
	t.seqs = append(t.seqs, seq)
	t.mu.Unlock()
	if t.ChangedFn == nil {
		return common.RawOrdersChangedResponse{}, nil
	}
	return t.ChangedFn(seq)
}

func (t *Transport) GetPrices(ctx context.Context, req common.PricesRequest) (common.RawPricesResponse, error) {
	t.record("GetPrices")
	t.mu.Lock()
	t.prices = append(t.prices, req)
	t.mu.Unlock()
	if t.PricesFn == nil {
		resp := common.RawPricesResponse{}
		for _, id := range req.MarketIDs {
			resp.MarketPrices = append(resp.MarketPrices, common.RawMarketPrices{ID: id})
		}
		return resp, nil
	}
	return t.PricesFn(req)
}

func (t *Transport) PlaceOrders(ctx context.Context, req common.PlaceOrdersRequest) (common.RawPlaceResponse, error) {
	t.record("PlaceOrders")
	t.mu.Lock()
	t.placed = append(t.placed, req)
	t.mu.Unlock()
	if t.PlaceFn == nil {
		return common.RawPlaceResponse{}, nil
	}
	return t.PlaceFn(req)
}

func (t *Transport) CancelOrders(ctx context.Context, refs []common.OrderRef) (common.RawCancelResponse, error) {
	t.record("CancelOrders")
	t.mu.Lock()
	t.cancelled = append(t.cancelled, append([]common.OrderRef(nil), refs...))
	t.mu.Unlock()
	if t.CancelFn == nil {
		resp := common.RawCancelResponse{}
		for _, r := range refs {
			resp.Orders = append(resp.Orders, common.RawCancelledOrder{OrderHandle: r})
		}
		return resp, nil
	}
	return t.CancelFn(refs)
}

func (t *Transport) GetAccountBalances(ctx context.Context) (common.RawBalancesResponse, error) {
	t.record("GetAccountBalances")
	if t.BalancesFn == nil {
		return common.RawBalancesResponse{}, nil
	}
	return t.BalancesFn()
}

// Clock fires every After immediately and records the requested durations.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
