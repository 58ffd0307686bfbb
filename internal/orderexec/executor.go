// Package orderexec submits and cancels orders in exchange-sized batches.
package orderexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"betsync/internal/exchange/common"
	"betsync/internal/infra/log"
	"betsync/internal/infra/metrics"
	"betsync/internal/infra/validate"
	"betsync/internal/risk"
	"betsync/internal/ticks"
)

// DefaultMaxOrdersPerCall is the exchange's cap on orders per placement call.
const DefaultMaxOrdersPerCall = 50

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrNoReference  = errors.New("order has no reference")
)

type Options struct {
	MaxOrdersPerCall int
	MaxRefsPerCancel int
	Limits           risk.Limits
}

type Executor struct {
	transport common.Transport
	ladder    *ticks.Ladder
	maxPlace  int
	maxCancel int
	limits    risk.Limits
	logger    log.Logger
}

func New(t common.Transport, ladder *ticks.Ladder, opts Options, logger log.Logger) *Executor {
	if opts.MaxOrdersPerCall <= 0 {
		opts.MaxOrdersPerCall = DefaultMaxOrdersPerCall
	}
	if opts.MaxRefsPerCancel <= 0 {
		opts.MaxRefsPerCancel = DefaultMaxOrdersPerCall
	}
	return &Executor{transport: t, ladder: ladder, maxPlace: opts.MaxOrdersPerCall, maxCancel: opts.MaxRefsPerCancel, limits: opts.Limits, logger: logger}
}

// Validate checks an order is fit to submit: unplaced, positive stake, a
// price on the exchange's ladder.
func (e *Executor) Validate(o common.Order) error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w %s: %v", ErrInvalidOrder, o, err)
	}
	if o.Status != common.NotPlaced || o.Ref != "" {
		return fmt.Errorf("%w %s: already placed as %q", ErrInvalidOrder, o, o.Ref)
	}
	if e.ladder != nil && !e.ladder.OnLadder(o.Price) {
		return fmt.Errorf("%w %s: price %s is not on the %s ladder", ErrInvalidOrder, o, o.Price, e.ladder.Exchange)
	}
	if err := e.limits.Allow(o); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidOrder, o, err)
	}
	return nil
}

// Place submits orders in all-or-nothing batches, updating each accepted
// order in place with its reference and Unmatched status. Batches run in
// order and stop at the first failure, which is reported with its batch
// index; orders in that and later batches stay NotPlaced. It returns how
// many orders were placed.
func (e *Executor) Place(ctx context.Context, orders []common.Order) (int, error) {
	for i := range orders {
		if err := e.Validate(orders[i]); err != nil {
			metrics.RejectedOrders.Inc()
			return 0, fmt.Errorf("order %d: %w", i, err)
		}
	}
	if err := e.limits.AllowBatch(orders); err != nil {
		metrics.RejectedOrders.Add(float64(len(orders)))
		return 0, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	placed := 0
	for k, batch := range common.Chunk(orders, e.maxPlace) {
		if err := e.placeBatch(ctx, k, batch); err != nil {
			metrics.RejectedOrders.Add(float64(len(orders) - placed))
			e.logger.Error().Err(err).Int("chunk", k).Int("placed", placed).Int("total", len(orders)).Msg("order placement failed")
			return placed, err
		}
		placed += len(batch)
	}
	metrics.OrdersSubmittedTotal.Add(float64(placed))
	if placed > 0 {
		e.logger.Info().Int("orders", placed).Msg("orders placed")
	}
	return placed, nil
}

// placeBatch mutates batch, which aliases the caller's slice.
func (e *Executor) placeBatch(ctx context.Context, k int, batch []common.Order) error {
	const op = "place orders"
	req := common.PlaceOrdersRequest{WantAllOrNothingBehaviour: true, Orders: make([]common.PlaceOrderRequest, len(batch))}
	for i, o := range batch {
		req.Orders[i] = common.PlaceOrderRequest{
			SelectionID:                      o.SelectionID,
			Stake:                            o.Stake,
			Price:                            o.Price,
			Polarity:                         int(o.Polarity),
			ExpectedSelectionResetCount:      o.SelectionResetCount,
			ExpectedWithdrawalSequenceNumber: o.WithdrawalSeq,
			CancelOnInRunning:                o.CancelOnInRunning,
			CancelIfSelectionReset:           o.CancelIfSelectionReset,
		}
	}
	resp, err := e.transport.PlaceOrders(ctx, req)
	if err != nil {
		return fmt.Errorf("%s chunk %d: %w", op, k, err)
	}
	if resp.ReturnStatus.Code != common.StatusOK {
		ae := common.NewApiError(op, resp.ReturnStatus.Code, resp.ReturnStatus.Description)
		ae.Chunk = k
		return ae
	}
	// handles come back in submission order
	if len(resp.OrderHandles) != len(batch) {
		return &common.DataError{Op: op, Msg: fmt.Sprintf("chunk %d: submitted %d orders, got %d handles", k, len(batch), len(resp.OrderHandles))}
	}
	for i := range batch {
		batch[i].Ref = resp.OrderHandles[i]
		batch[i].Status = common.Unmatched
		batch[i].MatchedStake = decimal.Zero
		batch[i].UnmatchedStake = batch[i].Stake
	}
	return nil
}

// Cancel asks the exchange to cancel orders and marks the confirmed ones
// Cancelled in place. Every order must carry a reference. It returns how many
// cancellations were confirmed.
func (e *Executor) Cancel(ctx context.Context, orders []common.Order) (int, error) {
	const op = "cancel orders"
	byRef := make(map[common.OrderRef]int, len(orders))
	refs := make([]common.OrderRef, 0, len(orders))
	for i, o := range orders {
		if o.Ref == "" {
			return 0, fmt.Errorf("order %d %s: %w", i, o, ErrNoReference)
		}
		if _, dup := byRef[o.Ref]; dup {
			continue
		}
		byRef[o.Ref] = i
		refs = append(refs, o.Ref)
	}
	confirmed := 0
	for k, batch := range common.Chunk(refs, e.maxCancel) {
		resp, err := e.transport.CancelOrders(ctx, batch)
		if err != nil {
			return confirmed, fmt.Errorf("%s chunk %d: %w", op, k, err)
		}
		if resp.ReturnStatus.Code != common.StatusOK {
			ae := common.NewApiError(op, resp.ReturnStatus.Code, resp.ReturnStatus.Description)
			ae.Chunk = k
			return confirmed, ae
		}
		for _, c := range resp.Orders {
			i, ok := byRef[c.OrderHandle]
			if !ok {
				e.logger.Warn().Str("ref", string(c.OrderHandle)).Msg("cancel confirmed for unknown order")
				continue
			}
			if orders[i].Status != common.Cancelled {
				orders[i].Status = common.Cancelled
				confirmed++
			}
		}
	}
	metrics.OrdersCancelledTotal.Add(float64(confirmed))
	e.logger.Info().Int("requested", len(refs)).Int("confirmed", confirmed).Msg("orders cancelled")
	return confirmed, nil
}
