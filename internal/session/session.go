// Package session is the client facade: one exchange account, one order
// view, and the price, placement and tick helpers bound to that exchange.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"betsync/internal/compliance"
	"betsync/internal/exchange/common"
	"betsync/internal/infra/clock"
	"betsync/internal/infra/log"
	"betsync/internal/orderexec"
	"betsync/internal/ordersync"
	"betsync/internal/prices"
	"betsync/internal/risk"
	"betsync/internal/ticks"
)

var ErrBalancesUnsupported = errors.New("transport does not report account balances")

type Options struct {
	Exchange          common.ExchangeID
	Depth             int
	MaxMarketsPerCall int
	PriceThrottle     time.Duration
	MaxOrdersPerCall  int
	MaxRefsPerCancel  int
	Limits            risk.Limits
	Clock             clock.Clock
}

type Session struct {
	exchange  common.ExchangeID
	ladder    *ticks.Ladder
	transport common.Transport
	sync      *ordersync.Synchronizer
	prices    *prices.Service
	exec      *orderexec.Executor
	guard     *compliance.Guard
	clock     clock.Clock
	logger    log.Logger
}

// New fails if the exchange has no tick ladder. sink may be nil.
func New(opts Options, t common.Transport, sink ordersync.Sink, logger log.Logger) (*Session, error) {
	ladder, err := ticks.LadderFor(opts.Exchange)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Session{
		exchange:  opts.Exchange,
		ladder:    ladder,
		transport: t,
		sync:      ordersync.New(t, sink, logger),
		prices: prices.NewService(t, prices.Options{
			Depth:             opts.Depth,
			MaxMarketsPerCall: opts.MaxMarketsPerCall,
			Throttle:          opts.PriceThrottle,
			Clock:             opts.Clock,
		}, logger),
		exec: orderexec.New(t, ladder, orderexec.Options{
			MaxOrdersPerCall: opts.MaxOrdersPerCall,
			MaxRefsPerCancel: opts.MaxRefsPerCancel,
			Limits:           opts.Limits,
		}, logger),
		guard:  compliance.NewGuard(),
		clock:  opts.Clock,
		logger: logger,
	}, nil
}

func (s *Session) Exchange() common.ExchangeID { return s.exchange }
func (s *Session) Ladder() *ticks.Ladder       { return s.ladder }
func (s *Session) State() ordersync.Phase      { return s.sync.Phase() }
func (s *Session) SequenceNumber() int64       { return s.sync.SequenceNumber() }

func (s *Session) Orders() map[common.OrderRef]common.Order { return s.sync.Orders() }

func (s *Session) Order(ref common.OrderRef) (common.Order, bool) { return s.sync.Order(ref) }

// Blacklisted reports whether the exchange has refused this account. Once it
// has, Prices, Place, Cancel and Balances fail without calling the exchange.
func (s *Session) Blacklisted() bool {
	st, ok := s.guard.Status(s.exchange)
	return ok && st.Policy == compliance.PolicyDeny
}

func (s *Session) Bootstrap(ctx context.Context) (map[common.OrderRef]common.Order, error) {
	orders, err := s.sync.Bootstrap(ctx)
	s.guard.Observe(s.exchange, err)
	return orders, err
}

func (s *Session) Poll(ctx context.Context) (map[common.OrderRef]common.Order, error) {
	orders, err := s.sync.Poll(ctx)
	s.guard.Observe(s.exchange, err)
	return orders, err
}

func (s *Session) Restore(seq int64, orders []common.Order) error { return s.sync.Restore(seq, orders) }

func (s *Session) Reset() { s.sync.Reset() }

func (s *Session) Prices(ctx context.Context, marketIDs []int64) ([]common.MarketPrices, error) {
	if err := s.guard.Check(s.exchange, "prices"); err != nil {
		return nil, err
	}
	mps, err := s.prices.Prices(ctx, marketIDs)
	s.guard.Observe(s.exchange, err)
	return mps, err
}

// Place submits orders, updating them in place. Placement does not touch the
// synchronized view; placed orders appear there on the next poll.
func (s *Session) Place(ctx context.Context, orders []common.Order) (int, error) {
	if err := s.guard.Check(s.exchange, "place"); err != nil {
		return 0, err
	}
	n, err := s.exec.Place(ctx, orders)
	s.guard.Observe(s.exchange, err)
	return n, err
}

func (s *Session) Cancel(ctx context.Context, orders []common.Order) (int, error) {
	if err := s.guard.Check(s.exchange, "cancel"); err != nil {
		return 0, err
	}
	n, err := s.exec.Cancel(ctx, orders)
	s.guard.Observe(s.exchange, err)
	return n, err
}

func (s *Session) Balances(ctx context.Context) (common.AccountBalances, error) {
	const op = "get account balances"
	b, ok := s.transport.(common.Balancer)
	if !ok {
		return common.AccountBalances{}, ErrBalancesUnsupported
	}
	if err := s.guard.Check(s.exchange, "balances"); err != nil {
		return common.AccountBalances{}, err
	}
	resp, err := b.GetAccountBalances(ctx)
	if err != nil {
		return common.AccountBalances{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := common.CheckStatus(op, resp.ReturnStatus); err != nil {
		s.guard.Observe(s.exchange, err)
		return common.AccountBalances{}, err
	}
	return common.AccountBalances{
		AvailableFunds: resp.AvailableFunds,
		Balance:        resp.Balance,
		Credit:         resp.Credit,
		Exposure:       resp.Exposure,
	}, nil
}

func (s *Session) QuantizeLonger(p decimal.Decimal) decimal.Decimal  { return s.ladder.ClosestLonger(p) }
func (s *Session) QuantizeShorter(p decimal.Decimal) decimal.Decimal { return s.ladder.ClosestShorter(p) }
func (s *Session) NextLonger(p decimal.Decimal) decimal.Decimal      { return s.ladder.NextLonger(p) }
func (s *Session) NextShorter(p decimal.Decimal) decimal.Decimal     { return s.ladder.NextShorter(p) }
