package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"betsync/internal/exchange/common"
	"betsync/internal/infra/clock"
	"betsync/internal/infra/log"
	"betsync/internal/infra/metrics"
)

// DefaultMaxMarketsPerCall is the exchange's cap on market ids per GetPrices call.
const DefaultMaxMarketsPerCall = 50

type Options struct {
	Depth             int
	MaxMarketsPerCall int
	// Throttle is waited before every call after the first in one Prices request.
	Throttle time.Duration
	Clock    clock.Clock
}

// Service fetches price books for any number of markets, one batch at a time.
type Service struct {
	transport  common.Transport
	norm       *Normalizer
	maxPerCall int
	throttle   time.Duration
	clock      clock.Clock
	logger     log.Logger
}

func NewService(t common.Transport, opts Options, logger log.Logger) *Service {
	if opts.MaxMarketsPerCall <= 0 {
		opts.MaxMarketsPerCall = DefaultMaxMarketsPerCall
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Service{
		transport:  t,
		norm:       NewNormalizer(opts.Depth, logger),
		maxPerCall: opts.MaxMarketsPerCall,
		throttle:   opts.Throttle,
		clock:      opts.Clock,
		logger:     logger,
	}
}

// Prices returns one MarketPrices per id, in the order given. Batches run
// sequentially; any failure aborts the whole request.
func (s *Service) Prices(ctx context.Context, marketIDs []int64) ([]common.MarketPrices, error) {
	out := make([]common.MarketPrices, 0, len(marketIDs))
	for i, ids := range common.Chunk(marketIDs, s.maxPerCall) {
		if i > 0 {
			if err := clock.Sleep(ctx, s.clock, s.throttle); err != nil {
				return nil, err
			}
		}
		s.logger.Debug().Str("exchange", s.transport.Name()).Int("chunk", i).Int("markets", len(ids)).Msg("calling GetPrices")
		resp, err := s.transport.GetPrices(ctx, s.request(ids))
		metrics.PriceChunksTotal.Inc()
		if err != nil {
			return nil, fmt.Errorf("get prices chunk %d: %w", i, err)
		}
		mps, err := s.norm.Normalize(ids, resp)
		if err != nil {
			var ae *common.ApiError
			if errors.As(err, &ae) {
				ae.Chunk = i
			}
			return nil, err
		}
		out = append(out, mps...)
	}
	return out, nil
}

func (s *Service) request(ids []int64) common.PricesRequest {
	return common.PricesRequest{
		MarketIDs:                    ids,
		ThresholdAmount:              decimal.Zero,
		NumberForPricesRequired:      s.norm.Depth(),
		NumberAgainstPricesRequired:  s.norm.Depth(),
		WantMarketMatchedAmount:      true,
		WantSelectionsMatchedAmounts: true,
		WantSelectionMatchedDetails:  true,
	}
}
