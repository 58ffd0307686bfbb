// Package risk enforces local stake and liability limits before orders leave
// the process.
package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"betsync/internal/exchange/common"
)

var ErrLimitExceeded = errors.New("risk limit exceeded")

// Limits are per-order stake and per-batch liability caps. Zero means no limit.
type Limits struct {
	MaxStake     decimal.Decimal
	MaxLiability decimal.Decimal
}

// Liability is what the order loses if it is fully matched and loses: the
// stake for a back, stake times (price - 1) for a lay.
func Liability(o common.Order) decimal.Decimal {
	if o.Polarity == common.Lay {
		return o.Stake.Mul(o.Price.Sub(decimal.NewFromInt(1)))
	}
	return o.Stake
}

func (l Limits) Allow(o common.Order) error {
	if l.MaxStake.IsPositive() && o.Stake.GreaterThan(l.MaxStake) {
		return fmt.Errorf("%w: stake %s above %s", ErrLimitExceeded, o.Stake, l.MaxStake)
	}
	return nil
}

// AllowBatch checks each order and the batch's total liability.
func (l Limits) AllowBatch(orders []common.Order) error {
	total := decimal.Zero
	for i, o := range orders {
		if err := l.Allow(o); err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		total = total.Add(Liability(o))
	}
	if l.MaxLiability.IsPositive() && total.GreaterThan(l.MaxLiability) {
		return fmt.Errorf("%w: liability %s above %s", ErrLimitExceeded, total, l.MaxLiability)
	}
	return nil
}
