package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"betsync/internal/exchange/common"
)

func TestLiability(t *testing.T) {
	back := common.NewOrder(1, decimal.NewFromInt(10), decimal.RequireFromString("3.5"), common.Back)
	lay := common.NewOrder(1, decimal.NewFromInt(10), decimal.RequireFromString("3.5"), common.Lay)
	assert.Equal(t, "10", Liability(back).String())
	assert.Equal(t, "25", Liability(lay).String())
}

func TestLimits(t *testing.T) {
	lay := common.NewOrder(1, decimal.NewFromInt(10), decimal.NewFromInt(5), common.Lay)
	assert.NoError(t, Limits{}.AllowBatch([]common.Order{lay, lay}))

	l := Limits{MaxStake: decimal.NewFromInt(10), MaxLiability: decimal.NewFromInt(60)}
	assert.NoError(t, l.AllowBatch([]common.Order{lay}))
	assert.ErrorIs(t, l.AllowBatch([]common.Order{lay, lay}), ErrLimitExceeded)

	big := common.NewOrder(1, decimal.NewFromInt(11), decimal.NewFromInt(2), common.Back)
	assert.ErrorIs(t, l.Allow(big), ErrLimitExceeded)
}
