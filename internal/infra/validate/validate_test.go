package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stakeHolder struct {
	Stake decimal.Decimal `validate:"gt=0"`
	Name  string          `validate:"required"`
}

func TestDecimalTags(t *testing.T) {
	assert.NoError(t, Struct(stakeHolder{Stake: decimal.RequireFromString("2.5"), Name: "x"}))
	assert.Error(t, Struct(stakeHolder{Stake: decimal.Zero, Name: "x"}))
	assert.Error(t, Struct(stakeHolder{Stake: decimal.NewFromInt(1)}))
	assert.Same(t, Get(), Get())
}
