// Package ticks implements the exchanges' odds ladders: which prices are
// valid, and how to step or snap a price onto the ladder.
package ticks

import (
	"fmt"

	"github.com/shopspring/decimal"

	"betsync/internal/exchange/common"
)

var (
	MinPrice = decimal.NewFromInt(1)
	MaxPrice = decimal.NewFromInt(1000)

	// MinPricePlusOne is the lowest tradeable price on both exchanges; a book
	// whose best lay is here has nothing shorter.
	MinPricePlusOne = decimal.RequireFromString("1.01")

	cent = decimal.RequireFromString("0.01")
)

// Band covers prices above the previous band's Hi up to and including Hi.
type Band struct {
	Hi   decimal.Decimal
	Tick decimal.Decimal
}

// Ladder is an ordered set of bands, finest tick first.
type Ladder struct {
	Exchange common.ExchangeID
	Bands    []Band
}

func band(hi, tick string) Band {
	return Band{Hi: decimal.RequireFromString(hi), Tick: decimal.RequireFromString(tick)}
}

// BDAQ increments as published on betdaq.com.
var bdaqLadder = &Ladder{
	Exchange: common.BDAQ,
	Bands: []Band{
		band("3", "0.01"),
		band("4", "0.05"),
		band("6", "0.1"),
		band("10", "0.2"),
		band("20", "0.5"),
		band("50", "1"),
		band("200", "2"),
		band("1000", "5"),
	},
}

var betfairLadder = &Ladder{
	Exchange: common.Betfair,
	Bands: []Band{
		band("2", "0.01"),
		band("3", "0.02"),
		band("4", "0.05"),
		band("6", "0.1"),
		band("10", "0.2"),
		band("20", "0.5"),
		band("30", "1"),
		band("50", "2"),
		band("100", "5"),
		band("1000", "10"),
	},
}

// LadderFor returns the tick table for an exchange.
func LadderFor(id common.ExchangeID) (*Ladder, error) {
	switch id {
	case common.BDAQ:
		return bdaqLadder, nil
	case common.Betfair:
		return betfairLadder, nil
	}
	return nil, fmt.Errorf("no tick ladder for exchange %q", id)
}

// NextShorter returns the next valid price below p. p must already be on the
// ladder. A price on a band boundary steps down with that band's (finer) tick.
func (l *Ladder) NextShorter(p decimal.Decimal) decimal.Decimal {
	for _, b := range l.Bands {
		if p.LessThanOrEqual(b.Hi) {
			return clamp(p.Sub(b.Tick))
		}
	}
	return clamp(p.Sub(l.Bands[len(l.Bands)-1].Tick))
}

// NextLonger returns the next valid price above p. p must already be on the
// ladder. A price on a band boundary steps up with the next band's tick.
func (l *Ladder) NextLonger(p decimal.Decimal) decimal.Decimal {
	for _, b := range l.Bands {
		if p.LessThan(b.Hi) {
			return clamp(p.Add(b.Tick))
		}
	}
	return MaxPrice
}

// ClosestLonger returns the smallest valid price >= p. Inputs outside
// [MinPrice, MaxPrice] are clamped first.
func (l *Ladder) ClosestLonger(p decimal.Decimal) decimal.Decimal {
	q := clamp(p).RoundCeil(2)
	t := l.tickAt(q)
	if !t.Equal(cent) {
		q = q.Div(t).Ceil().Mul(t)
	}
	return clamp(q)
}

// ClosestShorter returns the largest valid price <= p. Inputs outside
// [MinPrice, MaxPrice] are clamped first.
func (l *Ladder) ClosestShorter(p decimal.Decimal) decimal.Decimal {
	q := clamp(p).RoundFloor(2)
	t := l.tickAt(q)
	if !t.Equal(cent) {
		q = q.Div(t).Floor().Mul(t)
	}
	return clamp(q)
}

// OnLadder reports whether p is a valid price for this exchange.
func (l *Ladder) OnLadder(p decimal.Decimal) bool {
	if p.LessThan(MinPrice) || p.GreaterThan(MaxPrice) {
		return false
	}
	return l.ClosestShorter(p).Equal(p)
}

// tickAt returns the tick of the band containing p (upper bound inclusive).
func (l *Ladder) tickAt(p decimal.Decimal) decimal.Decimal {
	for _, b := range l.Bands {
		if p.LessThanOrEqual(b.Hi) {
			return b.Tick
		}
	}
	return l.Bands[len(l.Bands)-1].Tick
}

func clamp(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(MinPrice) {
		return MinPrice
	}
	if p.GreaterThan(MaxPrice) {
		return MaxPrice
	}
	return p
}

// NextShorter steps p one tick down the exchange's ladder.
func NextShorter(id common.ExchangeID, p decimal.Decimal) (decimal.Decimal, error) {
	l, err := LadderFor(id)
	if err != nil {
		return decimal.Zero, err
	}
	return l.NextShorter(p), nil
}

// NextLonger steps p one tick up the exchange's ladder.
func NextLonger(id common.ExchangeID, p decimal.Decimal) (decimal.Decimal, error) {
	l, err := LadderFor(id)
	if err != nil {
		return decimal.Zero, err
	}
	return l.NextLonger(p), nil
}

// QuantizeLonger snaps p up onto the exchange's ladder.
func QuantizeLonger(id common.ExchangeID, p decimal.Decimal) (decimal.Decimal, error) {
	l, err := LadderFor(id)
	if err != nil {
		return decimal.Zero, err
	}
	return l.ClosestLonger(p), nil
}

// QuantizeShorter snaps p down onto the exchange's ladder.
func QuantizeShorter(id common.ExchangeID, p decimal.Decimal) (decimal.Decimal, error) {
	l, err := LadderFor(id)
	if err != nil {
		return decimal.Zero, err
	}
	return l.ClosestShorter(p), nil
}
