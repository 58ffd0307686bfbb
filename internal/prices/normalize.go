// Package prices turns the exchange's GetPrices responses into fixed-depth
// per-selection price books and fetches them in throttled batches.
package prices

import (
	"fmt"

	"betsync/internal/exchange/common"
	"betsync/internal/infra/log"
	"betsync/internal/ticks"
)

const DefaultDepth = 5

var (
	// NoBackPrice pads the back side: nothing on offer, worst possible back price.
	NoBackPrice = common.PriceLevel{Price: ticks.MinPrice}
	// NoLayPrice pads the lay side.
	NoLayPrice = common.PriceLevel{Price: ticks.MaxPrice}
)

// Normalizer is stateless apart from its configuration and safe for concurrent use.
type Normalizer struct {
	depth  int
	logger log.Logger
}

func NewNormalizer(depth int, logger log.Logger) *Normalizer {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Normalizer{depth: depth, logger: logger}
}

func (n *Normalizer) Depth() int { return n.depth }

// Normalize aligns resp with the requested market ids and returns one entry
// per market, in request order. Suspended markets have no selections.
func (n *Normalizer) Normalize(marketIDs []int64, resp common.RawPricesResponse) ([]common.MarketPrices, error) {
	const op = "get prices"
	switch code := resp.ReturnStatus.Code; code {
	case common.StatusOK:
	case common.StatusPunterBlacklisted:
		return nil, common.NewApiError(op, code, "punter is blacklisted")
	default:
		n.logger.Warn().Int("code", code).Str("description", resp.ReturnStatus.Description).Msg("get prices returned non-zero status")
	}

	markets := resp.MarketPrices
	if len(markets) != len(marketIDs) {
		return nil, &common.DataError{Op: op, Msg: fmt.Sprintf("requested %d markets, got prices for %d", len(marketIDs), len(markets))}
	}

	out := make([]common.MarketPrices, 0, len(markets))
	for i, mid := range marketIDs {
		raw := markets[i]
		if raw.ID != 0 && raw.ID != mid {
			return nil, &common.DataError{Op: op, Msg: fmt.Sprintf("position %d: expected market %d, got %d", i, mid, raw.ID)}
		}
		mp := common.MarketPrices{MarketID: mid, Selections: make([]common.SelectionPriceBook, 0, len(raw.Selections))}
		// withdrawal sequence number is per market but needed on every order
		wsn := raw.WithdrawalSequenceNumber
		seen := make(map[int64]struct{}, len(raw.Selections))
		for _, sel := range raw.Selections {
			if _, dup := seen[sel.ID]; dup {
				n.logger.Debug().Int64("market", mid).Int64("selection", sel.ID).Msg("dropping duplicate selection")
				continue
			}
			seen[sel.ID] = struct{}{}
			book, err := n.book(mid, wsn, sel)
			if err != nil {
				return nil, err
			}
			mp.Selections = append(mp.Selections, book)
		}
		out = append(out, mp)
	}
	return out, nil
}

func (n *Normalizer) book(mid, wsn int64, sel common.RawSelectionPrices) (common.SelectionPriceBook, error) {
	const op = "get prices"
	if len(sel.Unknown) > 0 {
		n.logger.Warn().Int64("selection", sel.ID).Strs("fields", sel.Unknown).Msg("dropping unrecognized selection fields")
	}
	back, err := n.side(sel.ForSidePrices, NoBackPrice)
	if err != nil {
		return common.SelectionPriceBook{}, fmt.Errorf("selection %d back side: %w", sel.ID, err)
	}
	lay, err := n.side(sel.AgainstSidePrices, NoLayPrice)
	if err != nil {
		return common.SelectionPriceBook{}, fmt.Errorf("selection %d lay side: %w", sel.ID, err)
	}

	b := common.SelectionPriceBook{
		MarketID:      mid,
		SelectionID:   sel.ID,
		Name:          sel.Name,
		MatchedBack:   sel.MatchedSelectionForStake,
		MatchedLay:    sel.MatchedSelectionAgainstStake,
		Back:          back,
		Lay:           lay,
		ResetCount:    sel.ResetCount,
		WithdrawalSeq: wsn,
	}
	// the exchange omits last-matched details until the selection has traded
	if !sel.MatchedSelectionForStake.IsZero() || !sel.MatchedSelectionAgainstStake.IsZero() {
		if sel.LastMatchedOccurredAt == nil || !sel.LastMatchedPrice.Valid || !sel.LastMatchedForSideAmount.Valid {
			return common.SelectionPriceBook{}, &common.DataError{Op: op, Msg: fmt.Sprintf("selection %d has matched stake but incomplete last-matched details", sel.ID)}
		}
		b.LastMatched = &common.LastMatch{
			Price:  sel.LastMatchedPrice.Decimal,
			Amount: sel.LastMatchedForSideAmount.Decimal,
			At:     *sel.LastMatchedOccurredAt,
		}
	}
	return b, nil
}

// side returns exactly depth levels: the offered levels (best first, truncated)
// followed by pad.
func (n *Normalizer) side(raw []common.RawPrice, pad common.PriceLevel) ([]common.PriceLevel, error) {
	levels := make([]common.PriceLevel, 0, n.depth)
	for _, p := range raw {
		if len(levels) == n.depth {
			break
		}
		if p.Stake.IsNegative() {
			return nil, &common.DataError{Op: "get prices", Msg: fmt.Sprintf("negative stake %s at price %s", p.Stake, p.Price)}
		}
		// empty levels are dropped so they are not mistaken for offers
		if p.Stake.IsZero() {
			continue
		}
		levels = append(levels, common.PriceLevel{Price: p.Price, Stake: p.Stake})
	}
	for len(levels) < n.depth {
		levels = append(levels, pad)
	}
	return levels, nil
}
