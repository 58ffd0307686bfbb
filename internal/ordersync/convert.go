package ordersync

import (
	"fmt"

	"betsync/internal/exchange/common"
)

// fromRaw builds an Order from the exchange's order record. The requested
// stake is matched plus unmatched.
func fromRaw(op string, r common.RawOrder) (common.Order, error) {
	if r.ID == "" {
		return common.Order{}, &common.DataError{Op: op, Msg: "order without id"}
	}
	status, err := common.ParseOrderStatus(r.Status)
	if err != nil {
		return common.Order{}, fmt.Errorf("order %s: %w", r.ID, err)
	}
	pol, err := common.ParsePolarity(r.Polarity)
	if err != nil {
		return common.Order{}, fmt.Errorf("order %s: %w", r.ID, err)
	}
	return common.Order{
		SelectionID:            r.SelectionID,
		Stake:                  r.MatchedStake.Add(r.UnmatchedStake),
		Price:                  r.RequestedPrice,
		Polarity:               pol,
		Status:                 status,
		MatchedStake:           r.MatchedStake,
		UnmatchedStake:         r.UnmatchedStake,
		Ref:                    r.ID,
		SelectionResetCount:    r.ExpectedSelectionResetCount,
		WithdrawalSeq:          r.ExpectedWithdrawalSequenceNumber,
		CancelOnInRunning:      r.CancelOnInRunning,
		CancelIfSelectionReset: r.CancelIfSelectionReset,
	}, nil
}

// collect converts a batch and returns it keyed by reference along with the
// highest sequence number seen. A reference repeated within the batch keeps
// its latest record.
func collect(op string, raws []common.RawOrder) (map[common.OrderRef]common.Order, int64, error) {
	out := make(map[common.OrderRef]common.Order, len(raws))
	seqs := make(map[common.OrderRef]int64, len(raws))
	top := NoSequence
	for _, r := range raws {
		o, err := fromRaw(op, r)
		if err != nil {
			return nil, 0, err
		}
		if prev, ok := seqs[o.Ref]; ok && prev > r.SequenceNumber {
			continue
		}
		out[o.Ref] = o
		seqs[o.Ref] = r.SequenceNumber
		if r.SequenceNumber > top {
			top = r.SequenceNumber
		}
	}
	return out, top, nil
}
