package common

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OneOrMany decodes a JSON field the exchange sends as a bare object when it
// holds a single element, as an array otherwise, and omits when empty. Once
// decoded it is an ordinary slice.
type OneOrMany[T any] []T

func (m *OneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = nil
		return nil
	}
	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*m = items
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*m = OneOrMany[T]{one}
	return nil
}

// UnmarshalJSON accepts numeric and string order handles.
func (r *OrderRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = OrderRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = OrderRef(n.String())
	return nil
}

type ReturnStatus struct {
	Code        int    `json:"Code"`
	Description string `json:"Description,omitempty"`
}

type RawOrder struct {
	ID             OrderRef            `json:"Id"`
	SelectionID    int64               `json:"SelectionId"`
	Status         int                 `json:"Status"`
	MatchedStake   decimal.Decimal     `json:"MatchedStake"`
	UnmatchedStake decimal.Decimal     `json:"UnmatchedStake"`
	RequestedPrice decimal.Decimal     `json:"RequestedPrice"`
	MatchedPrice   decimal.NullDecimal `json:"MatchedPrice"`
	Polarity       int                 `json:"Polarity"`
	SequenceNumber int64               `json:"SequenceNumber"`

	ExpectedSelectionResetCount      int64 `json:"ExpectedSelectionResetCount"`
	ExpectedWithdrawalSequenceNumber int64 `json:"ExpectedWithdrawalSequenceNumber"`
	CancelOnInRunning                bool  `json:"CancelOnInRunning"`
	CancelIfSelectionReset           bool  `json:"CancelIfSelectionReset"`
}

type RawBootstrapResponse struct {
	ReturnStatus          ReturnStatus        `json:"ReturnStatus"`
	Timestamp             time.Time           `json:"Timestamp"`
	MaximumSequenceNumber int64               `json:"MaximumSequenceNumber"`
	Orders                OneOrMany[RawOrder] `json:"Orders"`
}

type RawOrdersChangedResponse struct {
	ReturnStatus ReturnStatus        `json:"ReturnStatus"`
	Timestamp    time.Time           `json:"Timestamp"`
	Orders       OneOrMany[RawOrder] `json:"Orders"`
}

type PricesRequest struct {
	MarketIDs                    []int64         `json:"MarketIds"`
	ThresholdAmount              decimal.Decimal `json:"ThresholdAmount"`
	NumberForPricesRequired      int             `json:"NumberForPricesRequired"`
	NumberAgainstPricesRequired  int             `json:"NumberAgainstPricesRequired"`
	WantMarketMatchedAmount      bool            `json:"WantMarketMatchedAmount"`
	WantSelectionsMatchedAmounts bool            `json:"WantSelectionsMatchedAmounts"`
	WantSelectionMatchedDetails  bool            `json:"WantSelectionMatchedDetails"`
}

type RawPrice struct {
	Price decimal.Decimal `json:"Price"`
	Stake decimal.Decimal `json:"Stake"`
}

type RawPricesResponse struct {
	ReturnStatus ReturnStatus               `json:"ReturnStatus"`
	Timestamp    time.Time                  `json:"Timestamp"`
	MarketPrices OneOrMany[RawMarketPrices] `json:"MarketPrices"`
}

// RawMarketPrices carries no Selections while a market is suspended.
type RawMarketPrices struct {
	ID                       int64                         `json:"Id"`
	WithdrawalSequenceNumber int64                         `json:"WithdrawalSequenceNumber"`
	Selections               OneOrMany[RawSelectionPrices] `json:"Selections"`
}

type RawSelectionPrices struct {
	ID                           int64               `json:"Id"`
	Name                         string              `json:"Name"`
	MatchedSelectionForStake     decimal.Decimal     `json:"MatchedSelectionForStake"`
	MatchedSelectionAgainstStake decimal.Decimal     `json:"MatchedSelectionAgainstStake"`
	LastMatchedOccurredAt        *time.Time          `json:"LastMatchedOccurredAt"`
	LastMatchedPrice             decimal.NullDecimal `json:"LastMatchedPrice"`
	LastMatchedForSideAmount     decimal.NullDecimal `json:"LastMatchedForSideAmount"`
	ForSidePrices                OneOrMany[RawPrice] `json:"ForSidePrices"`
	AgainstSidePrices            OneOrMany[RawPrice] `json:"AgainstSidePrices"`
	ResetCount                   int64               `json:"ResetCount"`
	DeductionFactor              decimal.NullDecimal `json:"DeductionFactor"`

	// Unknown lists field names present on the wire that this struct drops.
	Unknown []string `json:"-"`
}

var knownSelectionFields = map[string]struct{}{
	"id": {}, "name": {}, "matchedselectionforstake": {}, "matchedselectionagainststake": {},
	"lastmatchedoccurredat": {}, "lastmatchedprice": {}, "lastmatchedforsideamount": {},
	"forsideprices": {}, "againstsideprices": {}, "resetcount": {}, "deductionfactor": {},
}

func (s *RawSelectionPrices) UnmarshalJSON(b []byte) error {
	type plain RawSelectionPrices
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for k := range fields {
		if _, ok := knownSelectionFields[strings.ToLower(k)]; !ok {
			p.Unknown = append(p.Unknown, k)
		}
	}
	sort.Strings(p.Unknown)
	*s = RawSelectionPrices(p)
	return nil
}

type PlaceOrderRequest struct {
	SelectionID                      int64           `json:"SelectionId"`
	Stake                            decimal.Decimal `json:"Stake"`
	Price                            decimal.Decimal `json:"Price"`
	Polarity                         int             `json:"Polarity"`
	ExpectedSelectionResetCount      int64           `json:"ExpectedSelectionResetCount"`
	ExpectedWithdrawalSequenceNumber int64           `json:"ExpectedWithdrawalSequenceNumber"`
	CancelOnInRunning                bool            `json:"CancelOnInRunning"`
	CancelIfSelectionReset           bool            `json:"CancelIfSelectionReset"`
}

type PlaceOrdersRequest struct {
	WantAllOrNothingBehaviour bool                `json:"WantAllOrNothingBehaviour"`
	Orders                    []PlaceOrderRequest `json:"Orders"`
}

// RawPlaceResponse lists one handle per submitted order, in submission order.
type RawPlaceResponse struct {
	ReturnStatus ReturnStatus        `json:"ReturnStatus"`
	Timestamp    time.Time           `json:"Timestamp"`
	OrderHandles OneOrMany[OrderRef] `json:"OrderHandles"`
}

type RawCancelledOrder struct {
	OrderHandle OrderRef `json:"OrderHandle"`
}

type RawCancelResponse struct {
	ReturnStatus ReturnStatus                 `json:"ReturnStatus"`
	Timestamp    time.Time                    `json:"Timestamp"`
	Orders       OneOrMany[RawCancelledOrder] `json:"Orders"`
}

type RawBalancesResponse struct {
	ReturnStatus   ReturnStatus    `json:"ReturnStatus"`
	Timestamp      time.Time       `json:"Timestamp"`
	AvailableFunds decimal.Decimal `json:"AvailableFunds"`
	Balance        decimal.Decimal `json:"Balance"`
	Credit         decimal.Decimal `json:"Credit"`
	Exposure       decimal.Decimal `json:"Exposure"`
}
