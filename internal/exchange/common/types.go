package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeID selects the tick table and API quirks a session runs against.
type ExchangeID string

const (
	BDAQ    ExchangeID = "bdaq"
	Betfair ExchangeID = "betfair"
)

// ParseExchangeID accepts an exchange name in any case.
func ParseExchangeID(s string) (ExchangeID, error) {
	switch ExchangeID(strings.ToLower(strings.TrimSpace(s))) {
	case BDAQ:
		return BDAQ, nil
	case Betfair:
		return Betfair, nil
	}
	return "", fmt.Errorf("unknown exchange %q", s)
}

// Polarity is the side of an order: backing (for) or laying (against) a selection.
type Polarity int

const (
	Back Polarity = 1
	Lay  Polarity = 2
)

func (p Polarity) String() string {
	switch p {
	case Back:
		return "back"
	case Lay:
		return "lay"
	}
	return fmt.Sprintf("polarity(%d)", int(p))
}

// ParsePolarity translates the remote polarity code.
func ParsePolarity(code int) (Polarity, error) {
	switch Polarity(code) {
	case Back, Lay:
		return Polarity(code), nil
	}
	return 0, &DataError{Op: "parse polarity", Msg: fmt.Sprintf("unrecognized polarity code %d", code)}
}

type OrderStatus int

// Remote status codes 1..6; NotPlaced is local only.
const (
	NotPlaced OrderStatus = iota
	Unmatched
	Matched
	Cancelled
	Settled
	Void
	Suspended
)

var statusNames = [...]string{"not_placed", "unmatched", "matched", "cancelled", "settled", "void", "suspended"}

func (s OrderStatus) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseOrderStatus translates a remote status code. NotPlaced is never sent by
// the exchange, so 0 is rejected along with anything outside 1..6.
func ParseOrderStatus(code int) (OrderStatus, error) {
	if code >= int(Unmatched) && code <= int(Suspended) {
		return OrderStatus(code), nil
	}
	return NotPlaced, &DataError{Op: "parse order status", Msg: fmt.Sprintf("unrecognized order status code %d", code)}
}

// OrderRef is the exchange-assigned order handle.
type OrderRef string

// Order is a single order. SelectionID, Stake, Price and Polarity never change
// after construction; the remaining fields track the order's lifecycle.
type Order struct {
	SelectionID int64           `json:"selection_id" validate:"required"`
	Stake       decimal.Decimal `json:"stake" validate:"gt=0"`
	Price       decimal.Decimal `json:"price" validate:"gte=1.01,lte=1000"`
	Polarity    Polarity        `json:"polarity" validate:"oneof=1 2"`

	Status         OrderStatus     `json:"status"`
	MatchedStake   decimal.Decimal `json:"matched_stake"`
	UnmatchedStake decimal.Decimal `json:"unmatched_stake"`
	Ref            OrderRef        `json:"ref,omitempty"`

	SelectionResetCount    int64 `json:"selection_reset_count" validate:"gte=0"`
	WithdrawalSeq          int64 `json:"withdrawal_seq" validate:"gte=0"`
	CancelOnInRunning      bool  `json:"cancel_on_in_running"`
	CancelIfSelectionReset bool  `json:"cancel_if_selection_reset"`
}

// NewOrder builds an unplaced order. Cancel-on-in-running and cancel-if-reset
// default to true; reset count and withdrawal sequence default to zero and
// should be copied from the selection's price book before placing.
func NewOrder(selectionID int64, stake, price decimal.Decimal, pol Polarity) Order {
	return Order{
		SelectionID:            selectionID,
		Stake:                  stake,
		Price:                  price,
		Polarity:               pol,
		Status:                 NotPlaced,
		UnmatchedStake:         stake,
		CancelOnInRunning:      true,
		CancelIfSelectionReset: true,
	}
}

// ForSelection copies the reset count and withdrawal sequence number the
// exchange expects from the selection's latest price book.
func (o *Order) ForSelection(b SelectionPriceBook) {
	o.SelectionResetCount = b.ResetCount
	o.WithdrawalSeq = b.WithdrawalSeq
}

func (o Order) String() string {
	return fmt.Sprintf("%s %d %s@%s", strings.ToUpper(o.Polarity.String()), o.SelectionID, o.Stake, o.Price)
}

// PriceLevel is one rung of one side of a selection's book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Stake decimal.Decimal `json:"stake"`
}

// IsNoPrice reports whether the level is a padding sentinel.
func (l PriceLevel) IsNoPrice() bool { return l.Stake.IsZero() }

// LastMatch is present only once a selection has traded.
type LastMatch struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"at"`
}

// SelectionPriceBook holds exactly Depth back and Depth lay levels, best first.
type SelectionPriceBook struct {
	MarketID      int64           `json:"market_id"`
	SelectionID   int64           `json:"selection_id"`
	Name          string          `json:"name"`
	MatchedBack   decimal.Decimal `json:"matched_back"`
	MatchedLay    decimal.Decimal `json:"matched_lay"`
	Back          []PriceLevel    `json:"back"`
	Lay           []PriceLevel    `json:"lay"`
	LastMatched   *LastMatch      `json:"last_matched,omitempty"`
	ResetCount    int64           `json:"reset_count"`
	WithdrawalSeq int64           `json:"withdrawal_seq"`
}

// MarketPrices holds one market's selections, empty while it is suspended.
type MarketPrices struct {
	MarketID   int64                `json:"market_id"`
	Selections []SelectionPriceBook `json:"selections"`
}

// AccountBalances is the account's funds in its configured currency.
type AccountBalances struct {
	AvailableFunds decimal.Decimal `json:"available_funds"`
	Balance        decimal.Decimal `json:"balance"`
	Credit         decimal.Decimal `json:"credit"`
	Exposure       decimal.Decimal `json:"exposure"`
}
