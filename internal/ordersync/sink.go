package ordersync

import (
	"context"

	"betsync/internal/exchange/common"
)

// Update is what a sync hands to a Sink. Full is set for bootstrap snapshots,
// which supersede everything previously stored.
type Update struct {
	Seq    int64
	Full   bool
	Orders []common.Order
}

// Sink consumes synchronized orders, e.g. to persist or publish them.
type Sink interface {
	Name() string
	StoreOrders(ctx context.Context, u Update) error
}
