package common

import "context"

// Transport is the remote API contract the client core consumes. Implementations
// return the exchange's raw responses; return-status codes are interpreted by the
// caller, transport failures come back as *TransportError.
type Transport interface {
	Name() string
	ListBootstrapOrders(ctx context.Context, seq int64) (RawBootstrapResponse, error)
	ListOrdersChangedSince(ctx context.Context, seq int64) (RawOrdersChangedResponse, error)
	GetPrices(ctx context.Context, req PricesRequest) (RawPricesResponse, error)
	PlaceOrders(ctx context.Context, req PlaceOrdersRequest) (RawPlaceResponse, error)
	CancelOrders(ctx context.Context, refs []OrderRef) (RawCancelResponse, error)
}

// Balancer is an optional capability for transports that can report account balances.
type Balancer interface {
	GetAccountBalances(ctx context.Context) (RawBalancesResponse, error)
}
