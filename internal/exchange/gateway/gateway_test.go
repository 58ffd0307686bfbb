package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betsync/internal/config"
	"betsync/internal/exchange/common"
	"betsync/internal/infra/log"
)

type recorded struct {
	path    string
	headers http.Header
	body    map[string]interface{}
}

// fakeExchange serves canned bodies per operation name and records requests.
type fakeExchange struct {
	mu       sync.Mutex
	replies  map[string]string
	requests []recorded
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(b, &body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{path: r.URL.Path, headers: r.Header.Clone(), body: body})
	reply, ok := f.replies[r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]]
	f.mu.Unlock()
	if !ok {
		http.Error(w, "no such operation", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(reply))
}

func newAdapter(t *testing.T, replies map[string]string) (*Adapter, *fakeExchange) {
	t.Helper()
	fx := &fakeExchange{replies: replies}
	srv := httptest.NewServer(fx)
	t.Cleanup(srv.Close)

	var cfg config.Config
	cfg.Exchange.ID = "bdaq"
	cfg.Exchange.ReadOnlyURL = srv.URL + "/ro/"
	cfg.Exchange.SecureURL = srv.URL + "/secure"
	cfg.Exchange.APIVersion = "2"
	cfg.Exchange.Currency = "GBP"
	cfg.Exchange.Language = "en"
	cfg.Exchange.Username = "punter"
	cfg.Exchange.Password = "hunter2"
	cfg.Exchange.TimeoutSeconds = 2
	cfg.Exchange.RequestsPerSecond = 1000
	cfg.Exchange.Burst = 100
	return New(cfg, log.Nop()), fx
}

func TestGetPricesUsesReadOnlyServiceWithoutPassword(t *testing.T) {
	a, fx := newAdapter(t, map[string]string{
		"GetPrices": `{"ReturnStatus":{"Code":0},"Timestamp":"2024-03-01T14:00:00Z",
			"MarketPrices":{"Id":7,"WithdrawalSequenceNumber":3,"Selections":{"Id":1,"Name":"A","ForSidePrices":{"Price":2,"Stake":10}}}}`,
	})
	resp, err := a.GetPrices(context.Background(), common.PricesRequest{MarketIDs: []int64{7}, NumberForPricesRequired: 5})
	require.NoError(t, err)
	require.Len(t, resp.MarketPrices, 1)
	require.Len(t, resp.MarketPrices[0].Selections, 1)
	assert.Len(t, resp.MarketPrices[0].Selections[0].ForSidePrices, 1)
	assert.Empty(t, resp.MarketPrices[0].Selections[0].AgainstSidePrices)

	require.Len(t, fx.requests, 1)
	r := fx.requests[0]
	assert.Equal(t, "/ro/GetPrices", r.path)
	assert.Equal(t, "punter", r.headers.Get("X-Username"))
	assert.Equal(t, "GBP", r.headers.Get("X-Currency"))
	assert.Equal(t, "2", r.headers.Get("X-Api-Version"))
	assert.Empty(t, r.headers.Get("X-Password"))
	assert.Equal(t, []interface{}{float64(7)}, r.body["MarketIds"])
}

func TestSecureCallsSendPassword(t *testing.T) {
	a, fx := newAdapter(t, map[string]string{
		"ListBootstrapOrders": `{"ReturnStatus":{"Code":0},"MaximumSequenceNumber":12,
			"Orders":[{"Id":501,"SelectionId":9,"Status":1,"MatchedStake":0,"UnmatchedStake":5,"RequestedPrice":2.5,"Polarity":1,"SequenceNumber":12}]}`,
		"ListOrdersChangedSince": `{"ReturnStatus":{"Code":0}}`,
	})
	boot, err := a.ListBootstrapOrders(context.Background(), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), boot.MaximumSequenceNumber)
	require.Len(t, boot.Orders, 1)
	assert.Equal(t, common.OrderRef("501"), boot.Orders[0].ID)
	assert.True(t, boot.Orders[0].RequestedPrice.Equal(decimal.RequireFromString("2.5")))

	changed, err := a.ListOrdersChangedSince(context.Background(), 12)
	require.NoError(t, err)
	assert.Empty(t, changed.Orders)

	require.Len(t, fx.requests, 2)
	assert.Equal(t, "/secure/ListBootstrapOrders", fx.requests[0].path)
	assert.Equal(t, "hunter2", fx.requests[0].headers.Get("X-Password"))
	assert.Equal(t, float64(-1), fx.requests[0].body["SequenceNumber"])
	assert.Equal(t, false, fx.requests[0].body["WantSettledOrdersOnUnsettledMarkets"])
	assert.Equal(t, float64(12), fx.requests[1].body["SequenceNumber"])
	_, has := fx.requests[1].body["WantSettledOrdersOnUnsettledMarkets"]
	assert.False(t, has)
}

func TestPlaceCancelAndBalances(t *testing.T) {
	a, fx := newAdapter(t, map[string]string{
		"PlaceOrdersNoReceipt": `{"ReturnStatus":{"Code":0},"OrderHandles":"77"}`,
		"CancelOrders":         `{"ReturnStatus":{"Code":0},"Orders":{"OrderHandle":77}}`,
		"GetAccountBalances":   `{"ReturnStatus":{"Code":0},"AvailableFunds":"90.5","Balance":100,"Credit":0,"Exposure":9.5}`,
	})
	placed, err := a.PlaceOrders(context.Background(), common.PlaceOrdersRequest{
		WantAllOrNothingBehaviour: true,
		Orders:                    []common.PlaceOrderRequest{{SelectionID: 9, Stake: decimal.NewFromInt(2), Price: decimal.NewFromInt(3), Polarity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []common.OrderRef{"77"}, []common.OrderRef(placed.OrderHandles))
	assert.Equal(t, true, fx.requests[0].body["WantAllOrNothingBehaviour"])

	cancelled, err := a.CancelOrders(context.Background(), []common.OrderRef{"77"})
	require.NoError(t, err)
	require.Len(t, cancelled.Orders, 1)
	assert.Equal(t, common.OrderRef("77"), cancelled.Orders[0].OrderHandle)

	bal, err := a.GetAccountBalances(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.AvailableFunds.Equal(decimal.RequireFromString("90.5")))
	assert.True(t, bal.Exposure.Equal(decimal.RequireFromString("9.5")))
}

func TestNonZeroStatusIsNotATransportError(t *testing.T) {
	a, _ := newAdapter(t, map[string]string{
		"ListOrdersChangedSince": `{"ReturnStatus":{"Code":406,"Description":"PunterIsBlacklisted"}}`,
	})
	resp, err := a.ListOrdersChangedSince(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, common.StatusPunterBlacklisted, resp.ReturnStatus.Code)
}

func TestTransportFailures(t *testing.T) {
	a, _ := newAdapter(t, map[string]string{"GetPrices": `{"MarketPrices": [`})

	_, err := a.GetPrices(context.Background(), common.PricesRequest{})
	var te *common.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Contains(t, err.Error(), "decode response")

	_, err = a.CancelOrders(context.Background(), nil)
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Contains(t, err.Error(), "http 404")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.ListBootstrapOrders(ctx, 0)
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, context.Canceled)
}
