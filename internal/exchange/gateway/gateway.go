// Package gateway is the JSON-over-HTTP transport for the exchange API. It
// speaks to two services: a read-only one for prices and a secure one for
// orders and account data.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"betsync/internal/config"
	"betsync/internal/exchange/common"
	"betsync/internal/infra/log"
	"betsync/internal/infra/metrics"
	"betsync/internal/infra/network"
)

type service int

const (
	readOnly service = iota
	secure
)

// Adapter implements common.Transport and common.Balancer.
type Adapter struct {
	name    string
	cfg     config.Config
	http    *http.Client
	limiter *network.TokenBucket
	logger  log.Logger
}

func New(cfg config.Config, logger log.Logger) *Adapter {
	ex := cfg.Exchange
	return &Adapter{
		name:    ex.ID,
		cfg:     cfg,
		http:    network.NewHTTPClient(time.Duration(ex.TimeoutSeconds) * time.Second),
		limiter: network.NewTokenBucket(ex.Burst, ex.RequestsPerSecond, nil),
		logger:  logger,
	}
}

func (a *Adapter) Name() string { return a.name }

type sequenceRequest struct {
	SequenceNumber                      int64 `json:"SequenceNumber"`
	WantSettledOrdersOnUnsettledMarkets *bool `json:"WantSettledOrdersOnUnsettledMarkets,omitempty"`
}

type cancelRequest struct {
	OrderHandles []common.OrderRef `json:"OrderHandles"`
}

func (a *Adapter) ListBootstrapOrders(ctx context.Context, seq int64) (common.RawBootstrapResponse, error) {
	var out common.RawBootstrapResponse
	settled := false
	err := a.call(ctx, secure, "ListBootstrapOrders", sequenceRequest{SequenceNumber: seq, WantSettledOrdersOnUnsettledMarkets: &settled}, &out)
	a.observeStatus("ListBootstrapOrders", out.ReturnStatus)
	return out, err
}

func (a *Adapter) ListOrdersChangedSince(ctx context.Context, seq int64) (common.RawOrdersChangedResponse, error) {
	var out common.RawOrdersChangedResponse
	err := a.call(ctx, secure, "ListOrdersChangedSince", sequenceRequest{SequenceNumber: seq}, &out)
	a.observeStatus("ListOrdersChangedSince", out.ReturnStatus)
	return out, err
}

func (a *Adapter) GetPrices(ctx context.Context, req common.PricesRequest) (common.RawPricesResponse, error) {
	var out common.RawPricesResponse
	err := a.call(ctx, readOnly, "GetPrices", req, &out)
	a.observeStatus("GetPrices", out.ReturnStatus)
	return out, err
}

func (a *Adapter) PlaceOrders(ctx context.Context, req common.PlaceOrdersRequest) (common.RawPlaceResponse, error) {
	var out common.RawPlaceResponse
	err := a.call(ctx, secure, "PlaceOrdersNoReceipt", req, &out)
	a.observeStatus("PlaceOrdersNoReceipt", out.ReturnStatus)
	return out, err
}

func (a *Adapter) CancelOrders(ctx context.Context, refs []common.OrderRef) (common.RawCancelResponse, error) {
	var out common.RawCancelResponse
	err := a.call(ctx, secure, "CancelOrders", cancelRequest{OrderHandles: refs}, &out)
	a.observeStatus("CancelOrders", out.ReturnStatus)
	return out, err
}

func (a *Adapter) GetAccountBalances(ctx context.Context) (common.RawBalancesResponse, error) {
	var out common.RawBalancesResponse
	err := a.call(ctx, secure, "GetAccountBalances", struct{}{}, &out)
	a.observeStatus("GetAccountBalances", out.ReturnStatus)
	return out, err
}

func (a *Adapter) observeStatus(op string, st common.ReturnStatus) {
	if st.Code != common.StatusOK {
		metrics.APIErrorsTotal.WithLabelValues(a.name, op).Inc()
		a.logger.Debug().Str("op", op).Int("code", st.Code).Str("description", st.Description).Msg("non-zero return status")
	}
}

// call POSTs body as JSON to {service}/{op} and decodes the response into out.
// Every failure below the API layer comes back as *common.TransportError.
func (a *Adapter) call(ctx context.Context, svc service, op string, body, out interface{}) error {
	waited, err := a.limiter.Wait(ctx)
	metrics.RateLimitWaitMs.Observe(float64(waited.Milliseconds()))
	if err != nil {
		return &common.TransportError{Op: op, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return &common.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url(svc, op), bytes.NewReader(payload))
	if err != nil {
		return &common.TransportError{Op: op, Err: err}
	}
	a.setHeaders(req, svc)

	metrics.APICallsTotal.WithLabelValues(a.name, op).Inc()
	start := time.Now()
	resp, err := a.http.Do(req)
	metrics.APILatencyMs.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.APIErrorsTotal.WithLabelValues(a.name, op).Inc()
		return &common.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		metrics.APIErrorsTotal.WithLabelValues(a.name, op).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &common.TransportError{Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.APIErrorsTotal.WithLabelValues(a.name, op).Inc()
		return &common.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	a.logger.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("api call")
	return nil
}

func (a *Adapter) url(svc service, op string) string {
	base := a.cfg.Exchange.ReadOnlyURL
	if svc == secure {
		base = a.cfg.Exchange.SecureURL
	}
	return strings.TrimRight(base, "/") + "/" + op
}

// setHeaders carries the API header: version, currency, language and the
// username; the password goes to the secure service only.
func (a *Adapter) setHeaders(req *http.Request, svc service) {
	ex := a.cfg.Exchange
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Version", ex.APIVersion)
	req.Header.Set("X-Currency", ex.Currency)
	req.Header.Set("X-Language", ex.Language)
	req.Header.Set("X-Username", ex.Username)
	if svc == secure {
		req.Header.Set("X-Password", ex.Password)
	}
}
