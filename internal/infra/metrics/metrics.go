package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	APICallsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "api_calls_total", Help: "API calls by exchange and endpoint"}, []string{"exchange", "endpoint"})
	APIErrorsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "api_errors_total", Help: "API errors by exchange and endpoint"}, []string{"exchange", "endpoint"})
	APILatencyMs    = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "api_latency_ms", Help: "API round trip latency", Buckets: prometheus.ExponentialBuckets(5, 2, 12)}, []string{"endpoint"})
	RateLimitWaitMs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "rate_limit_wait_ms", Help: "Time spent waiting for a request token", Buckets: prometheus.ExponentialBuckets(1, 2, 14)})

	PriceChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "price_chunks_total", Help: "GetPrices batches issued"})

	SyncsTotal          = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "order_syncs_total", Help: "Order syncs by kind and outcome"}, []string{"kind", "outcome"})
	OrderSequenceNumber = prometheus.NewGauge(prometheus.GaugeOpts{Name: "order_sequence_number", Help: "Last acknowledged order sequence number"})
	OrdersTracked       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "orders_tracked", Help: "Orders in the synchronized view"})
	SinkErrorsTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "order_sink_errors_total", Help: "Failed order sink writes"}, []string{"sink"})

	OrdersSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Orders accepted by the exchange"})
	OrdersCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_cancelled_total", Help: "Orders confirmed cancelled"})
	RejectedOrders       = prometheus.NewCounter(prometheus.CounterOpts{Name: "rejected_orders", Help: "Orders rejected locally or by the exchange"})

	ComplianceBlocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "compliance_blocks_total", Help: "Calls refused locally for a blacklisted account"}, []string{"action"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		APICallsTotal, APIErrorsTotal, APILatencyMs, RateLimitWaitMs,
		PriceChunksTotal,
		SyncsTotal, OrderSequenceNumber, OrdersTracked, SinkErrorsTotal,
		OrdersSubmittedTotal, OrdersCancelledTotal, RejectedOrders,
		ComplianceBlocksTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
