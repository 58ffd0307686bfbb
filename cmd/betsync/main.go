package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"betsync/internal/api/rest"
	"betsync/internal/config"
	"betsync/internal/exchange/common"
	"betsync/internal/exchange/gateway"
	"betsync/internal/infra/clock"
	"betsync/internal/infra/health"
	"betsync/internal/infra/http/middleware"
	"betsync/internal/infra/log"
	"betsync/internal/infra/metrics"
	"betsync/internal/infra/netutil"
	"betsync/internal/infra/runner"
	"betsync/internal/infra/version"
	"betsync/internal/ordersync"
	"betsync/internal/risk"
	"betsync/internal/session"
	"betsync/internal/store"
	"betsync/internal/store/kafka"
	"betsync/internal/store/pebble"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	logger := log.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("bad configuration")
	}
	exID, err := common.ParseExchangeID(cfg.Exchange.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad configuration")
	}

	registry := metrics.Init(logger)

	// order sinks
	var (
		sinks []ordersync.Sink
		db    *pebble.Store
	)
	if cfg.Store.PebblePath != "" {
		db, err = pebble.Open(cfg.Store.PebblePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("open order store")
		}
		defer db.Close()
		sinks = append(sinks, db)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := kafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer k.Close()
		sinks = append(sinks, k)
	}
	fanout := store.NewMulti(logger, sinks...)

	sess, err := session.New(sessionOptions(cfg, exID), gateway.New(cfg, logger), fanout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create session")
	}
	if db != nil && cfg.Orders.ResumeFromStore {
		if err := resume(sess, db); err != nil {
			logger.Warn().Err(err).Msg("could not resume from order store, bootstrapping")
		}
	}

	handler := buildHandler(cfg, logger, registry, sess)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Int("sinks", fanout.Len()).Str("version", version.Version).Msg("betsync started")

	g := runner.New(logger)
	interval := time.Duration(cfg.Orders.PollIntervalSeconds) * time.Second
	syncErrCh := g.Go(ctx, "order-sync", func(ctx context.Context) error {
		return sess.Run(ctx, interval)
	})
	var pricesErrCh <-chan error
	if len(cfg.Prices.MarketIDs) > 0 {
		pricesErrCh = g.Go(ctx, "prices", func(ctx context.Context) error {
			return watchPrices(ctx, sess, cfg.Prices.MarketIDs, interval, logger)
		})
	}

	health.SetReady(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-syncErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("order sync stopped")
		}
	case err := <-pricesErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("price watcher stopped")
		}
	}

	health.SetReady(false)
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("workers exited with errors")
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Int64("seq", sess.SequenceNumber()).Msg("shutdown complete")
}

func sessionOptions(cfg config.Config, id common.ExchangeID) session.Options {
	return session.Options{
		Exchange:          id,
		Depth:             cfg.Prices.Depth,
		MaxMarketsPerCall: cfg.Prices.MaxMarketsPerCall,
		PriceThrottle:     time.Duration(cfg.Prices.ThrottleSeconds * float64(time.Second)),
		MaxOrdersPerCall:  cfg.Orders.MaxPerPlaceCall,
		MaxRefsPerCancel:  cfg.Orders.MaxPerCancelCall,
		Limits: risk.Limits{
			MaxStake:     decimal.NewFromFloat(cfg.Orders.MaxStake),
			MaxLiability: decimal.NewFromFloat(cfg.Orders.MaxLiability),
		},
	}
}

func resume(sess *session.Session, db *pebble.Store) error {
	seq, orders, found, err := db.Load()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return sess.Restore(seq, orders)
}

// buildHandler wires the admin endpoints; metrics, pprof and the order API sit
// behind the CIDR gate.
func buildHandler(cfg config.Config, logger log.Logger, registry *prometheus.Registry, sess *session.Session) http.Handler {
	mux := http.NewServeMux()
	adminCIDRs := netutil.MustParseCIDRs(cfg.Server.AdminAllowCIDRs)
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.Handle("/api/", middleware.AdminGate(adminCIDRs, rest.New(sess).Handler()))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}

	health.AddCheck("orders", func() error {
		switch p := sess.State(); p {
		case ordersync.Synced, ordersync.Polling:
			return nil
		default:
			return fmt.Errorf("orders %s", p)
		}
	})

	return middleware.RequestID(middleware.Logger(logger)(mux))
}

// watchPrices fetches the configured markets every interval and logs the best
// back and lay price per selection.
func watchPrices(ctx context.Context, sess *session.Session, marketIDs []int64, interval time.Duration, logger log.Logger) error {
	for ctx.Err() == nil {
		books, err := sess.Prices(ctx, marketIDs)
		switch {
		case errors.Is(err, common.ErrBlacklisted):
			return err
		case err != nil && ctx.Err() == nil:
			logger.Warn().Err(err).Msg("price fetch failed")
		}
		for _, m := range books {
			for _, s := range m.Selections {
				logger.Debug().
					Int64("market", m.MarketID).
					Int64("selection", s.SelectionID).
					Str("name", s.Name).
					Str("back", s.Back[0].Price.String()).
					Str("lay", s.Lay[0].Price.String()).
					Msg("best prices")
			}
		}
		if err := clock.Sleep(ctx, clock.Real{}, interval); err != nil {
			return nil
		}
	}
	return nil
}
