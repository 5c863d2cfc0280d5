package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/domains/internal/app"
	"github.com/edvin/domains/internal/config"
	"github.com/edvin/domains/internal/db"
	"github.com/edvin/domains/internal/logging"
	"github.com/edvin/domains/internal/metrics"
	"github.com/edvin/domains/internal/reconciler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to register pool metrics")
	}

	services, err := app.NewServices(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	rec := reconciler.New(reconciler.Deps{
		DomainStore:    services.DomainStore,
		SubdomainStore: services.SubdomainStore,
		Domains:        services.Domains,
		Subdomains:     services.Subdomains,
		Certs:          services.Resolver,
		Notifier:       services.Notifier,
	}, services.Policy, cfg.ReconcileInterval, cfg.ReconcileConcurrency, logger)

	var metricsSrv *http.Server
	if cfg.MetricsListenAddr != "" {
		metricsSrv = metrics.NewServer(cfg.MetricsListenAddr, func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return rec.Healthy(time.Now())
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		rec.RunLoop(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
	<-done

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
}
