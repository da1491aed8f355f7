package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/ancjainil/Crisis-management/internal/adapter/httpapi"
	kafkaadapter "github.com/ancjainil/Crisis-management/internal/adapter/kafka"
	"github.com/ancjainil/Crisis-management/internal/channel"
	"github.com/ancjainil/Crisis-management/internal/config"
	"github.com/ancjainil/Crisis-management/internal/dispatch"
	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/engine"
	"github.com/ancjainil/Crisis-management/internal/index"
	"github.com/ancjainil/Crisis-management/internal/ledger"
	"github.com/ancjainil/Crisis-management/internal/matcher"
	"github.com/ancjainil/Crisis-management/internal/observability"
	"github.com/ancjainil/Crisis-management/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	led, err := ledger.Open(cfg.LedgerPath, clock,
		ledger.Backoff{Base: cfg.RetryBackoffBase, Max: cfg.RetryBackoffMax, JitterFrac: cfg.RetryJitterFrac},
		ledger.Limits{MaxAttempts: cfg.RetryMaxAttempts, MaxAge: cfg.RetryMaxAge},
	)
	if err != nil {
		// Ledger corruption would silently void the dedup guarantee; halt
		// and require operator intervention.
		logger.Error("failed to open delivery ledger", "error", err)
		os.Exit(1)
	}

	ix := index.New(clock)
	reg := registry.New(domain.ImpactMapping{
		BaseRadiusM:    cfg.ImpactBaseRadiusM,
		MetersPerPoint: cfg.ImpactMetersPerPoint,
	})
	match := matcher.New(reg, reg)

	var adapters []channel.Adapter
	if cfg.SMSGatewayURL != "" {
		adapters = append(adapters, channel.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayToken, cfg.ProviderTimeout, logger))
		logger.Info("sms channel enabled", "gateway", cfg.SMSGatewayURL)
	}
	if cfg.PushServiceURL != "" {
		adapters = append(adapters, channel.NewPushClient(cfg.PushServiceURL, cfg.PushServiceToken, cfg.ProviderTimeout, logger))
		logger.Info("push channel enabled", "service", cfg.PushServiceURL)
	}
	if len(adapters) == 0 {
		logger.Warn("no channel adapters configured; dispatches will fail permanently")
	}

	coord := dispatch.New(led, adapters, reg, reg, ix, logger, metrics, clock, dispatch.Config{
		Workers:       cfg.DispatchWorkers,
		QueueSize:     cfg.DispatchQueue,
		SendTimeout:   cfg.SendTimeout,
		RetryInterval: cfg.RetryInterval,
		RetryBatch:    cfg.RetryBatch,
	})

	reader := kafkaadapter.NewReader(cfg, logger)

	eng := engine.New(reader, ix, match, coord, logger, metrics, clock, engine.Config{
		BatchSize:     cfg.BatchSize,
		SilenceWindow: cfg.SilenceWindow,
		SweepInterval: cfg.SweepInterval,
		Retention:     cfg.Retention,
	})

	srv := httpapi.NewServer(cfg.HTTPAddr, eng, ix, led, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := coord.Run(ctx); err != nil {
			logger.Error("dispatch coordinator error", "error", err)
		}
	}()

	go func() {
		if err := eng.Run(ctx); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := led.Close(); err != nil {
		logger.Error("ledger close error", "error", err)
	}

	logger.Info("shutdown complete")
}
