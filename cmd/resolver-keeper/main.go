package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/app"
	"github.com/radieske/oracle-casino/internal/keeper"
	"github.com/radieske/oracle-casino/internal/ledger"
	"github.com/radieske/oracle-casino/internal/shared/config"
	"github.com/radieske/oracle-casino/internal/shared/logger"
	"github.com/radieske/oracle-casino/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.BuildLedger(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("ledger init", zap.Error(err))
	}
	defer rt.Close()

	// Métricas do keeper
	resolved := prometheus.NewCounter(prometheus.CounterOpts{Name: "keeper_bets_resolved_total", Help: "apostas resolvidas pelo keeper"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "keeper_bets_skipped_total", Help: "apostas adiadas por motivo"}, []string{"reason"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "keeper_errors_total", Help: "falhas ao listar ou resolver"})
	prometheus.MustRegister(resolved, skipped, failures)

	k := &keeper.Keeper{
		Log:        log,
		Ledger:     rt.Ledger,
		Batch:      cfg.KeeperBatch,
		OnResolved: func(ledger.Resolution) { resolved.Inc() },
		OnSkipped:  func(reason string) { skipped.WithLabelValues(reason).Inc() },
		OnError:    func() { failures.Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil, rt.Checks...)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("resolver-keeper started", zap.String("schedule", cfg.KeeperSchedule), zap.Int("batch", cfg.KeeperBatch))
	if err := k.Start(ctx, cfg.KeeperSchedule); err != nil {
		log.Fatal("keeper stopped with error", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = metricsSrv.Shutdown(sctx)
	log.Info("resolver-keeper stopped")
}
