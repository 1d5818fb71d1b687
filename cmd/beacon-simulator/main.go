package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/beacon"
	"github.com/radieske/oracle-casino/internal/shared/cache"
	"github.com/radieske/oracle-casino/internal/shared/config"
	"github.com/radieske/oracle-casino/internal/shared/logger"
	"github.com/radieske/oracle-casino/internal/shared/metrics"
)

// Métricas Prometheus do simulador
var (
	latestRound = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_latest_round",
		Help: "Última rodada publicada",
	})
	mirroredRound = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_mirrored_round",
		Help: "Última rodada copiada para o Redis",
	})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if cfg.BeaconPeriod <= 0 {
		log.Fatal("BEACON_PERIOD must be positive")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := beacon.New(cfg.BeaconSeed, cfg.ChainGenesis, cfg.BeaconPeriod)
	prometheus.MustRegister(latestRound, mirroredRound)
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "beacon_period_seconds",
		Help: "Intervalo entre rodadas",
	}, func() float64 { return cfg.BeaconPeriod.Seconds() }))

	var checks []metrics.HealthFunc

	// Espelho no Redis para ORACLE_BACKEND=redis
	if cfg.BeaconMirrorRedis {
		rdb, err := cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		go sim.RunMirror(ctx, rdb, log, func(n uint64) { mirroredRound.Set(float64(n)) })
		log.Info("mirroring rounds to redis", zap.String("addr", cfg.RedisAddr))
	}

	// Atualiza a métrica da última rodada a cada período
	go func() {
		t := time.NewTicker(cfg.BeaconPeriod)
		defer t.Stop()
		for {
			latestRound.Set(float64(sim.Latest()))
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil, checks...)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("beacon simulator running",
			zap.String("addr", srv.Addr),
			zap.String("paths", "/public/latest,/public/{round}"),
			zap.Duration("period", cfg.BeaconPeriod),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("public server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	_ = metricsSrv.Shutdown(sctx)
	log.Info("beacon simulator stopped")
}
