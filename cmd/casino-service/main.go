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

	"github.com/radieske/oracle-casino/internal/app"
	httpapi "github.com/radieske/oracle-casino/internal/casino/http"
	"github.com/radieske/oracle-casino/internal/casino/ws"
	"github.com/radieske/oracle-casino/internal/history"
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

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.BuildLedger(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("ledger init", zap.Error(err))
	}
	defer rt.Close()

	api := &httpapi.API{Log: log, Ledger: rt.Ledger}
	if rt.PG != nil {
		api.History = history.NewPostgresRepo(rt.PG)
	}
	// WebSocket: cada instância recebe as resoluções via Redis Pub/Sub
	if rt.Redis != nil {
		hub := ws.NewHub(log, func(*http.Request) bool { return true })
		ws.StartRedisSubscriber(ctx, rt.Redis, cfg.RedisPubSubChannel, hub, log)
		api.WS = hub.HandleWS
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil, rt.Checks...)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("casino-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("casino-service stopping")
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = apiSrv.Shutdown(sctx)
	_ = metricsSrv.Shutdown(sctx)
}
