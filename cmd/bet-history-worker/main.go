package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/history"
	"github.com/radieske/oracle-casino/internal/ledger/store"
	"github.com/radieske/oracle-casino/internal/shared/config"
	"github.com/radieske/oracle-casino/internal/shared/db"
	"github.com/radieske/oracle-casino/internal/shared/kafka"
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

	// Postgres para a tabela bet_history
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := store.NewPostgres(pg).Migrate(ctx); err != nil {
		log.Fatal("postgres migrate", zap.Error(err))
	}

	// Kafka consumer (consumer group bet-history) e DLQ
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetResolved, "bet-history")
	defer reader.Close()

	var dlq history.Writer
	if cfg.TopicBetResolvedDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolvedDLQ)
		defer w.Close()
		dlq = w
	}

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_messages_consumed_total", Help: "mensagens consumidas"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_db_writes_total", Help: "apostas gravadas no histórico"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_duplicates_total", Help: "reentregas ignoradas"})
	dlqSent := prometheus.NewCounter(prometheus.CounterOpts{Name: "history_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "history_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persisted, duplicates, dlqSent, errorsBy)

	proc := &history.Processor{
		Log:         log,
		Reader:      reader,
		Repo:        history.NewPostgresRepo(pg),
		DLQ:         dlq,
		Retries:     3,
		Backoff:     300 * time.Millisecond,
		OnConsumed:  func() { consumed.Inc() },
		OnPersist:   func() { persisted.Inc() },
		OnDuplicate: func() { duplicates.Inc() },
		OnDLQ:       func() { dlqSent.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil, pg.PingContext)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("bet-history-worker started",
		zap.String("consume", cfg.TopicBetResolved),
		zap.String("dlq", cfg.TopicBetResolvedDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = metricsSrv.Shutdown(sctx)
	log.Info("bet-history-worker stopped")
}
