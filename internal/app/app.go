// Package app monta o ledger a partir do config: store, oráculo, relógio de
// blocos, publishers e métricas. Usado pelo casino-service e pelo resolver-keeper.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/chain"
	"github.com/radieske/oracle-casino/internal/events"
	"github.com/radieske/oracle-casino/internal/ledger"
	"github.com/radieske/oracle-casino/internal/ledger/store"
	"github.com/radieske/oracle-casino/internal/oracle"
	"github.com/radieske/oracle-casino/internal/shared/cache"
	"github.com/radieske/oracle-casino/internal/shared/config"
	"github.com/radieske/oracle-casino/internal/shared/db"
	"github.com/radieske/oracle-casino/internal/shared/kafka"
	"github.com/radieske/oracle-casino/internal/shared/metrics"
)

// Runtime guarda o ledger montado e as conexões que os serviços ainda usam.
type Runtime struct {
	Ledger  *ledger.Ledger
	PG      *sql.DB       // nil com STORE_BACKEND=memory
	Redis   *redis.Client // nil sem REDIS_ADDR
	Metrics *metrics.Ledger
	Checks  []metrics.HealthFunc

	closers []func() error
}

// Close libera as conexões na ordem inversa de abertura.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// BuildLedger conecta as dependências e monta o ledger. Em caso de erro o que
// já foi aberto é fechado.
func BuildLedger(ctx context.Context, cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (_ *Runtime, err error) {
	rt := &Runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	params, err := cfg.LedgerParams()
	if err != nil {
		return nil, fmt.Errorf("game params: %w", err)
	}

	var st ledger.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
		log.Warn("using in-memory store; balances are lost on restart")
	default:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		rt.PG = pg
		rt.closers = append(rt.closers, pg.Close)
		pgStore := store.NewPostgres(pg)
		if err := pgStore.Migrate(ctx); err != nil {
			return nil, err
		}
		st = pgStore
		rt.Checks = append(rt.Checks, pg.PingContext)
		log.Info("postgres connected")
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		rt.Redis = rdb
		rt.closers = append(rt.closers, rdb.Close)
		rt.Checks = append(rt.Checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info("redis connected")
	}

	// Oráculo sempre atrás do cache LRU
	var src ledger.RandomnessSource
	switch cfg.OracleBackend {
	case "redis":
		if rt.Redis == nil {
			return nil, errors.New("ORACLE_BACKEND=redis requires REDIS_ADDR")
		}
		src = oracle.NewRedisRounds(rt.Redis)
	default:
		src = oracle.NewHTTPBeacon(cfg.OracleURL)
	}
	cached, err := oracle.NewCached(src, cfg.OracleCacheSize)
	if err != nil {
		return nil, err
	}
	log.Info("oracle ready", zap.String("backend", cfg.OracleBackend), zap.Int("cache_size", cfg.OracleCacheSize))

	clock, err := chain.NewClock(cfg.ChainGenesis, cfg.ChainBlockPeriod)
	if err != nil {
		return nil, err
	}

	// Publicação: Kafka (histórico) + Redis Pub/Sub (WebSocket)
	var publishers events.Fanout
	if cfg.KafkaBrokers != "" {
		if cfg.Env == "local" || cfg.Env == "dev" {
			tctx, tcancel := context.WithTimeout(ctx, 5*time.Second)
			if err := kafka.EnsureTopics(tctx, cfg.KafkaBrokers, cfg.TopicBetRegistered, cfg.TopicBetResolved, cfg.TopicBetResolvedDLQ); err != nil {
				log.Warn("kafka ensure topics", zap.Error(err))
			}
			tcancel()
		}
		kp := events.NewKafkaPublisher(
			kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetRegistered),
			kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved),
			log,
		)
		rt.closers = append(rt.closers, kp.Close)
		publishers = append(publishers, kp)
	}
	if rt.Redis != nil {
		publishers = append(publishers, events.NewRedisBroadcaster(rt.Redis, cfg.RedisPubSubChannel))
	}

	rt.Metrics = metrics.NewLedger(reg)
	rt.Ledger, err = ledger.New(log, st, cached, clock, params,
		ledger.WithPublisher(publishers),
		ledger.WithHooks(rt.Metrics.Hooks()),
	)
	if err != nil {
		return nil, err
	}
	l := rt.Ledger
	metrics.HeldStakeGauge(reg, func() (int64, error) {
		hctx, hcancel := context.WithTimeout(context.Background(), time.Second)
		defer hcancel()
		return l.HeldStake(hctx)
	})
	return rt, nil
}
