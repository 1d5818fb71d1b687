package history

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	ev "github.com/radieske/oracle-casino/pkg/contracts/events"
)

// Reader é o subconjunto de *kafka.Reader usado pelo processor.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Writer é o subconjunto de *kafka.Writer usado para a DLQ.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Repo grava o evento; inserted=false quando já existia.
type Repo interface {
	Insert(ctx context.Context, e ev.BetResolved) (bool, error)
}

// Processor consome bet_resolved e grava o histórico.
// Mensagens que não decodificam ou que falham após as tentativas vão para a DLQ.
type Processor struct {
	Log     *zap.Logger
	Reader  Reader
	Repo    Repo
	DLQ     Writer // opcional
	Retries int
	Backoff time.Duration

	OnConsumed  func()       // métricas (counter++)
	OnPersist   func()       // métricas
	OnDuplicate func()       // métricas
	OnDLQ       func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop de consumo até o contexto ser cancelado.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.onError("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Nunca devolve erro: o que não for
// gravado acaba na DLQ para não travar a partição.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var e ev.BetResolved
	if err := json.Unmarshal(m.Value, &e); err != nil || e.BetID == 0 {
		p.Log.Warn("invalid bet_resolved message", zap.Error(err))
		p.onError("decode")
		p.toDLQ(ctx, m, "decode")
		return
	}

	var (
		inserted bool
		err      error
	)
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 && !sleep(ctx, time.Duration(attempt)*p.Backoff) {
			p.Log.Warn("history insert interrupted", zap.Uint64("bet_id", e.BetID), zap.Int("attempt", attempt))
			p.onError("shutdown")
			return
		}
		if inserted, err = p.Repo.Insert(ctx, e); err == nil {
			break
		}
		p.Log.Warn("history insert failed",
			zap.Uint64("bet_id", e.BetID), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	if err != nil {
		p.onError("db_insert")
		p.toDLQ(ctx, m, "db_insert")
		return
	}

	if !inserted {
		p.Log.Debug("duplicate bet_resolved", zap.Uint64("bet_id", e.BetID), zap.String("event_id", e.EventID))
		if p.OnDuplicate != nil {
			p.OnDuplicate()
		}
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
}

func (p *Processor) toDLQ(ctx context.Context, m kafka.Message, stage string) {
	if p.DLQ == nil {
		return
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "stage", Value: []byte(stage)},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
		},
	}
	if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.onError("dlq")
		return
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
}

// sleep espera d ou o cancelamento do ctx; devolve false se cancelado.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *Processor) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
