package events

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/ledger"
	"github.com/radieske/oracle-casino/internal/shared/kafka"
)

// MessageWriter é o subconjunto de *kafka.Writer usado aqui.
type MessageWriter interface {
	kafka.MessageWriter
	Close() error
}

// KafkaPublisher publica os eventos do ledger em dois tópicos.
// A chave da mensagem é o id da aposta, mantendo a ordem por aposta na partição.
type KafkaPublisher struct {
	registered MessageWriter
	resolved   MessageWriter
	log        *zap.Logger
	now        func() time.Time
}

func NewKafkaPublisher(registered, resolved MessageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{registered: registered, resolved: resolved, log: log, now: time.Now}
}

var _ ledger.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) BetRegistered(ctx context.Context, b ledger.Bet) error {
	return p.write(ctx, p.registered, uint64(b.ID), registeredEvent(b, p.now()))
}

func (p *KafkaPublisher) BetResolved(ctx context.Context, r ledger.Resolution) error {
	return p.write(ctx, p.resolved, uint64(r.BetID), resolvedEvent(r, p.now()))
}

func (p *KafkaPublisher) write(ctx context.Context, w MessageWriter, betID uint64, e any) error {
	if err := kafka.WriteJSON(ctx, w, strconv.FormatUint(betID, 10), e, p.now()); err != nil {
		return err
	}
	p.log.Debug("published bet event", zap.Uint64("bet_id", betID))
	return nil
}

// Close finaliza os writers e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	err1 := p.registered.Close()
	err2 := p.resolved.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
