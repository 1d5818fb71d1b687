package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// ChannelBetResolved é o canal Redis Pub/Sub lido pelo hub WebSocket.
const ChannelBetResolved = "bet_resolved_broadcast"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBroadcaster repassa apostas resolvidas para o Redis Pub/Sub.
// Registros não são transmitidos.
type RedisBroadcaster struct {
	r       redisPublisher
	channel string
	now     func() time.Time
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelBetResolved
	}
	return &RedisBroadcaster{r: r, channel: channel, now: time.Now}
}

var _ ledger.Publisher = (*RedisBroadcaster)(nil)

func (b *RedisBroadcaster) BetRegistered(context.Context, ledger.Bet) error { return nil }

func (b *RedisBroadcaster) BetResolved(ctx context.Context, r ledger.Resolution) error {
	payload, err := json.Marshal(resolvedEvent(r, b.now()))
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
