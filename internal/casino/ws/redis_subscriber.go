package ws

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal de apostas resolvidas e repassa ao hub.
// Qualquer instância do casino-service que resolva uma aposta publica no canal,
// então todos os hubs recebem.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				if err := hub.broadcastRaw(msg.Payload); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
				}
			}
		}
	}()
}
