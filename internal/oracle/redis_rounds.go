package oracle

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// RedisRounds lê rodadas publicadas no Redis por um processo externo.
// Espera "oracle:round:{n}" => aleatoriedade em hex e "oracle:latest" => n.
type RedisRounds struct {
	Rdb *redis.Client
}

func NewRedisRounds(r *redis.Client) *RedisRounds { return &RedisRounds{Rdb: r} }

var _ ledger.RandomnessSource = (*RedisRounds)(nil)

const LatestKey = "oracle:latest"

func RoundKey(round uint64) string { return fmt.Sprintf("oracle:round:%d", round) }

func (r *RedisRounds) RandomValueForRound(ctx context.Context, round uint64) ([]byte, bool, error) {
	val, err := r.Rdb.Get(ctx, RoundKey(round)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b, err := hex.DecodeString(val)
	if err != nil {
		return nil, false, fmt.Errorf("round %d randomness: %w", round, err)
	}
	return b, len(b) > 0, nil
}

func (r *RedisRounds) LatestRound(ctx context.Context) (uint64, error) {
	n, err := r.Rdb.Get(ctx, LatestKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
