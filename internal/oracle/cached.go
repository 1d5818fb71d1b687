package oracle

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// Cached guarda em memória as rodadas já publicadas. Uma rodada publicada
// nunca muda, então só valores encontrados entram no cache; LatestRound
// sempre vai à fonte.
type Cached struct {
	src   ledger.RandomnessSource
	cache *lru.Cache
}

func NewCached(src ledger.RandomnessSource, size int) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("oracle cache: %w", err)
	}
	return &Cached{src: src, cache: c}, nil
}

var _ ledger.RandomnessSource = (*Cached)(nil)

func (c *Cached) RandomValueForRound(ctx context.Context, round uint64) ([]byte, bool, error) {
	if v, ok := c.cache.Get(round); ok {
		return append([]byte(nil), v.([]byte)...), true, nil
	}
	val, ok, err := c.src.RandomValueForRound(ctx, round)
	if err != nil || !ok {
		return nil, ok, err
	}
	c.cache.Add(round, append([]byte(nil), val...))
	return val, true, nil
}

func (c *Cached) LatestRound(ctx context.Context) (uint64, error) { return c.src.LatestRound(ctx) }

func (c *Cached) Len() int { return c.cache.Len() }
