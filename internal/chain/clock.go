package chain

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// Clock deriva a altura de bloco do tempo decorrido desde o genesis:
// height = floor((now - genesis) / period).
type Clock struct {
	Genesis time.Time
	Period  time.Duration
	Now     func() time.Time
}

func NewClock(genesis time.Time, period time.Duration) (*Clock, error) {
	if period <= 0 {
		return nil, errors.New("block period must be positive")
	}
	return &Clock{Genesis: genesis, Period: period, Now: time.Now}, nil
}

var _ ledger.HeightSource = (*Clock)(nil)

func (c *Clock) Height(context.Context) (uint64, error) {
	now := c.Now()
	if now.Before(c.Genesis) {
		return 0, nil
	}
	return uint64(now.Sub(c.Genesis) / c.Period), nil
}
