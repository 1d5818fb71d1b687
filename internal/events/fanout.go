package events

import (
	"context"
	"errors"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// Fanout entrega cada evento a todos os publishers, mesmo se algum falhar.
type Fanout []ledger.Publisher

var _ ledger.Publisher = Fanout(nil)

func (f Fanout) BetRegistered(ctx context.Context, b ledger.Bet) error {
	var errs []error
	for _, p := range f {
		if err := p.BetRegistered(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) BetResolved(ctx context.Context, r ledger.Resolution) error {
	var errs []error
	for _, p := range f {
		if err := p.BetResolved(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
