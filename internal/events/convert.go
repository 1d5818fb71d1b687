package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/radieske/oracle-casino/internal/ledger"
	ev "github.com/radieske/oracle-casino/pkg/contracts/events"
)

func registeredEvent(b ledger.Bet, now time.Time) ev.BetRegistered {
	return ev.BetRegistered{
		EventID:      uuid.NewString(),
		BetID:        uint64(b.ID),
		Bettor:       b.Bettor,
		Round:        b.Round,
		AmountCents:  b.Amount,
		RegisteredAt: b.RegisteredAt,
		TsUnixMs:     now.UnixMilli(),
	}
}

func resolvedEvent(r ledger.Resolution, now time.Time) ev.BetResolved {
	return ev.BetResolved{
		EventID:     uuid.NewString(),
		BetID:       uint64(r.BetID),
		Bettor:      r.Bettor,
		Round:       r.Round,
		AmountCents: r.Amount,
		Outcome:     string(r.Outcome),
		PayoutCents: r.Payout,
		ResolvedAt:  r.ResolvedAt,
		Ts:          now.UTC(),
	}
}
