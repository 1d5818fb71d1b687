package keeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// Resolver é o subconjunto do ledger usado pelo keeper.
type Resolver interface {
	Pending(ctx context.Context, after ledger.BetID, limit int) ([]ledger.Bet, error)
	Resolve(ctx context.Context, id ledger.BetID) (ledger.Resolution, error)
}

const defaultBatch = 100

// Keeper varre as apostas pendentes e tenta resolvê-las.
// Apostas ainda cedo demais ou sem aleatoriedade ficam para a próxima rodada.
// Cada varredura lê uma página a partir do cursor, então apostas presas
// não impedem que as seguintes sejam vistas.
// Callbacks de métricas são opcionais.
type Keeper struct {
	Log    *zap.Logger
	Ledger Resolver
	Batch  int

	OnResolved func(ledger.Resolution)
	OnSkipped  func(reason string)
	OnError    func()

	cursor ledger.BetID
}

// Stats resume uma varredura.
type Stats struct {
	Scanned  int
	Resolved int
	Skipped  int
	Failed   int
}

// RunOnce faz uma varredura. Só devolve erro se não conseguir listar as pendentes.
func (k *Keeper) RunOnce(ctx context.Context) (Stats, error) {
	var st Stats
	batch := k.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	bets, err := k.Ledger.Pending(ctx, k.cursor, batch)
	if err != nil {
		if k.OnError != nil {
			k.OnError()
		}
		return st, fmt.Errorf("list pending: %w", err)
	}
	st.Scanned = len(bets)

	// página incompleta: chegou ao fim, próxima varredura recomeça do início
	if len(bets) < batch {
		k.cursor = 0
	} else {
		k.cursor = bets[len(bets)-1].ID
	}

	for _, b := range bets {
		if ctx.Err() != nil {
			return st, ctx.Err()
		}
		res, err := k.Ledger.Resolve(ctx, b.ID)
		switch {
		case err == nil:
			st.Resolved++
			if k.OnResolved != nil {
				k.OnResolved(res)
			}
		case errors.Is(err, ledger.ErrTooEarly),
			errors.Is(err, ledger.ErrRandomnessUnavailable),
			errors.Is(err, ledger.ErrNotFound): // resolvida por outro caminho
			st.Skipped++
			if k.OnSkipped != nil {
				k.OnSkipped(ledger.Code(err))
			}
		default:
			st.Failed++
			k.Log.Warn("keeper resolve failed", zap.Uint64("bet_id", uint64(b.ID)), zap.Error(err))
			if k.OnError != nil {
				k.OnError()
			}
		}
	}
	return st, nil
}

// Start agenda RunOnce no cron (ex.: "@every 5s") e bloqueia até o ctx ser cancelado.
// Varreduras não se sobrepõem: se a anterior ainda roda, a nova é pulada.
func (k *Keeper) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		st, err := k.RunOnce(ctx)
		if err != nil {
			k.Log.Warn("keeper sweep failed", zap.Error(err))
			return
		}
		if st.Scanned > 0 {
			k.Log.Info("keeper sweep",
				zap.Int("scanned", st.Scanned),
				zap.Int("resolved", st.Resolved),
				zap.Int("skipped", st.Skipped),
				zap.Int("failed", st.Failed),
			)
		}
	}); err != nil {
		return fmt.Errorf("keeper schedule %q: %w", schedule, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done() // espera a varredura em andamento terminar
	return nil
}
