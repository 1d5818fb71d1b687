package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RandomnessSource é o oráculo de aleatoriedade externo.
// RandomValueForRound devolve ok=false enquanto a rodada não foi publicada.
type RandomnessSource interface {
	RandomValueForRound(ctx context.Context, round uint64) (value []byte, ok bool, err error)
	LatestRound(ctx context.Context) (uint64, error)
}

// HeightSource informa a altura de bloco atual.
type HeightSource interface {
	Height(ctx context.Context) (uint64, error)
}

// Store guarda apostas e saldos. Cada método é atômico.
type Store interface {
	// Insert debita Amount do apostador e cria a aposta PENDING, devolvendo o id novo.
	Insert(ctx context.Context, b *Bet) (BetID, error)
	Get(ctx context.Context, id BetID) (*Bet, error)
	// Settle remove a aposta, credita payout ao apostador e Amount-payout à casa.
	// Devolve ErrNotFound se a aposta já foi resolvida.
	Settle(ctx context.Context, id BetID, payout int64) (*Bet, error)
	// Pending lista as apostas pendentes com id maior que after, em ordem de id.
	Pending(ctx context.Context, after BetID, limit int) ([]Bet, error)
	HeldStake(ctx context.Context) (int64, error)
	Balance(ctx context.Context, account string) (int64, error)
	Deposit(ctx context.Context, account string, amount int64) (int64, error)
}

// Publisher recebe os eventos do ledger depois do commit.
type Publisher interface {
	BetRegistered(ctx context.Context, b Bet) error
	BetResolved(ctx context.Context, r Resolution) error
}

// Hooks permite acoplar métricas sem que o ledger conheça o Prometheus.
type Hooks struct {
	OnRegistered func(Bet)
	OnResolved   func(Resolution)
	OnRejected   func(op string, err error)
	OnPublishErr func(event string)
}

type Ledger struct {
	log     *zap.Logger
	store   Store
	oracle  RandomnessSource
	heights HeightSource
	publ    Publisher
	params  Params
	hooks   Hooks
	now     func() time.Time
}

type Option func(*Ledger)

func WithPublisher(p Publisher) Option { return func(l *Ledger) { l.publ = p } }

func WithHooks(h Hooks) Option { return func(l *Ledger) { l.hooks = h } }

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func New(log *zap.Logger, store Store, oracle RandomnessSource, heights HeightSource, params Params, opts ...Option) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("ledger params: %w", err)
	}
	l := &Ledger{
		log:     log,
		store:   store,
		oracle:  oracle,
		heights: heights,
		params:  params,
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func (l *Ledger) Params() Params { return l.params }

// Register trava a aposta numa rodada futura do oráculo.
// round == 0 deixa o ledger escolher LatestRound + RoundOffset.
func (l *Ledger) Register(ctx context.Context, bettor string, round uint64, amount int64) (Bet, error) {
	b, err := l.register(ctx, bettor, round, amount)
	if err != nil {
		l.rejected("register", err)
		return Bet{}, err
	}

	l.log.Info("bet registered",
		zap.Uint64("bet_id", uint64(b.ID)),
		zap.String("bettor", b.Bettor),
		zap.Uint64("round", b.Round),
		zap.Int64("amount", b.Amount),
		zap.Uint64("height", b.RegisteredAt),
	)
	if l.hooks.OnRegistered != nil {
		l.hooks.OnRegistered(b)
	}
	if l.publ != nil {
		if err := l.publ.BetRegistered(ctx, b); err != nil {
			l.log.Warn("publish bet_registered failed", zap.Uint64("bet_id", uint64(b.ID)), zap.Error(err))
			if l.hooks.OnPublishErr != nil {
				l.hooks.OnPublishErr("bet_registered")
			}
		}
	}
	return b, nil
}

func (l *Ledger) register(ctx context.Context, bettor string, round uint64, amount int64) (Bet, error) {
	if bettor == "" || bettor == HouseAccount {
		return Bet{}, ErrInvalidBettor
	}
	if amount < l.params.BetFee {
		return Bet{}, fmt.Errorf("%w: amount %d below fee %d", ErrInsufficientFee, amount, l.params.BetFee)
	}
	if amount > l.params.MaxStake {
		return Bet{}, fmt.Errorf("%w: amount %d above max stake %d", ErrInvalidAmount, amount, l.params.MaxStake)
	}

	latest, err := l.oracle.LatestRound(ctx)
	if err != nil {
		return Bet{}, fmt.Errorf("oracle latest round: %w", err)
	}
	if round == 0 {
		round = latest + l.params.RoundOffset
	}
	if round <= latest {
		return Bet{}, fmt.Errorf("%w: round %d already published (latest %d)", ErrInvalidRound, round, latest)
	}
	if round-latest > l.params.MaxRoundAhead {
		return Bet{}, fmt.Errorf("%w: round %d more than %d ahead of latest %d", ErrInvalidRound, round, l.params.MaxRoundAhead, latest)
	}
	// o oráculo pode publicar fora de ordem; a rodada não pode ter valor ainda
	if _, ok, err := l.oracle.RandomValueForRound(ctx, round); err != nil {
		return Bet{}, fmt.Errorf("oracle round %d: %w", round, err)
	} else if ok {
		return Bet{}, fmt.Errorf("%w: round %d already has randomness", ErrInvalidRound, round)
	}

	height, err := l.heights.Height(ctx)
	if err != nil {
		return Bet{}, fmt.Errorf("current height: %w", err)
	}

	b := Bet{
		Bettor:       bettor,
		Amount:       amount,
		Round:        round,
		RegisteredAt: height,
		Status:       StatusPending,
		CreatedAt:    l.now().UTC(),
	}
	id, err := l.store.Insert(ctx, &b)
	if err != nil {
		return Bet{}, err
	}
	b.ID = id
	return b, nil
}

// Resolve lê a aleatoriedade da rodada da aposta, decide o resultado e paga.
// Qualquer um pode chamar; o prêmio vai sempre para o apostador.
func (l *Ledger) Resolve(ctx context.Context, id BetID) (Resolution, error) {
	res, err := l.resolve(ctx, id)
	if err != nil {
		l.rejected("resolve", err)
		return Resolution{}, err
	}

	l.log.Info("bet resolved",
		zap.Uint64("bet_id", uint64(res.BetID)),
		zap.String("bettor", res.Bettor),
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("payout", res.Payout),
	)
	if l.hooks.OnResolved != nil {
		l.hooks.OnResolved(res)
	}
	if l.publ != nil {
		if err := l.publ.BetResolved(ctx, res); err != nil {
			l.log.Warn("publish bet_resolved failed", zap.Uint64("bet_id", uint64(res.BetID)), zap.Error(err))
			if l.hooks.OnPublishErr != nil {
				l.hooks.OnPublishErr("bet_resolved")
			}
		}
	}
	return res, nil
}

func (l *Ledger) resolve(ctx context.Context, id BetID) (Resolution, error) {
	b, err := l.store.Get(ctx, id)
	if err != nil {
		return Resolution{}, err
	}

	height, err := l.heights.Height(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("current height: %w", err)
	}
	if height < b.RegisteredAt || height-b.RegisteredAt < l.params.MinResolveDelay {
		return Resolution{}, fmt.Errorf("%w: height %d, registered at %d, delay %d",
			ErrTooEarly, height, b.RegisteredAt, l.params.MinResolveDelay)
	}

	randomness, ok, err := l.oracle.RandomValueForRound(ctx, b.Round)
	if err != nil {
		return Resolution{}, fmt.Errorf("oracle round %d: %w", b.Round, err)
	}
	if !ok || len(randomness) == 0 {
		return Resolution{}, fmt.Errorf("%w: round %d", ErrRandomnessUnavailable, b.Round)
	}

	outcome := DeriveOutcome(randomness, b.ID, l.params.WinOdds)
	var payout int64
	if outcome == OutcomeWon {
		if payout, err = l.params.Payout(b.Amount); err != nil {
			return Resolution{}, err
		}
	}

	settled, err := l.store.Settle(ctx, b.ID, payout)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		BetID:      settled.ID,
		Bettor:     settled.Bettor,
		Round:      settled.Round,
		Amount:     settled.Amount,
		Outcome:    outcome,
		Payout:     payout,
		ResolvedAt: height,
	}, nil
}

// Random repassa a consulta ao oráculo, só leitura.
func (l *Ledger) Random(ctx context.Context, round uint64) ([]byte, bool, error) {
	return l.oracle.RandomValueForRound(ctx, round)
}

func (l *Ledger) Bet(ctx context.Context, id BetID) (*Bet, error) { return l.store.Get(ctx, id) }

func (l *Ledger) Pending(ctx context.Context, after BetID, limit int) ([]Bet, error) {
	return l.store.Pending(ctx, after, limit)
}

func (l *Ledger) HeldStake(ctx context.Context) (int64, error) { return l.store.HeldStake(ctx) }

func (l *Ledger) Balance(ctx context.Context, account string) (int64, error) {
	return l.store.Balance(ctx, account)
}

func (l *Ledger) Deposit(ctx context.Context, account string, amount int64) (int64, error) {
	if account == "" {
		return 0, ErrInvalidBettor
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: deposit must be positive, got %d", ErrInvalidAmount, amount)
	}
	if amount > MaxBalance {
		return 0, fmt.Errorf("%w: deposit %d above balance cap", ErrInvalidAmount, amount)
	}
	return l.store.Deposit(ctx, account, amount)
}

func (l *Ledger) rejected(op string, err error) {
	if l.hooks.OnRejected != nil {
		l.hooks.OnRejected(op, err)
	}
	if Code(err) == "internal" {
		l.log.Error(op+" failed", zap.Error(err))
		return
	}
	l.log.Debug(op+" rejected", zap.String("reason", Code(err)), zap.Error(err))
}
