package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/ledger"
	"github.com/radieske/oracle-casino/internal/ledger/store"
)

// fakeOracle devolve valores roteirizados por rodada.
type fakeOracle struct {
	mu      sync.Mutex
	latest  uint64
	values  map[uint64][]byte
	queries int
	err     error
}

func newFakeOracle(latest uint64) *fakeOracle {
	return &fakeOracle{latest: latest, values: make(map[uint64][]byte)}
}

func (o *fakeOracle) publish(round uint64, v []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[round] = v
	if round > o.latest {
		o.latest = round
	}
}

func (o *fakeOracle) RandomValueForRound(_ context.Context, round uint64) ([]byte, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries++
	if o.err != nil {
		return nil, false, o.err
	}
	v, ok := o.values[round]
	return v, ok, nil
}

func (o *fakeOracle) LatestRound(context.Context) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return 0, o.err
	}
	return o.latest, nil
}

type fakeHeight struct{ h uint64 }

func (f *fakeHeight) Height(context.Context) (uint64, error) { return f.h, nil }

type recordingPublisher struct {
	registered []ledger.Bet
	resolved   []ledger.Resolution
	err        error
}

func (p *recordingPublisher) BetRegistered(_ context.Context, b ledger.Bet) error {
	p.registered = append(p.registered, b)
	return p.err
}

func (p *recordingPublisher) BetResolved(_ context.Context, r ledger.Resolution) error {
	p.resolved = append(p.resolved, r)
	return p.err
}

type fixture struct {
	ledger *ledger.Ledger
	store  *store.Memory
	oracle *fakeOracle
	height *fakeHeight
	publ   *recordingPublisher
}

func newFixture(t *testing.T, params ledger.Params) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemory(),
		oracle: newFakeOracle(50),
		height: &fakeHeight{h: 100},
		publ:   &recordingPublisher{},
	}
	l, err := ledger.New(zap.NewNop(), f.store, f.oracle, f.height, params, ledger.WithPublisher(f.publ))
	require.NoError(t, err)
	f.ledger = l

	_, err = f.store.Deposit(context.Background(), "alice", 1_000)
	require.NoError(t, err)
	return f
}

func testParams() ledger.Params {
	p := ledger.DefaultParams()
	p.BetFee = 10
	p.MinResolveDelay = 2
	return p
}

func TestRegisterHoldsStake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())

	b1, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	b2, err := f.ledger.Register(ctx, "alice", 61, 25)
	require.NoError(t, err)

	assert.NotEqual(t, b1.ID, b2.ID)
	assert.Equal(t, ledger.StatusPending, b1.Status)
	assert.Equal(t, uint64(100), b1.RegisteredAt)

	held, _ := f.ledger.HeldStake(ctx)
	assert.Equal(t, int64(35), held)
	bal, _ := f.ledger.Balance(ctx, "alice")
	assert.Equal(t, int64(965), bal)

	require.Len(t, f.publ.registered, 2)
	assert.Equal(t, b2.ID, f.publ.registered[1].ID)
}

func TestRegisterAssignsFutureRound(t *testing.T) {
	f := newFixture(t, testParams())

	b, err := f.ledger.Register(context.Background(), "alice", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(52), b.Round)
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())
	f.oracle.values[75] = []byte{0xaa} // publicada fora de ordem

	cases := []struct {
		name   string
		bettor string
		round  uint64
		amount int64
		want   error
	}{
		{"fee below minimum", "alice", 60, 9, ledger.ErrInsufficientFee},
		{"round already latest", "alice", 50, 10, ledger.ErrInvalidRound},
		{"round in the past", "alice", 3, 10, ledger.ErrInvalidRound},
		{"round already has randomness", "alice", 75, 10, ledger.ErrInvalidRound},
		{"unfunded bettor", "bob", 60, 10, ledger.ErrInsufficientFunds},
		{"empty bettor", "", 60, 10, ledger.ErrInvalidBettor},
		{"house cannot bet", ledger.HouseAccount, 60, 10, ledger.ErrInvalidBettor},
		{"stake above max", "alice", 60, testParams().MaxStake + 1, ledger.ErrInvalidAmount},
		{"round too far ahead", "alice", 50 + testParams().MaxRoundAhead + 1, 10, ledger.ErrInvalidRound},
		{"round far in the future", "alice", 1 << 62, 10, ledger.ErrInvalidRound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.Register(ctx, tc.bettor, tc.round, tc.amount)
			assert.ErrorIs(t, err, tc.want)

			held, _ := f.ledger.HeldStake(ctx)
			assert.Zero(t, held)
			bal, _ := f.ledger.Balance(ctx, "alice")
			assert.Equal(t, int64(1_000), bal)
			pending, _ := f.ledger.Pending(ctx, 0, 0)
			assert.Empty(t, pending)
		})
	}
	assert.Empty(t, f.publ.registered)
}

func TestResolveTooEarlyKeepsBetPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())

	b, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	f.oracle.publish(60, []byte{0x01})

	f.height.h = 101
	_, err = f.ledger.Resolve(ctx, b.ID)
	assert.ErrorIs(t, err, ledger.ErrTooEarly)

	got, err := f.ledger.Bet(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)
	held, _ := f.ledger.HeldStake(ctx)
	assert.Equal(t, int64(10), held)
}

// Aposta na rodada R na altura 100 com taxa 10; sem valor na altura 101,
// oráculo publica 0x01 e a resolução na altura 105 paga ou não conforme o resultado.
func TestResolveScenario(t *testing.T) {
	ctx := context.Background()
	params := testParams()
	params.MinResolveDelay = 1
	f := newFixture(t, params)

	b, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b.RegisteredAt)

	f.height.h = 101
	_, err = f.ledger.Resolve(ctx, b.ID)
	assert.ErrorIs(t, err, ledger.ErrRandomnessUnavailable)
	_, err = f.ledger.Bet(ctx, b.ID)
	require.NoError(t, err, "bet stays pending")

	f.oracle.publish(60, []byte{0x01})
	f.height.h = 105
	res, err := f.ledger.Resolve(ctx, b.ID)
	require.NoError(t, err)

	want := ledger.DeriveOutcome([]byte{0x01}, b.ID, params.WinOdds)
	assert.Equal(t, want, res.Outcome)
	assert.Equal(t, uint64(105), res.ResolvedAt)

	bal, _ := f.ledger.Balance(ctx, "alice")
	house, _ := f.ledger.Balance(ctx, ledger.HouseAccount)
	if res.Outcome == ledger.OutcomeWon {
		assert.Equal(t, int64(19), res.Payout) // floor(10 * 1.95)
		assert.Equal(t, int64(990+19), bal)
		assert.Equal(t, int64(-9), house)
	} else {
		assert.Zero(t, res.Payout)
		assert.Equal(t, int64(990), bal)
		assert.Equal(t, int64(10), house)
	}

	_, err = f.ledger.Bet(ctx, b.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	held, _ := f.ledger.HeldStake(ctx)
	assert.Zero(t, held)

	require.Len(t, f.publ.resolved, 1)
	assert.Equal(t, res, f.publ.resolved[0])
}

func TestResolveTwiceDoesNotDoublePay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())

	b, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	f.oracle.publish(60, []byte{0x42, 0x17})
	f.height.h = 110

	_, err = f.ledger.Resolve(ctx, b.ID)
	require.NoError(t, err)
	balAfterFirst, _ := f.ledger.Balance(ctx, "alice")
	queries := f.oracle.queries

	_, err = f.ledger.Resolve(ctx, b.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	bal, _ := f.ledger.Balance(ctx, "alice")
	assert.Equal(t, balAfterFirst, bal)
	assert.Equal(t, queries, f.oracle.queries, "no oracle query after resolution")
	assert.Len(t, f.publ.resolved, 1)
}

func TestResolveUnknownBet(t *testing.T) {
	f := newFixture(t, testParams())
	_, err := f.ledger.Resolve(context.Background(), 999)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestResolveEmptyRandomnessIsUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())

	b, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	f.oracle.publish(60, []byte{})
	f.height.h = 110

	_, err = f.ledger.Resolve(ctx, b.ID)
	assert.ErrorIs(t, err, ledger.ErrRandomnessUnavailable)
}

func TestOracleFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())

	b, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	f.height.h = 110
	f.oracle.err = errors.New("beacon down")

	_, err = f.ledger.Resolve(ctx, b.ID)
	require.Error(t, err)
	assert.Equal(t, "internal", ledger.Code(err))

	_, err = f.ledger.Register(ctx, "alice", 70, 10)
	require.Error(t, err)

	held, _ := f.ledger.HeldStake(ctx)
	assert.Equal(t, int64(10), held)
}

func TestPublishFailureDoesNotFailCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())
	f.publ.err = errors.New("kafka down")

	var publishErrs []string
	l, err := ledger.New(zap.NewNop(), f.store, f.oracle, f.height, testParams(),
		ledger.WithPublisher(f.publ),
		ledger.WithHooks(ledger.Hooks{OnPublishErr: func(e string) { publishErrs = append(publishErrs, e) }}),
	)
	require.NoError(t, err)

	_, err = l.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bet_registered"}, publishErrs)
}

// Soma de saldos + custódia só muda com depósitos.
func TestMoneyIsConserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())
	_, err := f.store.Deposit(ctx, ledger.HouseAccount, 10_000)
	require.NoError(t, err)

	total := func() int64 {
		a, _ := f.ledger.Balance(ctx, "alice")
		h, _ := f.ledger.Balance(ctx, ledger.HouseAccount)
		held, _ := f.ledger.HeldStake(ctx)
		return a + h + held
	}
	start := total()

	var ids []ledger.BetID
	for i := uint64(0); i < 20; i++ {
		b, err := f.ledger.Register(ctx, "alice", 60+i, 10+int64(i))
		require.NoError(t, err)
		ids = append(ids, b.ID)
		f.oracle.values[60+i] = []byte{byte(i), 0x99}
	}
	assert.Equal(t, start, total())

	f.height.h = 200
	for _, id := range ids {
		_, err := f.ledger.Resolve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, start, total())
	}
	held, _ := f.ledger.HeldStake(ctx)
	assert.Zero(t, held)
}

func TestConcurrentResolveSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())

	b, err := f.ledger.Register(ctx, "alice", 60, 10)
	require.NoError(t, err)
	f.oracle.publish(60, []byte{0x07})
	f.height.h = 110

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		notFound int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Resolve(ctx, b.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ledger.ErrNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, notFound)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t, testParams())
	_, err := f.ledger.Deposit(context.Background(), "alice", 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = f.ledger.Deposit(context.Background(), "", 10)
	assert.ErrorIs(t, err, ledger.ErrInvalidBettor)
}

func TestDepositAboveBalanceCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testParams())
	_, err := f.ledger.Deposit(ctx, "whale", 6_000_000_000_000_000_000)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.ledger.Deposit(ctx, "whale", ledger.MaxBalance)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, "whale", 1)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// A maior aposta permitida, quando ganha, credita um prêmio positivo.
func TestMaxStakeWinPaysPositive(t *testing.T) {
	ctx := context.Background()
	params := testParams()
	f := newFixture(t, params)
	_, err := f.ledger.Deposit(ctx, "whale", params.MaxStake)
	require.NoError(t, err)

	b, err := f.ledger.Register(ctx, "whale", 60, params.MaxStake)
	require.NoError(t, err)

	var randomness []byte
	for i := 0; i < 256; i++ {
		randomness = []byte{byte(i)}
		if ledger.DeriveOutcome(randomness, b.ID, params.WinOdds) == ledger.OutcomeWon {
			break
		}
	}
	f.oracle.publish(60, randomness)
	f.height.h = 110

	res, err := f.ledger.Resolve(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeWon, res.Outcome)
	assert.Equal(t, int64(195_000_000), res.Payout)

	bal, _ := f.ledger.Balance(ctx, "whale")
	assert.Equal(t, int64(195_000_000), bal)
	house, _ := f.ledger.Balance(ctx, ledger.HouseAccount)
	assert.Equal(t, int64(-95_000_000), house)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	p := testParams()
	p.WinOdds = 1
	_, err := ledger.New(zap.NewNop(), store.NewMemory(), newFakeOracle(0), &fakeHeight{}, p)
	assert.Error(t, err)
}
