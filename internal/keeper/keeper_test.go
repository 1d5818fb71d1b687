package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/ledger"
)

type fakeResolver struct {
	pending    []ledger.Bet
	pendingErr error
	results    map[ledger.BetID]error
	resolved   []ledger.BetID
}

func (f *fakeResolver) Pending(_ context.Context, after ledger.BetID, limit int) ([]ledger.Bet, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []ledger.Bet
	for _, b := range f.pending {
		if b.ID > after {
			out = append(out, b)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeResolver) Resolve(_ context.Context, id ledger.BetID) (ledger.Resolution, error) {
	if err := f.results[id]; err != nil {
		return ledger.Resolution{}, err
	}
	f.resolved = append(f.resolved, id)
	for i, b := range f.pending {
		if b.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return ledger.Resolution{BetID: id, Outcome: ledger.OutcomeLost}, nil
}

func TestRunOnceClassifiesResults(t *testing.T) {
	r := &fakeResolver{
		pending: []ledger.Bet{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}},
		results: map[ledger.BetID]error{
			2: ledger.ErrTooEarly,
			3: ledger.ErrRandomnessUnavailable,
			4: errors.New("db down"),
			5: ledger.ErrNotFound,
		},
	}
	var skipped []string
	var resolved, failed int
	k := &Keeper{
		Log:        zap.NewNop(),
		Ledger:     r,
		OnResolved: func(ledger.Resolution) { resolved++ },
		OnSkipped:  func(reason string) { skipped = append(skipped, reason) },
		OnError:    func() { failed++ },
	}

	st, err := k.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Scanned: 5, Resolved: 1, Skipped: 3, Failed: 1}, st)
	assert.Equal(t, []ledger.BetID{1}, r.resolved)
	assert.Equal(t, []string{"too_early", "randomness_unavailable", "not_found"}, skipped)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 1, failed)
}

func TestRunOnceHonoursBatch(t *testing.T) {
	r := &fakeResolver{pending: []ledger.Bet{{ID: 1}, {ID: 2}, {ID: 3}}}
	k := &Keeper{Log: zap.NewNop(), Ledger: r, Batch: 2}

	st, err := k.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Scanned)
	assert.Equal(t, []ledger.BetID{1, 2}, r.resolved)
}

// Apostas que nunca ficam prontas não podem esconder as que estão atrás delas.
func TestRunOnceRotatesPastStuckBets(t *testing.T) {
	r := &fakeResolver{
		pending: []ledger.Bet{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}},
		results: map[ledger.BetID]error{
			1: ledger.ErrRandomnessUnavailable,
			2: ledger.ErrRandomnessUnavailable,
			3: ledger.ErrRandomnessUnavailable,
		},
	}
	k := &Keeper{Log: zap.NewNop(), Ledger: r, Batch: 3}
	ctx := context.Background()

	st, err := k.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Scanned: 3, Skipped: 3}, st)

	st, err = k.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Scanned: 1, Resolved: 1}, st)
	assert.Equal(t, []ledger.BetID{4}, r.resolved)

	// fim da lista: volta para o começo
	st, err = k.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Scanned)
	assert.Equal(t, 3, st.Skipped)
}

func TestRunOncePendingError(t *testing.T) {
	r := &fakeResolver{pendingErr: errors.New("timeout")}
	k := &Keeper{Log: zap.NewNop(), Ledger: r}

	_, err := k.RunOnce(context.Background())
	assert.ErrorContains(t, err, "timeout")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	k := &Keeper{Log: zap.NewNop(), Ledger: &fakeResolver{}}
	err := k.Start(context.Background(), "not a schedule")
	assert.Error(t, err)
}

func TestStartReturnsOnCancel(t *testing.T) {
	k := &Keeper{Log: zap.NewNop(), Ledger: &fakeResolver{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Start(ctx, "@every 1h") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("keeper did not stop")
	}
}
