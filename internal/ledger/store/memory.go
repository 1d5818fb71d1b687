package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// Memory implementa ledger.Store em memória. Um único mutex serializa as operações.
type Memory struct {
	mu       sync.Mutex
	nextID   ledger.BetID
	bets     map[ledger.BetID]ledger.Bet
	balances map[string]int64
	held     int64
}

func NewMemory() *Memory {
	return &Memory{
		bets:     make(map[ledger.BetID]ledger.Bet),
		balances: make(map[string]int64),
	}
}

var _ ledger.Store = (*Memory)(nil)

func (m *Memory) Insert(_ context.Context, b *ledger.Bet) (ledger.BetID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[b.Bettor] < b.Amount {
		return 0, ledger.ErrInsufficientFunds
	}
	m.balances[b.Bettor] -= b.Amount
	m.held += b.Amount

	m.nextID++
	bet := *b
	bet.ID = m.nextID
	bet.Status = ledger.StatusPending
	m.bets[bet.ID] = bet
	return bet.ID, nil
}

func (m *Memory) Get(_ context.Context, id ledger.BetID) (*ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &b, nil
}

func (m *Memory) Settle(_ context.Context, id ledger.BetID, payout int64) (*ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	if payout > 0 && m.balances[b.Bettor] > math.MaxInt64-payout {
		return nil, fmt.Errorf("%w: credit would overflow %q", ledger.ErrInvalidAmount, b.Bettor)
	}
	delete(m.bets, id)
	m.held -= b.Amount
	m.balances[b.Bettor] += payout
	m.balances[ledger.HouseAccount] += b.Amount - payout

	b.Status = ledger.StatusResolved
	return &b, nil
}

func (m *Memory) Pending(_ context.Context, after ledger.BetID, limit int) ([]ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ledger.Bet, 0, len(m.bets))
	for _, b := range m.bets {
		if b.ID > after {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) HeldStake(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held, nil
}

func (m *Memory) Balance(_ context.Context, account string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

func (m *Memory) Deposit(_ context.Context, account string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[account] > ledger.MaxBalance-amount {
		return 0, fmt.Errorf("%w: balance of %q would exceed %d", ledger.ErrInvalidAmount, account, ledger.MaxBalance)
	}
	m.balances[account] += amount
	return m.balances[account], nil
}
