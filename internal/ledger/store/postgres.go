package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/radieske/oracle-casino/internal/ledger"
)

//go:embed schema.sql
var schema string

// Postgres implementa ledger.Store em banco Postgres.
// Cada operação roda numa transação; qualquer erro faz rollback completo.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var _ ledger.Store = (*Postgres)(nil)

// Migrate cria as tabelas se ainda não existirem.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Insert debita a aposta do saldo e cria a linha PENDING.
// Lock pessimista na conta do apostador.
func (p *Postgres) Insert(ctx context.Context, b *ledger.Bet) (ledger.BetID, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id=$1 FOR UPDATE`, b.Bettor).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("lock account: %w", err)
	}
	if balance < b.Amount {
		return 0, ledger.ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents - $1, version = version + 1, updated_at = NOW() WHERE id=$2`,
		b.Amount, b.Bettor); err != nil {
		return 0, fmt.Errorf("debit account: %w", err)
	}

	var id int64
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO bets (bettor, amount_cents, round_key, registered_at, status, created_at)
		VALUES ($1,$2,$3,$4,'PENDING',$5)
		RETURNING id`,
		b.Bettor, b.Amount, int64(b.Round), int64(b.RegisteredAt), b.CreatedAt,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert bet: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return ledger.BetID(id), nil
}

func (p *Postgres) Get(ctx context.Context, id ledger.BetID) (*ledger.Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, bettor, amount_cents, round_key, registered_at, status, created_at
		FROM bets WHERE id=$1 AND status='PENDING'`, int64(id))
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Settle apaga a aposta e distribui o valor entre apostador e casa.
// O DELETE ... RETURNING garante que só uma resolução concorrente vence.
func (p *Postgres) Settle(ctx context.Context, id ledger.BetID, payout int64) (*ledger.Bet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := scanBet(tx.QueryRowContext(ctx, `
		DELETE FROM bets WHERE id=$1 AND status='PENDING'
		RETURNING id, bettor, amount_cents, round_key, registered_at, status, created_at`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete bet: %w", err)
	}

	if payout > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + $1, version = version + 1, updated_at = NOW() WHERE id=$2`,
			payout, b.Bettor); err != nil {
			return nil, fmt.Errorf("credit payout: %w", err)
		}
	}

	// a casa fica com a aposta perdida e banca o excedente do prêmio
	if _, err = tx.ExecContext(ctx, upsertBalance, ledger.HouseAccount, b.Amount-payout); err != nil {
		return nil, fmt.Errorf("credit house: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	b.Status = ledger.StatusResolved
	return b, nil
}

func (p *Postgres) Pending(ctx context.Context, after ledger.BetID, limit int) ([]ledger.Bet, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, bettor, amount_cents, round_key, registered_at, status, created_at
		FROM bets WHERE status='PENDING' AND id > $1
		ORDER BY id
		LIMIT $2`, int64(after), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (p *Postgres) HeldStake(ctx context.Context) (int64, error) {
	var held int64
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents),0) FROM bets WHERE status='PENDING'`).Scan(&held)
	return held, err
}

func (p *Postgres) Balance(ctx context.Context, account string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id=$1`, account).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, err
}

// Deposit cria a conta se necessário e soma o valor ao saldo.
// O WHERE do upsert recusa depósitos que passariam de ledger.MaxBalance.
func (p *Postgres) Deposit(ctx context.Context, account string, amount int64) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, upsertBalance+`
		WHERE accounts.balance_cents <= $3
		RETURNING balance_cents`, account, amount, ledger.MaxBalance-amount).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: balance of %q would exceed %d", ledger.ErrInvalidAmount, account, ledger.MaxBalance)
	}
	return bal, err
}

const upsertBalance = `
	INSERT INTO accounts (id, balance_cents) VALUES ($1,$2)
	ON CONFLICT (id) DO UPDATE SET
	  balance_cents = accounts.balance_cents + EXCLUDED.balance_cents,
	  version       = accounts.version + 1,
	  updated_at    = NOW()`

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (*ledger.Bet, error) {
	var (
		b                ledger.Bet
		id, round, regAt int64
		status           string
	)
	if err := s.Scan(&id, &b.Bettor, &b.Amount, &round, &regAt, &status, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = ledger.BetID(id)
	b.Round = uint64(round)
	b.RegisteredAt = uint64(regAt)
	b.Status = ledger.Status(status)
	return &b, nil
}
