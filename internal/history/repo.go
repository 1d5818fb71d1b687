package history

import (
	"context"
	"database/sql"

	ev "github.com/radieske/oracle-casino/pkg/contracts/events"
)

// Entry é uma linha de bet_history.
type Entry struct {
	BetID       uint64 `json:"bet_id"`
	Bettor      string `json:"bettor"`
	Round       uint64 `json:"round"`
	AmountCents int64  `json:"amount_cents"`
	Outcome     string `json:"outcome"`
	PayoutCents int64  `json:"payout_cents"`
	ResolvedAt  uint64 `json:"resolved_at"`
}

// PostgresRepo persiste apostas resolvidas na tabela bet_history.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// Insert grava o evento uma única vez por aposta. Reentregas do Kafka
// caem no ON CONFLICT e devolvem inserted=false.
func (r *PostgresRepo) Insert(ctx context.Context, e ev.BetResolved) (bool, error) {
	const q = `
		INSERT INTO bet_history
		  (bet_id, bettor, round_key, amount_cents, outcome, payout_cents, resolved_at, event_id, created_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		ON CONFLICT (bet_id) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, q,
		int64(e.BetID), e.Bettor, int64(e.Round), e.AmountCents,
		e.Outcome, e.PayoutCents, int64(e.ResolvedAt), e.EventID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ByBettor lista as últimas apostas resolvidas de um apostador, mais recentes primeiro.
func (r *PostgresRepo) ByBettor(ctx context.Context, bettor string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT bet_id, bettor, round_key, amount_cents, outcome, payout_cents, resolved_at
		FROM bet_history
		WHERE bettor=$1
		ORDER BY bet_id DESC
		LIMIT $2`, bettor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e                     Entry
			id, round, resolvedAt int64
		)
		if err := rows.Scan(&id, &e.Bettor, &round, &e.AmountCents, &e.Outcome, &e.PayoutCents, &resolvedAt); err != nil {
			return nil, err
		}
		e.BetID, e.Round, e.ResolvedAt = uint64(id), uint64(round), uint64(resolvedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
