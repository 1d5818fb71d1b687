package httpapi

import (
	"time"

	"github.com/radieske/oracle-casino/internal/ledger"
)

type RegisterBetRequest struct {
	Bettor string `json:"bettor"`
	Round  uint64 `json:"round"` // 0 = próxima rodada disponível
	Amount int64  `json:"amount"`
}

type BetResponse struct {
	BetID        uint64    `json:"betId"`
	Bettor       string    `json:"bettor"`
	Amount       int64     `json:"amount"`
	Round        uint64    `json:"round"`
	RegisteredAt uint64    `json:"registeredAt"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

func betResponse(b ledger.Bet) BetResponse {
	return BetResponse{
		BetID:        uint64(b.ID),
		Bettor:       b.Bettor,
		Amount:       b.Amount,
		Round:        b.Round,
		RegisteredAt: b.RegisteredAt,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
	}
}

type ResolutionResponse struct {
	BetID      uint64 `json:"betId"`
	Bettor     string `json:"bettor"`
	Round      uint64 `json:"round"`
	Amount     int64  `json:"amount"`
	Outcome    string `json:"outcome"`
	Payout     int64  `json:"payout"`
	ResolvedAt uint64 `json:"resolvedAt"`
}

func resolutionResponse(r ledger.Resolution) ResolutionResponse {
	return ResolutionResponse{
		BetID:      uint64(r.BetID),
		Bettor:     r.Bettor,
		Round:      r.Round,
		Amount:     r.Amount,
		Outcome:    string(r.Outcome),
		Payout:     r.Payout,
		ResolvedAt: r.ResolvedAt,
	}
}

type RandomResponse struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"` // hex
}

type DepositRequest struct {
	Amount int64 `json:"amount"`
}

type AccountResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type LedgerResponse struct {
	HeldStake int64          `json:"heldStake"`
	Params    ParamsSnapshot `json:"params"`
}

type ParamsSnapshot struct {
	BetFee           int64  `json:"betFee"`
	PayoutMultiplier string `json:"payoutMultiplier"`
	WinOdds          uint64 `json:"winOdds"`
	MinResolveDelay  uint64 `json:"minResolveDelay"`
	MaxStake         int64  `json:"maxStake"`
	MaxRoundAhead    uint64 `json:"maxRoundAhead"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
