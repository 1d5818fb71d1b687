package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/oracle-casino/internal/history"
	"github.com/radieske/oracle-casino/internal/ledger"
)

// Ledger é o que a API usa do ledger.
type Ledger interface {
	Register(ctx context.Context, bettor string, round uint64, amount int64) (ledger.Bet, error)
	Resolve(ctx context.Context, id ledger.BetID) (ledger.Resolution, error)
	Bet(ctx context.Context, id ledger.BetID) (*ledger.Bet, error)
	Random(ctx context.Context, round uint64) ([]byte, bool, error)
	Deposit(ctx context.Context, account string, amount int64) (int64, error)
	Balance(ctx context.Context, account string) (int64, error)
	HeldStake(ctx context.Context) (int64, error)
	Params() ledger.Params
}

// HistoryReader lista apostas já resolvidas; opcional (só existe com Postgres).
type HistoryReader interface {
	ByBettor(ctx context.Context, bettor string, limit int) ([]history.Entry, error)
}

// API expõe o ledger em REST e, se houver hub, o stream WebSocket.
type API struct {
	Log     *zap.Logger
	Ledger  Ledger
	History HistoryReader    // opcional
	WS      http.HandlerFunc // opcional
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/bets", a.registerBet)                // trava a aposta
	r.Get("/v1/bets/{id}", a.getBet)                 // aposta pendente
	r.Post("/v1/bets/{id}/resolve", a.resolveBet)    // qualquer um pode resolver
	r.Get("/v1/random/{round}", a.getRandom)         // consulta ao oráculo
	r.Post("/v1/accounts/{id}/deposit", a.deposit)   // credita saldo
	r.Get("/v1/accounts/{id}", a.getAccount)         // saldo
	r.Get("/v1/accounts/{id}/history", a.getHistory) // apostas resolvidas
	r.Get("/v1/ledger", a.getLedger)                 // valor em custódia
	if a.WS != nil {
		r.Get("/v1/ws", a.WS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// writeError traduz os erros do ledger para status HTTP.
func (a *API) writeError(w http.ResponseWriter, err error) {
	code := ledger.Code(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInsufficientFee), errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInvalidRound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidBettor), errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrTooEarly), errors.Is(err, ledger.ErrRandomnessUnavailable):
		status = http.StatusConflict
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func betIDParam(r *http.Request) (ledger.BetID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return ledger.BetID(n), true
}

func (a *API) registerBet(w http.ResponseWriter, r *http.Request) {
	var req RegisterBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "bad json")
		return
	}
	b, err := a.Ledger.Register(r.Context(), req.Bettor, req.Round, req.Amount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, betResponse(b))
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(r)
	if !ok {
		writeBadRequest(w, "invalid bet id")
		return
	}
	b, err := a.Ledger.Bet(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, betResponse(*b))
}

func (a *API) resolveBet(w http.ResponseWriter, r *http.Request) {
	id, ok := betIDParam(r)
	if !ok {
		writeBadRequest(w, "invalid bet id")
		return
	}
	res, err := a.Ledger.Resolve(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionResponse(res))
}

func (a *API) getRandom(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.ParseUint(chi.URLParam(r, "round"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid round")
		return
	}
	v, found, err := a.Ledger.Random(r.Context(), round)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "round not published", Code: ledger.Code(ledger.ErrRandomnessUnavailable)})
		return
	}
	writeJSON(w, http.StatusOK, RandomResponse{Round: round, Randomness: hex.EncodeToString(v)})
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "bad json")
		return
	}
	account := chi.URLParam(r, "id")
	bal, err := a.Ledger.Deposit(r.Context(), account, req.Amount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Account: account, Balance: bal})
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "id")
	bal, err := a.Ledger.Balance(r.Context(), account)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Account: account, Balance: bal})
}

func (a *API) getHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "history not available", Code: "unavailable"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.History.ByBettor(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) getLedger(w http.ResponseWriter, r *http.Request) {
	held, err := a.Ledger.HeldStake(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	p := a.Ledger.Params()
	writeJSON(w, http.StatusOK, LedgerResponse{
		HeldStake: held,
		Params: ParamsSnapshot{
			BetFee:           p.BetFee,
			PayoutMultiplier: p.PayoutMultiplier.String(),
			WinOdds:          p.WinOdds,
			MinResolveDelay:  p.MinResolveDelay,
			MaxStake:         p.MaxStake,
			MaxRoundAhead:    p.MaxRoundAhead,
		},
	})
}
