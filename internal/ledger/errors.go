package ledger

import "errors"

var (
	ErrInsufficientFee       = errors.New("insufficient fee")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidRound          = errors.New("invalid round")
	ErrInvalidBettor         = errors.New("invalid bettor")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNotFound              = errors.New("bet not found")
	ErrRandomnessUnavailable = errors.New("randomness unavailable")
	ErrTooEarly              = errors.New("bet resolution too early")
)

// Code devolve um identificador estável para o erro, usado em métricas e respostas HTTP.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFee):
		return "insufficient_fee"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidRound):
		return "invalid_round"
	case errors.Is(err, ErrInvalidBettor):
		return "invalid_bettor"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRandomnessUnavailable):
		return "randomness_unavailable"
	case errors.Is(err, ErrTooEarly):
		return "too_early"
	default:
		return "internal"
	}
}
