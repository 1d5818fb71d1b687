package ledger

import "time"

// BetID identifica uma aposta no ledger. Gerado pelo Store no registro.
type BetID uint64

// HouseAccount é a conta da casa: recebe as apostas perdidas e financia os prêmios.
const HouseAccount = "house"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusResolved Status = "RESOLVED"
)

type Outcome string

const (
	OutcomeWon  Outcome = "WON"
	OutcomeLost Outcome = "LOST"
)

// Bet representa uma aposta aguardando resolução.
// Round aponta para uma rodada do oráculo que ainda não tinha aleatoriedade
// publicada no momento do registro; RegisteredAt é a altura de bloco do registro.
type Bet struct {
	ID           BetID
	Bettor       string
	Amount       int64 // centavos
	Round        uint64
	RegisteredAt uint64
	Status       Status
	CreatedAt    time.Time
}

// Resolution é o resultado de uma chamada bem sucedida de Resolve.
type Resolution struct {
	BetID      BetID
	Bettor     string
	Round      uint64
	Amount     int64
	Outcome    Outcome
	Payout     int64
	ResolvedAt uint64 // altura de bloco da resolução
}
