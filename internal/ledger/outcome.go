package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxBalance é o teto de saldo aceito em depósitos.
// A folga até MaxInt64 precisa comportar o maior prêmio possível.
const MaxBalance int64 = 1 << 62

// Params reúne as regras do jogo.
type Params struct {
	BetFee           int64           // aposta mínima em centavos
	PayoutMultiplier decimal.Decimal // ex: 1.95 => prêmio = aposta * 1.95
	WinOdds          uint64          // 1 chance em WinOdds de ganhar
	MinResolveDelay  uint64          // blocos entre registro e resolução
	RoundOffset      uint64          // rodadas à frente da última publicada quando o cliente não escolhe
	MaxStake         int64           // maior aposta aceita em centavos
	MaxRoundAhead    uint64          // distância máxima entre a rodada escolhida e a última publicada
}

func DefaultParams() Params {
	return Params{
		BetFee:           100,
		PayoutMultiplier: decimal.RequireFromString("1.95"),
		WinOdds:          2,
		MinResolveDelay:  2,
		RoundOffset:      2,
		MaxStake:         100_000_000,
		MaxRoundAhead:    10_000,
	}
}

func (p Params) Validate() error {
	if p.BetFee <= 0 {
		return errors.New("bet fee must be positive")
	}
	if p.WinOdds < 2 {
		return errors.New("win odds must be at least 2")
	}
	if !p.PayoutMultiplier.IsPositive() {
		return errors.New("payout multiplier must be positive")
	}
	if p.RoundOffset == 0 {
		return errors.New("round offset must be at least 1")
	}
	if p.MaxStake < p.BetFee {
		return errors.New("max stake must not be below bet fee")
	}
	if p.MaxRoundAhead < p.RoundOffset {
		return errors.New("max round ahead must not be below round offset")
	}
	top, err := p.Payout(p.MaxStake)
	if err != nil || top > math.MaxInt64-MaxBalance {
		return fmt.Errorf("payout for max stake %d does not fit a balance", p.MaxStake)
	}
	return nil
}

// DeriveOutcome mapeia a aleatoriedade da rodada em vitória ou derrota.
// Os 8 primeiros bytes de sha256(randomness || betID) são lidos como inteiro
// big-endian; vitória quando o resto da divisão por winOdds é zero.
// O id da aposta entra no hash para que apostas da mesma rodada sejam independentes.
func DeriveOutcome(randomness []byte, id BetID, winOdds uint64) Outcome {
	var idb [8]byte
	binary.BigEndian.PutUint64(idb[:], uint64(id))

	h := sha256.New()
	h.Write(randomness)
	h.Write(idb[:])
	sum := h.Sum(nil)

	if binary.BigEndian.Uint64(sum[:8])%winOdds == 0 {
		return OutcomeWon
	}
	return OutcomeLost
}

// Payout calcula o prêmio de uma aposta vencedora, arredondado para baixo.
// Valores que não cabem em int64 viram ErrInvalidAmount.
func (p Params) Payout(amount int64) (int64, error) {
	v := decimal.NewFromInt(amount).Mul(p.PayoutMultiplier).Floor()
	if v.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || v.IsNegative() {
		return 0, fmt.Errorf("%w: payout for %d out of range", ErrInvalidAmount, amount)
	}
	return v.IntPart(), nil
}
