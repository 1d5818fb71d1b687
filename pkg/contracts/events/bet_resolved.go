package events

import "time"

// Evento publicado no tópico "bet_resolved" após a resolução de uma aposta.
type BetResolved struct {
	EventID     string    `json:"event_id"`
	BetID       uint64    `json:"bet_id"`
	Bettor      string    `json:"bettor"`
	Round       uint64    `json:"round"`
	AmountCents int64     `json:"amount_cents"`
	Outcome     string    `json:"outcome"` // "WON" | "LOST"
	PayoutCents int64     `json:"payout_cents"`
	ResolvedAt  uint64    `json:"resolved_at"` // altura de bloco
	Ts          time.Time `json:"ts"`
}
