package events

// Evento publicado no tópico "bet_registered" quando uma aposta é travada.
type BetRegistered struct {
	EventID      string `json:"event_id"`
	BetID        uint64 `json:"bet_id"`
	Bettor       string `json:"bettor"`
	Round        uint64 `json:"round"`
	AmountCents  int64  `json:"amount_cents"`
	RegisteredAt uint64 `json:"registered_at"` // altura de bloco
	TsUnixMs     int64  `json:"ts_unix_ms"`
}
