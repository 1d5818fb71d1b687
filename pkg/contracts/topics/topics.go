package topics

const (
	// Bets
	BetRegistered = "bet_registered"
	BetResolved   = "bet_resolved"

	// DLQs
	BetResolvedDLQ = "bet_resolved_dlq"
)
