package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/oracle-casino/internal/ledger"
)

// Ledger agrupa as métricas do ledger de apostas.
type Ledger struct {
	Registered   prometheus.Counter
	Resolved     *prometheus.CounterVec // por outcome
	Rejected     *prometheus.CounterVec // por operação e motivo
	PayoutCents  prometheus.Counter
	StakeCents   prometheus.Counter
	PublishFails *prometheus.CounterVec
}

func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		Registered:   prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_bets_registered_total", Help: "apostas registradas"}),
		Resolved:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_bets_resolved_total", Help: "apostas resolvidas por resultado"}, []string{"outcome"}),
		Rejected:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_calls_rejected_total", Help: "chamadas rejeitadas por operação e motivo"}, []string{"op", "reason"}),
		PayoutCents:  prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_payout_cents_total", Help: "prêmios pagos"}),
		StakeCents:   prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_stake_cents_total", Help: "valor apostado"}),
		PublishFails: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_publish_errors_total", Help: "falhas ao publicar eventos"}, []string{"event"}),
	}
	reg.MustRegister(m.Registered, m.Resolved, m.Rejected, m.PayoutCents, m.StakeCents, m.PublishFails)
	return m
}

// Hooks conecta as métricas aos callbacks do ledger.
func (m *Ledger) Hooks() ledger.Hooks {
	return ledger.Hooks{
		OnRegistered: func(b ledger.Bet) {
			m.Registered.Inc()
			m.StakeCents.Add(float64(b.Amount))
		},
		OnResolved: func(r ledger.Resolution) {
			m.Resolved.WithLabelValues(string(r.Outcome)).Inc()
			m.PayoutCents.Add(float64(r.Payout))
		},
		OnRejected: func(op string, err error) {
			m.Rejected.WithLabelValues(op, ledger.Code(err)).Inc()
		},
		OnPublishErr: func(event string) { m.PublishFails.WithLabelValues(event).Inc() },
	}
}

// HeldStakeGauge expõe o valor em custódia consultando o ledger a cada scrape.
func HeldStakeGauge(reg prometheus.Registerer, held func() (int64, error)) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ledger_held_stake_cents",
		Help: "soma das apostas pendentes",
	}, func() float64 {
		v, err := held()
		if err != nil {
			return -1
		}
		return float64(v)
	}))
}
