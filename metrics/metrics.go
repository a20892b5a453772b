// Package metrics holds the Prometheus collectors for the game engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	submissions  prometheus.Counter
	ballots      prometheus.Counter
	purchases    *prometheus.CounterVec
	duels        prometheus.Counter
	roundsClosed *prometheus.CounterVec
	coinsAwarded prometheus.Counter
	eliminations prometheus.Counter
}

// New registers the game collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "submissions_total",
			Help:      "Phrases accepted.",
		}),
		ballots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "ballots_total",
			Help:      "Judge ballots cast or replaced.",
		}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "purchases_total",
			Help:      "Shop purchases by item.",
		}, []string{"item"}),
		duels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "duels_resolved_total",
			Help:      "Tiger Roulette duels resolved.",
		}),
		roundsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "rounds_closed_total",
			Help:      "Rounds closed by trigger.",
		}, []string{"trigger"}),
		coinsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "coins_awarded_total",
			Help:      "Coins credited as round rewards.",
		}),
		eliminations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phrase_game",
			Name:      "eliminations_total",
			Help:      "Players eliminated.",
		}),
	}
	reg.MustRegister(m.submissions, m.ballots, m.purchases, m.duels, m.roundsClosed, m.coinsAwarded, m.eliminations)
	return m
}

func (m *Metrics) SubmissionAccepted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) BallotCast() {
	if m == nil {
		return
	}
	m.ballots.Inc()
}

func (m *Metrics) Purchased(item string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(item).Inc()
}

func (m *Metrics) DuelResolved() {
	if m == nil {
		return
	}
	m.duels.Inc()
}

// RoundClosed records one close with the coins it paid out.
func (m *Metrics) RoundClosed(trigger string, coins int64) {
	if m == nil {
		return
	}
	m.roundsClosed.WithLabelValues(trigger).Inc()
	if coins > 0 {
		m.coinsAwarded.Add(float64(coins))
	}
	m.eliminations.Inc()
}
