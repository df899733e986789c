// Package metrics exposes Prometheus instrumentation for the bet lifecycle
// and the /metrics + /healthz sidecar server.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// Metrics holds the service collectors. It doubles as an event sink so the
// counters track exactly what the engine emits.
type Metrics struct {
	BetsPlaced     prometheus.Counter
	BetsSettled    *prometheus.CounterVec
	StakedTotal    prometheus.Counter
	PaidTotal      prometheus.Counter
	ActiveRequests prometheus.Gauge
}

// New registers the collectors on reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_bets_placed_total",
			Help: "Accepted bet placements.",
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinflip_bets_settled_total",
			Help: "Settled bets by result.",
		}, []string{"result"}),
		StakedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_staked_amount_total",
			Help: "Cumulative staked amount in the token's smallest denomination.",
		}),
		PaidTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinflip_paid_amount_total",
			Help: "Cumulative paid-out amount in the token's smallest denomination.",
		}),
		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinflip_pending_randomness_requests",
			Help: "Randomness requests awaiting fulfillment.",
		}),
	}

	reg.MustRegister(m.BetsPlaced, m.BetsSettled, m.StakedTotal, m.PaidTotal, m.ActiveRequests)
	return m
}

// Emit updates the counters from an engine event.
func (m *Metrics) Emit(_ context.Context, e domain.Event) error {
	switch e.Name {
	case domain.EventBetStarted:
		m.BetsPlaced.Inc()
		m.StakedTotal.Add(float64(e.Stake))
		m.ActiveRequests.Inc()
	case domain.EventBetFinished:
		won := e.Won != nil && *e.Won
		paid := e.Paid != nil && *e.Paid
		result := "lost"
		switch {
		case won && paid:
			result = "won"
			m.PaidTotal.Add(float64(e.Payout))
		case won:
			// Payout transfer failed after the wager cleared; the win is
			// settled but the reserve still owes it.
			result = "won_unpaid"
		}
		m.BetsSettled.WithLabelValues(result).Inc()
		m.ActiveRequests.Dec()
	}
	return nil
}
