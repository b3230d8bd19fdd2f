// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine collectors. Construct one per process with an
// injectable registry so tests can use isolated instances.
type Metrics struct {
	ActiveMatches      prometheus.Gauge
	MatchesStarted     prometheus.Counter
	MatchesCompleted   *prometheus.CounterVec
	TicksTotal         prometheus.Counter
	SnapshotsBroadcast prometheus.Counter
	InputsDropped      *prometheus.CounterVec
}

// New registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveMatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pongduel_active_matches",
			Help: "Number of matches with a live simulation loop.",
		}),
		MatchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pongduel_matches_started_total",
			Help: "Matches that reached the playing state.",
		}),
		MatchesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pongduel_matches_completed_total",
			Help: "Matches that reached a terminal state, by reason.",
		}, []string{"reason"}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pongduel_simulation_ticks_total",
			Help: "Simulation ticks advanced across all matches.",
		}),
		SnapshotsBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "pongduel_snapshots_broadcast_total",
			Help: "State snapshots fanned out to participants.",
		}),
		InputsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pongduel_inputs_dropped_total",
			Help: "Client inputs rejected before reaching the simulation, by reason.",
		}, []string{"reason"}),
	}
}
