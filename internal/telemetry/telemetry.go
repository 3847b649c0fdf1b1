// Package telemetry exposes the engine's internal gauges and counters
// through a prometheus registry: active-list depth, consensus token
// throughput, P2P table occupancy, and per-algorithm selection counts.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Registry is the set of metrics wired into C3/C5/C6/C7. A nil *Registry is
// not valid; use NewNoop() for a registry that records nothing but is safe
// to call into.
type Registry struct {
	ActiveListDepth      prometheus.Gauge
	ConsensusTokensTotal prometheus.Counter
	P2POccupancy         prometheus.Gauge
	AlgorithmSelected    *prometheus.CounterVec
}

// New builds a Registry and registers its collectors with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ActiveListDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gcoll",
			Subsystem: "engine",
			Name:      "active_list_depth",
			Help:      "Number of collective op records currently linked in the active list.",
		}),
		ConsensusTokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gcoll",
			Subsystem: "consensus",
			Name:      "tokens_total",
			Help:      "Total number of consensus tokens created.",
		}),
		P2POccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gcoll",
			Subsystem: "p2p",
			Name:      "table_occupancy",
			Help:      "Number of records currently resident in the P2P table.",
		}),
		AlgorithmSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcoll",
			Subsystem: "dispatch",
			Name:      "algorithm_selected_total",
			Help:      "Number of times each (collective, algorithm) pair was selected.",
		}, []string{"collective", "algorithm"}),
	}
	reg.MustRegister(r.ActiveListDepth, r.ConsensusTokensTotal, r.P2POccupancy, r.AlgorithmSelected)
	return r
}

// NewNoop builds a Registry backed by its own private prometheus registry,
// so it can be safely used (and its collectors incremented) without
// colliding with - or requiring - a caller-supplied default registry.
func NewNoop() *Registry {
	return New(prometheus.NewRegistry())
}
