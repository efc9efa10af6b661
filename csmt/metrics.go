package csmt

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation for a Tree. A nil *Metrics is
// a valid, no-op instrumentation point: the core algorithmic package never
// forces a registry on a caller who doesn't want one.
type Metrics struct {
	updates      prometheus.Counter
	gets         prometheus.Counter
	proofLeaves  prometheus.Counter
	proofPathLen prometheus.Histogram
}

// NewMetrics creates and registers a Metrics set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csmt_tree_updates_total",
			Help: "Total number of Tree.Update calls.",
		}),
		gets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csmt_tree_gets_total",
			Help: "Total number of Tree.Get calls.",
		}),
		proofLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csmt_proof_leaves_total",
			Help: "Total number of leaves covered by constructed proofs.",
		}),
		proofPathLen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "csmt_proof_path_siblings",
			Help:    "Number of explicit sibling digests in a constructed proof.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
	}
	reg.MustRegister(m.updates, m.gets, m.proofLeaves, m.proofPathLen)
	return m
}

func (m *Metrics) observeUpdate() {
	if m == nil {
		return
	}
	m.updates.Inc()
}

func (m *Metrics) observeGet() {
	if m == nil {
		return
	}
	m.gets.Inc()
}

func (m *Metrics) observeProof(leaves, pathLen int) {
	if m == nil {
		return
	}
	m.proofLeaves.Add(float64(leaves))
	m.proofPathLen.Observe(float64(pathLen))
}
