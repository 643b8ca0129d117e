// Package metrics exposes ledger activity as prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the ledger counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	operations    *prometheus.CounterVec
	gramsConsumed *prometheus.CounterVec
	gramsRestored *prometheus.CounterVec
}

// New creates the counters and registers them with reg. When reg is nil the
// counters are created but not registered.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scentledger",
			Name:      "operations_total",
			Help:      "Ledger and registry operations by name and result.",
		}, []string{"op", "result"}),
		gramsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scentledger",
			Name:      "grams_consumed_total",
			Help:      "Grams taken from inventory, by target type.",
		}, []string{"target"}),
		gramsRestored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scentledger",
			Name:      "grams_restored_total",
			Help:      "Grams credited back to inventory, by target type.",
		}, []string{"target"}),
	}
	if reg != nil {
		reg.MustRegister(r.operations, r.gramsConsumed, r.gramsRestored)
	}
	return r
}

// Observe counts one run of op, labelled ok or error.
func (r *Recorder) Observe(op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.operations.WithLabelValues(op, result).Inc()
}

// Consumed adds grams taken for target.
func (r *Recorder) Consumed(target string, grams float64) {
	if r == nil || grams <= 0 {
		return
	}
	r.gramsConsumed.WithLabelValues(target).Add(grams)
}

// Restored adds grams credited back for target.
func (r *Recorder) Restored(target string, grams float64) {
	if r == nil || grams <= 0 {
		return
	}
	r.gramsRestored.WithLabelValues(target).Add(grams)
}
