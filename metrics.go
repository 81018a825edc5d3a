package pgquery

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pgquery"

// Metrics counts query file loads and parameterized query validations. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	fileLoads   *prometheus.CounterVec
	fileReloads prometheus.Counter
	validations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fileLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "query_file_loads_total",
			Help:      "Number of query file reads, by result.",
		}, []string{"result"}),
		fileReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "query_file_reloads_total",
			Help:      "Number of query files reread after a modification time change.",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parameterized_query_validations_total",
			Help:      "Number of full parameterized query validations, by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.fileLoads, m.fileReloads, m.validations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register pgquery metrics: %w", err)
		}
	}
	return m, nil
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) fileLoaded(err error) {
	if m == nil {
		return
	}
	m.fileLoads.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) fileReloaded() {
	if m == nil {
		return
	}
	m.fileReloads.Inc()
}

func (m *Metrics) validated(err error) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(resultLabel(err)).Inc()
}
