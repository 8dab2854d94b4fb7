package inventory

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeOK           = "ok"
	outcomeInvalid      = "invalid"
	outcomeStorageError = "storage_error"

	actionDelete = "delete"
)

type Metrics struct {
	Mutations *prometheus.CounterVec
	Products  prometheus.Gauge
}

// NewMetrics registers the inventory collectors on reg. A nil registry
// yields nil, and every method on a nil *Metrics is a no-op.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_mutations_total",
				Help: "Inventory mutations by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		Products: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_products",
			Help: "Number of product records after the last mutation",
		}),
	}

	reg.MustRegister(m.Mutations, m.Products)
	return m
}

func (m *Metrics) observe(action, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) setProducts(n int) {
	if m == nil {
		return
	}
	m.Products.Set(float64(n))
}
