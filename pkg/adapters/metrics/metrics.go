// Package metrics exports store activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/casebook/pkg/core"
)

const namespace = "casebook"

// Collector implements core.Metrics.
type Collector struct {
	mutations   *prometheus.CounterVec
	publishes   *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

// New creates a Collector and registers it with reg. A nil reg leaves the
// metrics unregistered.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Store mutations by operation and result.",
		}, []string{"op", "result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "publishes_total",
			Help:      "Values offered to subscribers by feed kind.",
		}, []string{"kind"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Open feeds by kind.",
		}, []string{"kind"}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.mutations, c.publishes, c.subscribers} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.mutations.WithLabelValues(op, result).Inc()
}

func (c *Collector) ObserveSubscribers(kind string, n int) {
	c.subscribers.WithLabelValues(kind).Set(float64(n))
}

// ObservePublish counts n deliveries offered for one mutation.
func (c *Collector) ObservePublish(kind string, n int) {
	c.publishes.WithLabelValues(kind).Add(float64(n))
}

var _ core.Metrics = (*Collector)(nil)
