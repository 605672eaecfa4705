// Package metrics exposes the SPT client's send queue, dispatch and path
// health as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the registered metrics for one SPT instance. Construct
// with NewCollector and attach via spt.SPT.SetMetrics.
type Collector struct {
	queueDepth  prometheus.Gauge
	messagesSent prometheus.Counter
	pathOK      *prometheus.GaugeVec
}

// NewCollector builds and registers a Collector's metrics on reg. Passing
// prometheus.NewRegistry() keeps a demo instance's metrics isolated from
// the global default registry.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of messages awaiting transmission.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total messages successfully acknowledged by a receiver.",
		}),
		pathOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "path_ok",
			Help:      "1 if the path last reported ACK, 0 otherwise.",
		}, []string{"branch", "slot"}),
	}
	reg.MustRegister(c.queueDepth, c.messagesSent, c.pathOK)
	return c
}

// QueueDepth records the current send queue length.
func (c *Collector) QueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// MessageSent increments the sent counter by one.
func (c *Collector) MessageSent() {
	c.messagesSent.Inc()
}

// PathOK records the ok/fail transition for one lattice cell. branch and
// slot are passed as their String() forms so the labels read "main",
// "back-up", "primary", "secondary".
func (c *Collector) PathOK(branch fmt.Stringer, slot fmt.Stringer, ok bool) {
	v := 0.0
	if ok {
		v = 1.0
	}
	c.pathOK.WithLabelValues(branch.String(), slot.String()).Set(v)
}
