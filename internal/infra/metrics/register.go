// Package metrics holds the archiver's Prometheus collectors: slot
// processing outcomes, upload traffic per storage backend, and
// retention sweep deletions. Each file enqueues its collectors at init;
// main registers them all once and the web server exposes /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers every enqueued collector exactly once. Call it
// at startup before the first slot is processed.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}
