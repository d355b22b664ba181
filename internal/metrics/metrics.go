// Package metrics provides Prometheus metrics for nnctl.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the Prometheus registry for all metrics.
	Registry = prometheus.NewRegistry()

	initOnce sync.Once
	initErr  error
)

// Init registers every collector. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		initErr = register(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if initErr != nil {
			return
		}
		if initErr = registerLifecycleMetrics(); initErr != nil {
			return
		}
		if initErr = registerHAMetrics(); initErr != nil {
			return
		}
		initErr = registerHTTPMetrics()
	})
	return initErr
}

// MustInit initializes metrics and panics on error.
func MustInit() {
	if err := Init(); err != nil {
		panic("failed to initialize metrics: " + err.Error())
	}
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
// The write is atomic: a temporary file is renamed into place.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

func register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
