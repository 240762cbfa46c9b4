// Package metrics provides opt-in Prometheus metrics for FormFlow.
//
// Metrics are disabled by default. Call InitRegistry once at startup to
// enable collection; constructors in this package return nil when the
// registry was never initialized, so callers can pass the result straight
// to decoders and stores for zero overhead when metrics are off.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
	enabled      bool
)

// InitRegistry creates the global Prometheus registry and registers the
// standard Go runtime and process collectors. Safe to call multiple times;
// only the first call has any effect.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		enabled = true
	})
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the global registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Handler returns an HTTP handler serving the global registry in the
// Prometheus exposition format. Returns http.NotFoundHandler when metrics
// are disabled so the route can be mounted unconditionally.
func Handler() http.Handler {
	if !enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
