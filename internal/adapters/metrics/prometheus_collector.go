package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all metrics
	namespace = "noos"
	// Subsystem for task engine metrics
	subsystem = "engine"
)

// Registry is the global Prometheus registry for all metrics. It stays nil
// when metrics are disabled; collectors treat a nil registry as a no-op.
var Registry *prometheus.Registry

// InitRegistry initializes the Prometheus registry. Should be called once
// at application startup if metrics are enabled.
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// GetRegistry returns the global Prometheus registry, nil when disabled
func GetRegistry() *prometheus.Registry {
	return Registry
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return Registry != nil
}

// HTTPHandler serves the registry in the Prometheus exposition format.
// With metrics disabled the endpoint answers 404.
func HTTPHandler() http.Handler {
	if Registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
