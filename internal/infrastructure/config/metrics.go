package config

// MetricsConfig holds metrics exposure configuration
type MetricsConfig struct {
	// Enabled controls whether Prometheus collectors are registered and
	// the /metrics endpoint serves them
	Enabled bool `mapstructure:"enabled"`
}
