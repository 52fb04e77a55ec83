package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = "localhost:8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "noos"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "noos"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Engine defaults
	if cfg.Engine.Upload.Workers == 0 {
		cfg.Engine.Upload.Workers = 4
	}
	if cfg.Engine.Upload.Budget == 0 {
		cfg.Engine.Upload.Budget = 10 * time.Minute
	}
	if cfg.Engine.Download.Workers == 0 {
		cfg.Engine.Download.Workers = 4
	}
	if cfg.Engine.Download.Budget == 0 {
		cfg.Engine.Download.Budget = 10 * time.Minute
	}
	if cfg.Engine.Compute.Workers == 0 {
		cfg.Engine.Compute.Workers = 2
	}
	if cfg.Engine.Compute.Budget == 0 {
		cfg.Engine.Compute.Budget = 30 * time.Minute
	}
	for _, p := range []*PoolSettings{&cfg.Engine.Upload, &cfg.Engine.Download, &cfg.Engine.Compute} {
		if p.QueueDepth == 0 {
			p.QueueDepth = 2 * p.Workers
		}
	}
	if cfg.Engine.WatchInterval == 0 {
		cfg.Engine.WatchInterval = 500 * time.Millisecond
	}
	if cfg.Engine.ProgressFlushInterval == 0 {
		cfg.Engine.ProgressFlushInterval = 2 * time.Second
	}
	if cfg.Engine.ProgressFlushDelta == 0 {
		cfg.Engine.ProgressFlushDelta = 5
	}

	// Artifacts defaults
	if cfg.Artifacts.Root == "" {
		cfg.Artifacts.Root = "./data/artifacts"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
