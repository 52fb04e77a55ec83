package config

import "time"

// EngineConfig sizes the task engine's worker pools
type EngineConfig struct {
	Upload   PoolSettings `mapstructure:"upload"`
	Download PoolSettings `mapstructure:"download"`
	Compute  PoolSettings `mapstructure:"compute"`

	// WatchInterval is the polling cadence of task watch streams
	WatchInterval time.Duration `mapstructure:"watch_interval"`

	// ProgressFlushInterval and ProgressFlushDelta bound how stale the
	// persisted progress of a running task may get
	ProgressFlushInterval time.Duration `mapstructure:"progress_flush_interval"`
	ProgressFlushDelta    float64       `mapstructure:"progress_flush_delta"`
}

// PoolSettings holds one worker pool's sizing
type PoolSettings struct {
	// Number of concurrent workers
	Workers int `mapstructure:"workers" validate:"min=1"`

	// Queued submissions beyond the running ones (0 means twice the workers)
	QueueDepth int `mapstructure:"queue_depth" validate:"min=0"`

	// Wall-clock budget a single task may run before it is failed
	Budget time.Duration `mapstructure:"budget"`
}
