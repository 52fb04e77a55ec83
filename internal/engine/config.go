package engine

import (
	"time"

	"github.com/retailcore/noos-go/internal/domain/task"
)

// PoolConfig sizes one category's worker pool
type PoolConfig struct {
	Workers    int
	QueueDepth int
	Budget     time.Duration
}

// Capacity is the admission bound: a category accepts new tasks while its
// outstanding (pending plus running) count stays below workers + queue depth
func (p PoolConfig) Capacity() int {
	return p.Workers + p.QueueDepth
}

// Config sizes the engine's pools and tunes progress flushing
type Config struct {
	Pools map[task.Category]PoolConfig

	// ProgressFlushInterval and ProgressFlushDelta bound how stale the
	// persisted progress may get: a tick is flushed when it moved at least
	// the delta since the last flush, or the interval elapsed
	ProgressFlushInterval time.Duration
	ProgressFlushDelta    float64

	// WatchInterval is the polling cadence of Watch streams
	WatchInterval time.Duration
}

// DefaultConfig returns the standard pool sizes and budgets
func DefaultConfig() Config {
	return Config{
		Pools: map[task.Category]PoolConfig{
			task.CategoryUpload:   {Workers: 4, QueueDepth: 8, Budget: 10 * time.Minute},
			task.CategoryDownload: {Workers: 4, QueueDepth: 8, Budget: 10 * time.Minute},
			task.CategoryCompute:  {Workers: 2, QueueDepth: 4, Budget: 30 * time.Minute},
		},
		ProgressFlushInterval: 2 * time.Second,
		ProgressFlushDelta:    5,
		WatchInterval:         500 * time.Millisecond,
	}
}
