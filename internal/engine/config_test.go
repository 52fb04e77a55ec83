package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/engine"
)

func TestPoolConfigCapacity(t *testing.T) {
	pool := engine.PoolConfig{Workers: 4, QueueDepth: 8, Budget: 10 * time.Minute}
	assert.Equal(t, 12, pool.Capacity())
}

func TestDefaultConfigPools(t *testing.T) {
	cfg := engine.DefaultConfig()

	upload := cfg.Pools[task.CategoryUpload]
	assert.Equal(t, 4, upload.Workers)
	assert.Equal(t, 8, upload.QueueDepth)
	assert.Equal(t, 10*time.Minute, upload.Budget)

	download := cfg.Pools[task.CategoryDownload]
	assert.Equal(t, 4, download.Workers)
	assert.Equal(t, 10*time.Minute, download.Budget)

	compute := cfg.Pools[task.CategoryCompute]
	assert.Equal(t, 2, compute.Workers)
	assert.Equal(t, 4, compute.QueueDepth)
	assert.Equal(t, 30*time.Minute, compute.Budget)
}
