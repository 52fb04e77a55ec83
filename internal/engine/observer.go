package engine

import (
	"time"

	"github.com/retailcore/noos-go/internal/domain/task"
)

// Observer receives engine lifecycle events. The metrics adapter implements
// it; everything is fire-and-forget and must not block.
type Observer interface {
	TaskSubmitted(taskType task.Type)
	TaskStarted(taskType task.Type)
	TaskFinished(taskType task.Type, status task.Status, runtime time.Duration)
	QueueDepth(category task.Category, depth int)
}

// NopObserver ignores all events
type NopObserver struct{}

func (NopObserver) TaskSubmitted(task.Type)                            {}
func (NopObserver) TaskStarted(task.Type)                              {}
func (NopObserver) TaskFinished(task.Type, task.Status, time.Duration) {}
func (NopObserver) QueueDepth(task.Category, int)                      {}
