package engine

import (
	"sync"

	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// CommandBuilder constructs the mediator request that executes one task.
// Builders read everything they need from the persisted task row, so a
// recovered PENDING task rebuilds the identical command after a restart.
type CommandBuilder func(t *task.Task, rt task.Runtime) (mediator.Request, error)

// CommandFactory maps task types to their command builders. Adding a new
// task type only requires registering a builder here; the worker loop and
// recovery stay untouched.
type CommandFactory struct {
	mu       sync.RWMutex
	builders map[task.Type]CommandBuilder
}

// NewCommandFactory creates an empty factory
func NewCommandFactory() *CommandFactory {
	return &CommandFactory{builders: make(map[task.Type]CommandBuilder)}
}

// Register binds a builder to a task type
func (f *CommandFactory) Register(taskType task.Type, builder CommandBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[taskType] = builder
}

// Build constructs the command for the given task
func (f *CommandFactory) Build(t *task.Task, rt task.Runtime) (mediator.Request, error) {
	f.mu.RLock()
	builder, ok := f.builders[t.Type()]
	f.mu.RUnlock()
	if !ok {
		return nil, shared.Errorf(shared.KindInternal, "no command builder registered for task type %s", t.Type())
	}
	return builder(t, rt)
}

// StagedFilePath returns the staged upload artifact the engine recorded on
// the task at submission, if any
func StagedFilePath(t *task.Task) (string, bool) {
	v, ok := t.GetParameter(paramStagedFile)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
