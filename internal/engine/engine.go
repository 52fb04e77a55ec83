package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/pkg/utils"
)

// Task parameter keys the engine maintains
const (
	paramStagedFile = "stagedFile"
	paramResultFile = "resultFile"
)

const stagedFileName = "upload.tsv"

// Engine owns the asynchronous task lifecycle: admission, bounded
// per-category worker pools, cooperative cancellation, progress flushing
// and crash recovery. Every state transition is persisted, so a restarted
// process can re-enqueue PENDING work and fail whatever was RUNNING.
type Engine struct {
	config    Config
	tasks     task.Repository
	taskLogs  task.LogRepository
	artifacts task.ArtifactStore
	mediator  mediator.Mediator
	factory   *CommandFactory
	observer  Observer
	clock     shared.Clock
	logger    zerolog.Logger

	rootCtx    context.Context
	cancelRoot context.CancelFunc
	queues     map[task.Category]chan string
	submitMu   map[task.Category]*sync.Mutex
	cancels    sync.Map
	wg         sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates an engine. Call Start before submitting.
func New(
	config Config,
	tasks task.Repository,
	taskLogs task.LogRepository,
	artifacts task.ArtifactStore,
	m mediator.Mediator,
	factory *CommandFactory,
	observer Observer,
	clock shared.Clock,
	logger zerolog.Logger,
) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	rootCtx, cancelRoot := context.WithCancel(context.Background())

	queues := make(map[task.Category]chan string, len(config.Pools))
	submitMu := make(map[task.Category]*sync.Mutex, len(config.Pools))
	for category, pool := range config.Pools {
		queues[category] = make(chan string, pool.Capacity())
		submitMu[category] = &sync.Mutex{}
	}

	return &Engine{
		config:     config,
		tasks:      tasks,
		taskLogs:   taskLogs,
		artifacts:  artifacts,
		mediator:   m,
		factory:    factory,
		observer:   observer,
		clock:      clock,
		logger:     logger.With().Str("component", "engine").Logger(),
		rootCtx:    rootCtx,
		cancelRoot: cancelRoot,
		queues:     queues,
		submitMu:   submitMu,
	}
}

// Start runs crash recovery and then launches the worker pools. Recovery
// completes before the first submission can be accepted.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.mu.Unlock()

	if err := e.recover(ctx); err != nil {
		return fmt.Errorf("task recovery failed: %w", err)
	}

	for category, pool := range e.config.Pools {
		for i := 0; i < pool.Workers; i++ {
			e.wg.Add(1)
			go e.worker(category, e.queues[category])
		}
		e.logger.Info().
			Str("category", string(category)).
			Int("workers", pool.Workers).
			Int("queue_depth", pool.QueueDepth).
			Dur("budget", pool.Budget).
			Msg("worker pool started")
	}

	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return nil
}

// Stop drains the pools: no new submissions are accepted, queued tasks
// still run, and the call returns when all workers finished or ctx
// expires. On expiry in-flight handlers are cancelled; whatever stays
// RUNNING becomes INTERRUPTED on the next start.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	for _, queue := range e.queues {
		close(queue)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info().Msg("all workers drained")
	case <-ctx.Done():
		e.logger.Warn().Msg("stop deadline reached, cancelling in-flight tasks")
		e.cancelRoot()
		<-done
	}
	e.cancelRoot()
	return nil
}

// SubmitRequest describes one task submission
type SubmitRequest struct {
	Type       task.Type
	FileName   string
	UserID     string
	Parameters map[string]interface{}

	// Payload is the uploaded file content; it is staged as a task
	// artifact so a recovered PENDING task can still find it
	Payload []byte
}

// Submit persists a new PENDING task and enqueues it. BUSY when the
// category's outstanding count has reached its capacity.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*task.Task, error) {
	e.mu.Lock()
	ready := e.started && !e.stopped
	e.mu.Unlock()
	if !ready {
		return nil, shared.NewError(shared.KindInternal, "task engine is not accepting submissions")
	}

	if !req.Type.IsValid() {
		return nil, shared.Errorf(shared.KindValidation, "unknown task type %q", req.Type)
	}
	category := req.Type.Category()
	pool := e.config.Pools[category]

	// Admission and enqueue are serialized per category so the queue can
	// never overflow its capacity.
	lock := e.submitMu[category]
	lock.Lock()
	defer lock.Unlock()

	outstanding, err := e.tasks.CountOutstanding(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to count outstanding tasks: %w", err)
	}
	if outstanding >= int64(pool.Capacity()) {
		return nil, shared.NewBusyError(string(category))
	}

	id := utils.GenerateTaskID(string(req.Type))
	t := task.New(id, req.Type, req.FileName, req.UserID, req.Parameters, e.clock)

	if req.Payload != nil {
		path, err := e.artifacts.Save(ctx, id, stagedFileName, req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to stage upload payload: %w", err)
		}
		t.SetParameter(paramStagedFile, path)
	}

	if err := e.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	e.queues[category] <- id

	e.observer.TaskSubmitted(req.Type)
	e.observer.QueueDepth(category, len(e.queues[category]))
	e.logger.Info().
		Str("task_id", id).
		Str("type", string(req.Type)).
		Str("category", string(category)).
		Msg("task submitted")
	return t, nil
}

// Get returns a snapshot of the task
func (e *Engine) Get(ctx context.Context, id string) (*task.Task, error) {
	return e.tasks.FindByID(ctx, id)
}

// RequestCancel flips the cooperative cancellation flag and wakes the
// owning worker. Idempotent; a terminal task is left untouched.
func (e *Engine) RequestCancel(ctx context.Context, id string) error {
	applied, err := e.tasks.RequestCancellation(ctx, id)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if fn, ok := e.cancels.Load(id); ok {
		fn.(context.CancelCauseFunc)(errCancelRequested)
	}
	e.logger.Info().Str("task_id", id).Msg("cancellation requested")
	return nil
}

// Watch returns a finite stream of task snapshots: one message per
// observed change, closed after the terminal snapshot or when ctx ends.
func (e *Engine) Watch(ctx context.Context, id string) (<-chan *task.Task, error) {
	t, err := e.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make(chan *task.Task, 1)
	out <- t
	if t.Status().IsTerminal() {
		close(out)
		return out, nil
	}

	interval := e.config.WatchInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := t
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := e.tasks.FindByID(ctx, id)
			if err != nil {
				e.logger.Warn().Err(err).Str("task_id", id).Msg("watch poll failed")
				return
			}
			if current.UpdatedAt().Equal(last.UpdatedAt()) && current.Status() == last.Status() {
				continue
			}
			last = current

			select {
			case <-ctx.Done():
				return
			case out <- current:
			}
			if current.Status().IsTerminal() {
				return
			}
		}
	}()
	return out, nil
}

// ResultPath returns the stored artifact of a completed task
func (e *Engine) ResultPath(ctx context.Context, id string) (string, error) {
	t, err := e.tasks.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if t.Status() != task.StatusCompleted || t.ResultURL() == "" {
		return "", shared.NewNotFoundError("result for task", id)
	}
	path, _ := t.GetParameter(paramResultFile)
	s, ok := path.(string)
	if !ok || s == "" {
		return "", shared.NewNotFoundError("result for task", id)
	}
	return s, nil
}

// OpenArtifact streams a stored artifact by path
func (e *Engine) OpenArtifact(ctx context.Context, path string) (io.ReadCloser, error) {
	return e.artifacts.Open(ctx, path)
}

// recover re-enqueues PENDING tasks and fails whatever was left RUNNING
// by a previous process
func (e *Engine) recover(ctx context.Context) error {
	running, err := e.tasks.FindByStatus(ctx, task.StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to load running tasks: %w", err)
	}
	for _, t := range running {
		t.Fail(terminalFailure(shared.KindInterrupted,
			shared.NewError(shared.KindInterrupted, "process restarted while task was running")))
		if err := e.tasks.Update(ctx, t); err != nil {
			return fmt.Errorf("failed to mark task %s interrupted: %w", t.ID(), err)
		}
		e.logger.Warn().Str("task_id", t.ID()).Msg("marked interrupted task as failed")
	}

	pending, err := e.tasks.FindByStatus(ctx, task.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}
	for _, t := range pending {
		e.queues[t.Category()] <- t.ID()
		e.logger.Info().Str("task_id", t.ID()).Msg("re-enqueued pending task")
	}

	if len(running) > 0 || len(pending) > 0 {
		e.logger.Info().
			Int("interrupted", len(running)).
			Int("requeued", len(pending)).
			Msg("task recovery finished")
	}
	return nil
}
