package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retailcore/noos-go/internal/application/logging"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// errCancelRequested is installed as the context cancel cause when a caller
// asks for cooperative cancellation, so the runner can tell a cancel apart
// from a budget timeout or process shutdown.
var errCancelRequested = errors.New("cancellation requested")

// persistTimeout bounds the detached writes for lifecycle transitions; they
// must not inherit the run context, which may already be cancelled.
const persistTimeout = 5 * time.Second

func (e *Engine) worker(category task.Category, queue <-chan string) {
	defer e.wg.Done()
	for id := range queue {
		e.observer.QueueDepth(category, len(queue))
		e.runOne(category, id)
	}
}

// runOne drives a single task from PENDING to a terminal state
func (e *Engine) runOne(category task.Category, id string) {
	t, err := e.loadTask(id)
	if err != nil {
		e.logger.Error().Err(err).Str("task_id", id).Msg("failed to load queued task")
		return
	}
	if t.Status() != task.StatusPending {
		e.logger.Warn().
			Str("task_id", id).
			Str("status", string(t.Status())).
			Msg("skipping task no longer pending")
		return
	}

	// Cancelled while still queued: settle it without running
	if t.CancellationRequested() {
		if err := t.Cancel(); err == nil {
			e.persistTerminal(t)
			e.observer.TaskFinished(t.Type(), t.Status(), 0)
		}
		return
	}

	pool := e.config.Pools[category]
	runCtx, cancelCause := context.WithCancelCause(e.rootCtx)
	budgetCtx, cancelBudget := context.WithTimeout(runCtx, pool.Budget)
	defer cancelBudget()
	defer cancelCause(nil)

	e.cancels.Store(id, cancelCause)
	defer e.cancels.Delete(id)

	taskLogger := logging.NewPersistingLogger(id, e.taskLogs, e.logger)
	ctx := logging.WithLogger(budgetCtx, taskLogger)

	sink := newProgressSink(id, e.tasks, e.logger, e.config)
	sink.cancelled = func(ctx context.Context) error {
		return e.cancellationError(ctx, id)
	}

	if err := t.Start(); err != nil {
		e.logger.Error().Err(err).Str("task_id", id).Msg("invalid start transition")
		return
	}
	if err := e.persistWithTimeout(t); err != nil {
		e.logger.Error().Err(err).Str("task_id", id).Msg("failed to persist running state")
		return
	}
	e.observer.TaskStarted(t.Type())
	taskLogger.Logf(task.LogLevelInfo, "Task started: %s", t.Type())
	sink.Progress(ctx, 0, "Task started", 0)

	var resp mediator.Response
	cmd, execErr := e.factory.Build(t, sink)
	if execErr == nil {
		resp, execErr = e.mediator.Send(ctx, cmd)
	}

	sink.close()
	// The terminal write persists every column; fold in the last coalesced
	// tick so a failed run keeps the progress it reported.
	pct, msg, processed := sink.snapshot()
	t.MarkProgress(pct, msg)
	if processed > t.ProcessedRecords() {
		t.SetProcessedRecords(processed)
	}
	e.finish(budgetCtx, t, resp, execErr, taskLogger)
}

// finish folds the handler outcome into the task row and settles the
// terminal state
func (e *Engine) finish(ctx context.Context, t *task.Task, resp mediator.Response, execErr error, taskLogger logging.TaskLogger) {
	// Handlers may return partial results alongside an error, e.g. an
	// all-or-nothing upload rejection still carries counters and the paths
	// of its error reports.
	if result, ok := resp.(*task.ExecutionResult); ok && result != nil {
		e.applyResult(t, result)
	}

	if execErr == nil {
		if err := t.Complete(); err != nil {
			e.logger.Error().Err(err).Str("task_id", t.ID()).Msg("invalid complete transition")
		}
		taskLogger.Logf(task.LogLevelInfo, "Task completed: %d of %d records processed",
			t.ProcessedRecords(), t.TotalRecords())
	} else {
		switch kind := e.terminalKind(ctx, execErr); kind {
		case shared.KindCancelled:
			if err := t.Cancel(); err != nil {
				e.logger.Error().Err(err).Str("task_id", t.ID()).Msg("invalid cancel transition")
			}
			taskLogger.Log(task.LogLevelWarn, "Task cancelled")
		default:
			if err := t.Fail(terminalFailure(kind, execErr)); err != nil {
				e.logger.Error().Err(err).Str("task_id", t.ID()).Msg("invalid fail transition")
			}
			taskLogger.Logf(task.LogLevelError, "Task failed: %s", t.ErrorMessage())
		}
	}

	e.persistTerminal(t)
	e.observer.TaskFinished(t.Type(), t.Status(), t.RuntimeDuration())
}

// terminalKind classifies an execution error. Explicit cancellation wins
// over whatever error surfaced while the handler unwound; budget expiry
// maps to TIMEOUT; a cancelled root context means the process is shutting
// down and the task was INTERRUPTED.
func (e *Engine) terminalKind(ctx context.Context, err error) shared.Kind {
	cause := context.Cause(ctx)
	if errors.Is(cause, errCancelRequested) || shared.IsKind(err, shared.KindCancelled) {
		return shared.KindCancelled
	}
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		shared.IsKind(err, shared.KindTimeout) {
		return shared.KindTimeout
	}
	if errors.Is(cause, context.Canceled) || shared.IsKind(err, shared.KindInterrupted) {
		return shared.KindInterrupted
	}
	return shared.KindOf(err)
}

// terminalFailure prefixes the stored error message with its kind so the
// persisted errorMessage is self-describing
func terminalFailure(kind shared.Kind, err error) error {
	return fmt.Errorf("%s: %w", kind, err)
}

func (e *Engine) applyResult(t *task.Task, r *task.ExecutionResult) {
	if r.TotalRecords > 0 {
		t.SetTotalRecords(r.TotalRecords)
	}
	t.RecordOutcome(r.ProcessedRecords, r.ErrorCount, r.SkippedCount)
	for name, path := range r.ErrorFiles {
		t.AddErrorFile(name, path)
	}
	if r.ResultPath != "" {
		t.SetParameter(paramResultFile, r.ResultPath)
		t.SetResultURL("/api/tasks/" + t.ID() + "/result")
	}
	for key, value := range r.Parameters {
		t.SetParameter(key, value)
	}
	if r.FinalMessage != "" {
		t.MarkProgress(t.ProgressPercentage(), r.FinalMessage)
	}
}

// cancellationError is the cooperative cancellation probe handed to
// handlers through the progress sink. It first consults the run context,
// then falls back to polling the persisted flag so cancellations issued
// through another process instance are still observed.
func (e *Engine) cancellationError(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, errCancelRequested):
			return shared.NewError(shared.KindCancelled, "cancellation requested")
		case errors.Is(cause, context.DeadlineExceeded):
			return shared.NewError(shared.KindTimeout, "execution budget exhausted")
		default:
			return shared.NewError(shared.KindInterrupted, "task engine is shutting down")
		}
	default:
	}

	requested, err := e.tasks.IsCancellationRequested(ctx, id)
	if err != nil {
		// The flag read is advisory; the context path above still guards
		// the run
		return nil
	}
	if requested {
		return shared.NewError(shared.KindCancelled, "cancellation requested")
	}
	return nil
}

func (e *Engine) loadTask(id string) (*task.Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return e.tasks.FindByID(ctx, id)
}

func (e *Engine) persistWithTimeout(t *task.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return e.tasks.Update(ctx, t)
}

// persistTerminal writes the terminal snapshot on a detached context; a
// failed write is logged, the recovery pass will settle the row on the
// next start
func (e *Engine) persistTerminal(t *task.Task) {
	if err := e.persistWithTimeout(t); err != nil {
		e.logger.Error().
			Err(err).
			Str("task_id", t.ID()).
			Str("status", string(t.Status())).
			Msg("failed to persist terminal state")
	}
}
