package steps

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/adapters/artifacts"
	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/engine"
	"github.com/retailcore/noos-go/internal/infrastructure/database"
)

// engineStubCommand is the mediator request the stub handler receives in
// place of a real upload command
type engineStubCommand struct {
	Task    *task.Task
	Runtime task.Runtime
}

// stubRequestHandler adapts a closure to the mediator's RequestHandler
type stubRequestHandler func(ctx context.Context, request mediator.Request) (mediator.Response, error)

func (f stubRequestHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	return f(ctx, request)
}

type taskSubmission struct {
	tk  *task.Task
	err error
}

// taskEngineContext holds state for engine lifecycle BDD tests. Upload
// tasks execute against a swappable stub handler so scenarios can hold
// workers busy or let tasks finish instantly.
type taskEngineContext struct {
	db           *gorm.DB
	tasks        *persistence.TaskRepositoryGORM
	logs         *persistence.TaskLogRepositoryGORM
	factory      *engine.CommandFactory
	med          mediator.Mediator
	store        *artifacts.Store
	artifactsDir string
	eng          *engine.Engine

	mu       sync.Mutex
	handler  func(ctx context.Context, tk *task.Task, rt task.Runtime) (*task.ExecutionResult, error)
	ran      map[string]bool
	release  chan struct{}
	released bool

	submissions []taskSubmission
}

func (ctx *taskEngineContext) teardown() {
	// Unblock any held workers before stopping so drain is quick
	if ctx.release != nil && !ctx.released {
		close(ctx.release)
		ctx.released = true
	}
	if ctx.eng != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = ctx.eng.Stop(stopCtx)
		cancel()
		ctx.eng = nil
	}
	if ctx.db != nil {
		_ = database.Close(ctx.db)
		ctx.db = nil
	}
	if ctx.artifactsDir != "" {
		os.RemoveAll(ctx.artifactsDir)
		ctx.artifactsDir = ""
	}
}

func (ctx *taskEngineContext) reset() {
	ctx.teardown()

	db, err := database.NewTestConnection()
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	dir, err := os.MkdirTemp("", "noos-bdd-artifacts-")
	if err != nil {
		panic(fmt.Sprintf("failed to create artifacts dir: %v", err))
	}
	store, err := artifacts.NewStore(dir)
	if err != nil {
		panic(fmt.Sprintf("failed to create artifact store: %v", err))
	}

	ctx.db = db
	ctx.artifactsDir = dir
	ctx.tasks = persistence.NewTaskRepository(db)
	ctx.logs = persistence.NewTaskLogRepository(db, nil)
	ctx.store = store
	ctx.factory = engine.NewCommandFactory()
	ctx.med = mediator.New()
	ctx.ran = make(map[string]bool)
	ctx.release = nil
	ctx.released = false
	ctx.submissions = nil
	ctx.handler = func(c context.Context, tk *task.Task, rt task.Runtime) (*task.ExecutionResult, error) {
		return &task.ExecutionResult{FinalMessage: "done"}, nil
	}

	ctx.factory.Register(task.TypeUploadStyles, func(tk *task.Task, rt task.Runtime) (mediator.Request, error) {
		return &engineStubCommand{Task: tk, Runtime: rt}, nil
	})
	err = mediator.RegisterHandler[*engineStubCommand](ctx.med, stubRequestHandler(
		func(c context.Context, request mediator.Request) (mediator.Response, error) {
			cmd := request.(*engineStubCommand)
			ctx.mu.Lock()
			ctx.ran[cmd.Task.ID()] = true
			handle := ctx.handler
			ctx.mu.Unlock()
			return handle(c, cmd.Task, cmd.Runtime)
		}))
	if err != nil {
		panic(fmt.Sprintf("failed to register stub handler: %v", err))
	}
}

// InitializeTaskEngineScenario registers step definitions
func InitializeTaskEngineScenario(sc *godog.ScenarioContext) {
	sCtx := &taskEngineContext{}

	// Given steps
	sc.Step(`^upload tasks block until released$`, sCtx.uploadTasksBlockUntilReleased)
	sc.Step(`^upload tasks complete immediately$`, sCtx.uploadTasksCompleteImmediately)
	sc.Step(`^an engine with (\d+) upload workers? and queue depth (\d+)$`, sCtx.anEngineWithUploadWorkersAndQueueDepth)
	sc.Step(`^a task "([^"]*)" persisted as (PENDING|RUNNING)$`, sCtx.aTaskPersistedAs)

	// When steps
	sc.Step(`^the engine starts$`, sCtx.theEngineStarts)
	sc.Step(`^(\d+) style upload tasks? (?:is|are) submitted$`, sCtx.styleUploadTasksAreSubmitted)
	sc.Step(`^cancellation is requested for submission (\d+)$`, sCtx.cancellationIsRequestedForSubmission)
	sc.Step(`^the blocked uploads are released$`, sCtx.theBlockedUploadsAreReleased)

	// Then steps
	sc.Step(`^the first (\d+) submissions are accepted$`, sCtx.theFirstSubmissionsAreAccepted)
	sc.Step(`^submission (\d+) is rejected as busy$`, sCtx.submissionIsRejectedAsBusy)
	sc.Step(`^all accepted tasks complete$`, sCtx.allAcceptedTasksComplete)
	sc.Step(`^submission (\d+) completes$`, sCtx.submissionCompletes)
	sc.Step(`^submission (\d+) ends as CANCELLED without running$`, sCtx.submissionEndsAsCancelledWithoutRunning)
	sc.Step(`^task "([^"]*)" ends as FAILED with message "([^"]*)"$`, sCtx.taskEndsAsFailedWithMessage)
	sc.Step(`^task "([^"]*)" ends as COMPLETED$`, sCtx.taskEndsAsCompleted)

	// Hooks
	sc.Before(func(gCtx context.Context, sc *godog.Scenario) (context.Context, error) {
		sCtx.reset()
		return gCtx, nil
	})

	sc.After(func(gCtx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		sCtx.teardown()
		return gCtx, nil
	})
}

func (ctx *taskEngineContext) setHandler(h func(ctx context.Context, tk *task.Task, rt task.Runtime) (*task.ExecutionResult, error)) {
	ctx.mu.Lock()
	ctx.handler = h
	ctx.mu.Unlock()
}

func (ctx *taskEngineContext) buildEngine(workers, depth int) error {
	cfg := engine.Config{
		Pools: map[task.Category]engine.PoolConfig{
			task.CategoryUpload:   {Workers: workers, QueueDepth: depth, Budget: time.Minute},
			task.CategoryDownload: {Workers: 1, QueueDepth: 1, Budget: time.Minute},
			task.CategoryCompute:  {Workers: 1, QueueDepth: 1, Budget: time.Minute},
		},
		ProgressFlushInterval: 10 * time.Millisecond,
		ProgressFlushDelta:    1,
		WatchInterval:         10 * time.Millisecond,
	}
	ctx.eng = engine.New(cfg, ctx.tasks, ctx.logs, ctx.store, ctx.med, ctx.factory,
		nil, shared.NewRealClock(), zerolog.Nop())
	if err := ctx.eng.Start(context.Background()); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	return nil
}

func (ctx *taskEngineContext) submission(index int) (taskSubmission, error) {
	if index < 1 || index > len(ctx.submissions) {
		return taskSubmission{}, fmt.Errorf("no submission %d, have %d", index, len(ctx.submissions))
	}
	return ctx.submissions[index-1], nil
}

func (ctx *taskEngineContext) awaitStatus(id string, want task.Status) (*task.Task, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		tk, err := ctx.tasks.FindByID(context.Background(), id)
		if err == nil && tk.Status() == want {
			return tk, nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return nil, fmt.Errorf("task %s never reached %s: %w", id, want, err)
			}
			return nil, fmt.Errorf("task %s never reached %s, last status %s", id, want, tk.Status())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// ============================================================================
// Given Steps
// ============================================================================

func (ctx *taskEngineContext) uploadTasksBlockUntilReleased() error {
	release := make(chan struct{})
	ctx.release = release
	ctx.released = false
	ctx.setHandler(func(c context.Context, tk *task.Task, rt task.Runtime) (*task.ExecutionResult, error) {
		select {
		case <-release:
			return &task.ExecutionResult{FinalMessage: "released"}, nil
		case <-c.Done():
			return nil, c.Err()
		}
	})
	return nil
}

func (ctx *taskEngineContext) uploadTasksCompleteImmediately() error {
	ctx.setHandler(func(c context.Context, tk *task.Task, rt task.Runtime) (*task.ExecutionResult, error) {
		return &task.ExecutionResult{ProcessedRecords: 1, FinalMessage: "done"}, nil
	})
	return nil
}

func (ctx *taskEngineContext) anEngineWithUploadWorkersAndQueueDepth(workers, depth int) error {
	return ctx.buildEngine(workers, depth)
}

func (ctx *taskEngineContext) aTaskPersistedAs(id, status string) error {
	tk := task.New(id, task.TypeUploadStyles, "styles.tsv", "bdd", nil, shared.NewRealClock())
	if status == "RUNNING" {
		if err := tk.Start(); err != nil {
			return err
		}
	}
	return ctx.tasks.Create(context.Background(), tk)
}

// ============================================================================
// When Steps
// ============================================================================

func (ctx *taskEngineContext) theEngineStarts() error {
	return ctx.buildEngine(1, 2)
}

func (ctx *taskEngineContext) styleUploadTasksAreSubmitted(count int) error {
	if ctx.eng == nil {
		return fmt.Errorf("engine not started")
	}
	for i := 0; i < count; i++ {
		tk, err := ctx.eng.Submit(context.Background(), engine.SubmitRequest{
			Type:     task.TypeUploadStyles,
			FileName: fmt.Sprintf("styles-%d.tsv", i+1),
			UserID:   "bdd",
			Payload:  []byte("style\tbrand\tcategory\tsub_category\tmrp\tgender\n"),
		})
		ctx.submissions = append(ctx.submissions, taskSubmission{tk: tk, err: err})
	}
	return nil
}

func (ctx *taskEngineContext) cancellationIsRequestedForSubmission(index int) error {
	sub, err := ctx.submission(index)
	if err != nil {
		return err
	}
	if sub.err != nil {
		return fmt.Errorf("submission %d was rejected: %v", index, sub.err)
	}
	return ctx.eng.RequestCancel(context.Background(), sub.tk.ID())
}

func (ctx *taskEngineContext) theBlockedUploadsAreReleased() error {
	if ctx.release == nil {
		return fmt.Errorf("uploads were never blocked")
	}
	if !ctx.released {
		close(ctx.release)
		ctx.released = true
	}
	return nil
}

// ============================================================================
// Then Steps
// ============================================================================

func (ctx *taskEngineContext) theFirstSubmissionsAreAccepted(count int) error {
	if len(ctx.submissions) < count {
		return fmt.Errorf("only %d submissions recorded", len(ctx.submissions))
	}
	for i := 0; i < count; i++ {
		if ctx.submissions[i].err != nil {
			return fmt.Errorf("submission %d was rejected: %v", i+1, ctx.submissions[i].err)
		}
	}
	return nil
}

func (ctx *taskEngineContext) submissionIsRejectedAsBusy(index int) error {
	sub, err := ctx.submission(index)
	if err != nil {
		return err
	}
	if sub.err == nil {
		return fmt.Errorf("expected submission %d to be rejected", index)
	}
	if !shared.IsKind(sub.err, shared.KindBusy) {
		return fmt.Errorf("expected BUSY error, got: %v", sub.err)
	}
	return nil
}

func (ctx *taskEngineContext) allAcceptedTasksComplete() error {
	for i, sub := range ctx.submissions {
		if sub.err != nil {
			continue
		}
		if _, err := ctx.awaitStatus(sub.tk.ID(), task.StatusCompleted); err != nil {
			return fmt.Errorf("submission %d: %w", i+1, err)
		}
	}
	return nil
}

func (ctx *taskEngineContext) submissionCompletes(index int) error {
	sub, err := ctx.submission(index)
	if err != nil {
		return err
	}
	if sub.err != nil {
		return fmt.Errorf("submission %d was rejected: %v", index, sub.err)
	}
	_, err = ctx.awaitStatus(sub.tk.ID(), task.StatusCompleted)
	return err
}

func (ctx *taskEngineContext) submissionEndsAsCancelledWithoutRunning(index int) error {
	sub, err := ctx.submission(index)
	if err != nil {
		return err
	}
	if sub.err != nil {
		return fmt.Errorf("submission %d was rejected: %v", index, sub.err)
	}
	if _, err := ctx.awaitStatus(sub.tk.ID(), task.StatusCancelled); err != nil {
		return err
	}
	ctx.mu.Lock()
	ran := ctx.ran[sub.tk.ID()]
	ctx.mu.Unlock()
	if ran {
		return fmt.Errorf("task %s executed despite cancellation", sub.tk.ID())
	}
	return nil
}

func (ctx *taskEngineContext) taskEndsAsFailedWithMessage(id, message string) error {
	tk, err := ctx.awaitStatus(id, task.StatusFailed)
	if err != nil {
		return err
	}
	if !strings.Contains(tk.ErrorMessage(), message) {
		return fmt.Errorf("expected error mentioning %q, got %q", message, tk.ErrorMessage())
	}
	return nil
}

func (ctx *taskEngineContext) taskEndsAsCompleted(id string) error {
	_, err := ctx.awaitStatus(id, task.StatusCompleted)
	return err
}
