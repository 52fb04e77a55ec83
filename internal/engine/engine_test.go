package engine_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/adapters/artifacts"
	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/internal/engine"
	"github.com/retailcore/noos-go/test/helpers"
)

// stubCommand is the mediator request the test handlers receive
type stubCommand struct {
	Task    *task.Task
	Runtime task.Runtime
}

// handlerFunc adapts a closure to the mediator's RequestHandler
type handlerFunc func(ctx context.Context, request mediator.Request) (mediator.Response, error)

func (f handlerFunc) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	return f(ctx, request)
}

// recordingObserver captures lifecycle notifications for assertions
type recordingObserver struct {
	mu        sync.Mutex
	submitted []task.Type
	started   []task.Type
	finished  []task.Status
}

func (o *recordingObserver) TaskSubmitted(taskType task.Type) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted = append(o.submitted, taskType)
}

func (o *recordingObserver) TaskStarted(taskType task.Type) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, taskType)
}

func (o *recordingObserver) TaskFinished(taskType task.Type, status task.Status, runtime time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, status)
}

func (o *recordingObserver) QueueDepth(category task.Category, depth int) {}

func (o *recordingObserver) finishedStatuses() []task.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]task.Status, len(o.finished))
	copy(out, o.finished)
	return out
}

type stubHandler func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error)

type harness struct {
	eng      *engine.Engine
	tasks    *persistence.TaskRepositoryGORM
	factory  *engine.CommandFactory
	med      mediator.Mediator
	store    *artifacts.Store
	observer *recordingObserver

	mu       sync.Mutex
	handlers map[task.Type]stubHandler
}

func testConfig() engine.Config {
	return engine.Config{
		Pools: map[task.Category]engine.PoolConfig{
			task.CategoryUpload:   {Workers: 2, QueueDepth: 2, Budget: time.Minute},
			task.CategoryDownload: {Workers: 1, QueueDepth: 1, Budget: time.Minute},
			task.CategoryCompute:  {Workers: 1, QueueDepth: 1, Budget: time.Minute},
		},
		ProgressFlushInterval: 10 * time.Millisecond,
		ProgressFlushDelta:    1,
		WatchInterval:         10 * time.Millisecond,
	}
}

func newHarness(t *testing.T, cfg engine.Config) *harness {
	t.Helper()
	db := helpers.NewTestDB(t)
	tasks := persistence.NewTaskRepository(db)
	logs := persistence.NewTaskLogRepository(db, nil)
	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		tasks:    tasks,
		factory:  engine.NewCommandFactory(),
		med:      mediator.New(),
		store:    store,
		observer: &recordingObserver{},
		handlers: make(map[task.Type]stubHandler),
	}
	h.eng = engine.New(cfg, tasks, logs, store, h.med, h.factory, h.observer, shared.NewRealClock(), zerolog.Nop())

	// All stub commands go through one mediator registration; dispatch is by
	// task type
	require.NoError(t, mediator.RegisterHandler[*stubCommand](h.med, handlerFunc(
		func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
			cmd := request.(*stubCommand)
			h.mu.Lock()
			handle, ok := h.handlers[cmd.Task.Type()]
			h.mu.Unlock()
			if !ok {
				return nil, shared.Errorf(shared.KindInternal, "no stub for %s", cmd.Task.Type())
			}
			return handle(ctx, cmd)
		})))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.eng.Stop(ctx)
	})
	return h
}

// wire binds one task type to a handler closure
func (h *harness) wire(taskType task.Type, handle stubHandler) {
	h.mu.Lock()
	h.handlers[taskType] = handle
	h.mu.Unlock()
	h.factory.Register(taskType, func(tk *task.Task, rt task.Runtime) (mediator.Request, error) {
		return &stubCommand{Task: tk, Runtime: rt}, nil
	})
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.eng.Start(context.Background()))
}

func (h *harness) waitForStatus(t *testing.T, id string, want task.Status) *task.Task {
	t.Helper()
	var snapshot *task.Task
	require.Eventually(t, func() bool {
		tk, err := h.tasks.FindByID(context.Background(), id)
		if err != nil {
			return false
		}
		snapshot = tk
		return tk.Status() == want
	}, 5*time.Second, 10*time.Millisecond, "task %s never reached %s", id, want)
	return snapshot
}

func TestEngine_SubmitRunsToCompletion(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.wire(task.TypeUploadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		cmd.Runtime.Progress(ctx, 50, "halfway", 5)
		return &task.ExecutionResult{
			TotalRecords:     10,
			ProcessedRecords: 10,
			FinalMessage:     "Loaded 10 rows",
		}, nil
	})
	h.start(t)

	// Act
	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{
		Type:     task.TypeUploadStyles,
		FileName: "styles.tsv",
		UserID:   "ops",
		Payload:  []byte("style\tbrand\n"),
	})

	// Assert
	require.NoError(t, err)
	staged, ok := engine.StagedFilePath(tk)
	require.True(t, ok, "upload payload must be staged at submission")
	assert.NotEmpty(t, staged)

	done := h.waitForStatus(t, tk.ID(), task.StatusCompleted)
	assert.Equal(t, 10, done.TotalRecords())
	assert.Equal(t, 10, done.ProcessedRecords())
	assert.Equal(t, 100.0, done.ProgressPercentage())
	assert.Equal(t, "Loaded 10 rows", done.ProgressMessage())
}

func TestEngine_ObserverSeesLifecycle(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.wire(task.TypeDownloadSales, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		return &task.ExecutionResult{}, nil
	})
	h.start(t)

	// Act
	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeDownloadSales})
	require.NoError(t, err)
	h.waitForStatus(t, tk.ID(), task.StatusCompleted)

	// Assert
	require.Eventually(t, func() bool {
		return len(h.observer.finishedStatuses()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []task.Status{task.StatusCompleted}, h.observer.finishedStatuses())

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	assert.Equal(t, []task.Type{task.TypeDownloadSales}, h.observer.submitted)
	assert.Equal(t, []task.Type{task.TypeDownloadSales}, h.observer.started)
}

func TestEngine_SubmitRejectsWhenPoolSaturated(t *testing.T) {
	// Arrange - capacity 2 for uploads (1 worker + queue depth 1)
	cfg := testConfig()
	cfg.Pools[task.CategoryUpload] = engine.PoolConfig{Workers: 1, QueueDepth: 1, Budget: time.Minute}

	h := newHarness(t, cfg)
	release := make(chan struct{})
	var once sync.Once
	defer once.Do(func() { close(release) })

	h.wire(task.TypeUploadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &task.ExecutionResult{}, nil
	})
	h.wire(task.TypeAlgorithmRun, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		return &task.ExecutionResult{}, nil
	})
	h.start(t)

	first, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})
	require.NoError(t, err)
	h.waitForStatus(t, first.ID(), task.StatusRunning)

	_, err = h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})
	require.NoError(t, err)

	// Act - one running plus one queued fills the category
	_, err = h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindBusy))

	// Other categories are unaffected by upload saturation
	_, err = h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeAlgorithmRun})
	assert.NoError(t, err)

	once.Do(func() { close(release) })
	h.waitForStatus(t, first.ID(), task.StatusCompleted)
}

func TestEngine_CancelWhileQueued(t *testing.T) {
	// Arrange - a single worker is pinned by the blocker so the victim
	// stays queued
	cfg := testConfig()
	cfg.Pools[task.CategoryUpload] = engine.PoolConfig{Workers: 1, QueueDepth: 2, Budget: time.Minute}

	h := newHarness(t, cfg)
	release := make(chan struct{})
	var once sync.Once
	defer once.Do(func() { close(release) })

	var mu sync.Mutex
	var executed []string
	h.wire(task.TypeUploadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		mu.Lock()
		executed = append(executed, cmd.Task.ID())
		mu.Unlock()
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &task.ExecutionResult{}, nil
	})
	h.start(t)

	blocker, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})
	require.NoError(t, err)
	h.waitForStatus(t, blocker.ID(), task.StatusRunning)

	victim, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})
	require.NoError(t, err)

	// Act
	require.NoError(t, h.eng.RequestCancel(context.Background(), victim.ID()))
	once.Do(func() { close(release) })

	// Assert - the victim settles as CANCELLED without its handler running
	cancelled := h.waitForStatus(t, victim.ID(), task.StatusCancelled)
	assert.True(t, cancelled.CancellationRequested())

	h.waitForStatus(t, blocker.ID(), task.StatusCompleted)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{blocker.ID()}, executed)
}

func TestEngine_CancelWhileRunning(t *testing.T) {
	// Arrange - the handler cooperates through CheckCancelled
	h := newHarness(t, testConfig())
	started := make(chan struct{})
	var once sync.Once

	h.wire(task.TypeAlgorithmRun, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		once.Do(func() { close(started) })
		for {
			if err := cmd.Runtime.CheckCancelled(ctx); err != nil {
				return nil, err
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	h.start(t)

	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeAlgorithmRun})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never started")
	}

	// Act
	require.NoError(t, h.eng.RequestCancel(context.Background(), tk.ID()))

	// Assert
	done := h.waitForStatus(t, tk.ID(), task.StatusCancelled)
	assert.True(t, done.CancellationRequested())
	assert.NotNil(t, done.EndTime())
}

func TestEngine_BudgetExpiryFailsWithTimeout(t *testing.T) {
	// Arrange - a 50ms budget the handler is guaranteed to blow
	cfg := testConfig()
	cfg.Pools[task.CategoryCompute] = engine.PoolConfig{Workers: 1, QueueDepth: 1, Budget: 50 * time.Millisecond}

	h := newHarness(t, cfg)
	h.wire(task.TypeAlgorithmRun, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h.start(t)

	// Act
	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeAlgorithmRun})
	require.NoError(t, err)

	// Assert
	failed := h.waitForStatus(t, tk.ID(), task.StatusFailed)
	assert.Contains(t, failed.ErrorMessage(), "TIMEOUT")
}

func TestEngine_RecoveryBeforeFirstSubmission(t *testing.T) {
	// Arrange - rows left behind by a previous process
	h := newHarness(t, testConfig())
	ctx := context.Background()

	interrupted := task.New("algorithm-run-stale0001", task.TypeAlgorithmRun, "", "", nil, nil)
	require.NoError(t, interrupted.Start())
	require.NoError(t, h.tasks.Create(ctx, interrupted))

	orphan := task.New("file-upload-styles-orphan01", task.TypeUploadStyles, "styles.tsv", "", nil, nil)
	require.NoError(t, h.tasks.Create(ctx, orphan))

	h.wire(task.TypeUploadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		return &task.ExecutionResult{TotalRecords: 1, ProcessedRecords: 1}, nil
	})

	// Act
	h.start(t)

	// Assert - the RUNNING task is already settled when Start returns
	stale, err := h.tasks.FindByID(ctx, interrupted.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, stale.Status())
	assert.Contains(t, stale.ErrorMessage(), "INTERRUPTED")

	// The PENDING task was re-enqueued and runs to completion
	recovered := h.waitForStatus(t, orphan.ID(), task.StatusCompleted)
	assert.Equal(t, 1, recovered.ProcessedRecords())
}

func TestEngine_SubmitValidation(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.start(t)

	// Act
	_, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.Type("BOGUS")})

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestEngine_SubmitBeforeStart(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())

	// Act - engine never started
	_, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindInternal))
}

func TestEngine_ResultArtifactRoundTrip(t *testing.T) {
	// Arrange - the handler stores a result artifact like a download does
	h := newHarness(t, testConfig())
	h.wire(task.TypeDownloadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		path, err := h.store.Save(ctx, cmd.Task.ID(), "styles.tsv", []byte("style\tbrand\nST-1\tNova\n"))
		if err != nil {
			return nil, err
		}
		return &task.ExecutionResult{TotalRecords: 1, ProcessedRecords: 1, ResultPath: path}, nil
	})
	h.start(t)

	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeDownloadStyles})
	require.NoError(t, err)
	done := h.waitForStatus(t, tk.ID(), task.StatusCompleted)

	// Act
	path, err := h.eng.ResultPath(context.Background(), tk.ID())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "/api/tasks/"+tk.ID()+"/result", done.ResultURL())

	reader, err := h.eng.OpenArtifact(context.Background(), path)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(content), "ST-1")
}

func TestEngine_ResultPathRequiresCompletion(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.wire(task.TypeDownloadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		return nil, shared.NewError(shared.KindInternal, "export blew up")
	})
	h.start(t)

	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeDownloadStyles})
	require.NoError(t, err)
	h.waitForStatus(t, tk.ID(), task.StatusFailed)

	// Act
	_, err = h.eng.ResultPath(context.Background(), tk.ID())

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestEngine_WatchStreamsUntilTerminal(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.wire(task.TypeUploadStores, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		cmd.Runtime.Progress(ctx, 50, "halfway", 1)
		time.Sleep(50 * time.Millisecond)
		return &task.ExecutionResult{TotalRecords: 2, ProcessedRecords: 2}, nil
	})
	h.start(t)

	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStores})
	require.NoError(t, err)

	// Act
	stream, err := h.eng.Watch(context.Background(), tk.ID())
	require.NoError(t, err)

	var last *task.Task
	deadline := time.After(5 * time.Second)
loop:
	for {
		select {
		case snapshot, ok := <-stream:
			if !ok {
				break loop
			}
			last = snapshot
		case <-deadline:
			t.Fatal("watch stream never closed")
		}
	}

	// Assert - the stream ends on the terminal snapshot
	require.NotNil(t, last)
	assert.Equal(t, task.StatusCompleted, last.Status())
}

func TestEngine_WatchTerminalTaskClosesImmediately(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	done := task.New("file-upload-styles-done0001", task.TypeUploadStyles, "", "", nil, nil)
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete())
	require.NoError(t, h.tasks.Create(context.Background(), done))

	// Act
	stream, err := h.eng.Watch(context.Background(), done.ID())

	// Assert - one snapshot, then closed
	require.NoError(t, err)
	first, ok := <-stream
	require.True(t, ok)
	assert.Equal(t, task.StatusCompleted, first.Status())
	_, ok = <-stream
	assert.False(t, ok)
}

func TestEngine_CancelTerminalTaskIsNoop(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.wire(task.TypeUploadStyles, func(ctx context.Context, cmd *stubCommand) (*task.ExecutionResult, error) {
		return &task.ExecutionResult{}, nil
	})
	h.start(t)

	tk, err := h.eng.Submit(context.Background(), engine.SubmitRequest{Type: task.TypeUploadStyles})
	require.NoError(t, err)
	h.waitForStatus(t, tk.ID(), task.StatusCompleted)

	// Act
	err = h.eng.RequestCancel(context.Background(), tk.ID())

	// Assert
	require.NoError(t, err)
	current, err := h.tasks.FindByID(context.Background(), tk.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, current.Status())
	assert.False(t, current.CancellationRequested())
}

func TestEngine_CancelMissingTask(t *testing.T) {
	// Arrange
	h := newHarness(t, testConfig())
	h.start(t)

	// Act
	err := h.eng.RequestCancel(context.Background(), "missing")

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}
