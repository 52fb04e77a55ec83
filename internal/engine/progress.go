package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/retailcore/noos-go/internal/domain/task"
)

// progressSink is the task.Runtime handed to handlers. Progress ticks
// coalesce in memory and flush to storage asynchronously, so a handler
// never blocks on persistence; the repository ignores ticks that arrive
// after the terminal write.
type progressSink struct {
	taskID    string
	repo      task.Repository
	logger    zerolog.Logger
	limiter   *rate.Limiter
	delta     float64
	cancelled func(ctx context.Context) error

	// One flusher goroutine drains flushCh so persisted ticks never
	// overtake each other; the channel holds at most one pending signal
	// because the flusher always writes the latest coalesced values.
	flushCh chan struct{}
	done    chan struct{}

	mu          sync.Mutex
	closed      bool
	pct         float64
	message     string
	processed   int
	lastFlushed float64
}

func newProgressSink(taskID string, repo task.Repository, logger zerolog.Logger, cfg Config) *progressSink {
	interval := cfg.ProgressFlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	delta := cfg.ProgressFlushDelta
	if delta <= 0 {
		delta = 5
	}
	s := &progressSink{
		taskID:  taskID,
		repo:    repo,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		delta:   delta,
		flushCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

func (s *progressSink) TaskID() string {
	return s.taskID
}

// Progress records a tick and flushes it when it moved at least the delta
// since the last flush or the flush interval elapsed. Regressions are
// clamped to the current value; messages always take the latest text.
func (s *progressSink) Progress(ctx context.Context, percentage float64, message string, processedRecords int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if percentage > s.pct {
		s.pct = percentage
	}
	if message != "" {
		s.message = message
	}
	if processedRecords > s.processed {
		s.processed = processedRecords
	}

	if s.pct-s.lastFlushed < s.delta && !s.limiter.Allow() {
		return
	}
	s.lastFlushed = s.pct
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

// flushLoop persists flush signals one at a time, reading the latest
// coalesced values at write time so a stalled write can only be followed
// by an equal or higher tick
func (s *progressSink) flushLoop() {
	defer close(s.done)
	for range s.flushCh {
		pct, msg, processed := s.snapshot()

		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.repo.UpdateProgress(fctx, s.taskID, pct, msg, processed)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", s.taskID).Msg("failed to persist progress tick")
		}
	}
}

func (s *progressSink) CheckCancelled(ctx context.Context) error {
	if s.cancelled == nil {
		return nil
	}
	return s.cancelled(ctx)
}

// close stops further flushes and waits for the flusher to drain, so the
// owning worker's synchronous terminal write cannot race a pending tick
func (s *progressSink) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.flushCh)
	s.mu.Unlock()
	<-s.done
}

// snapshot returns the latest coalesced values for the terminal write
func (s *progressSink) snapshot() (float64, string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pct, s.message, s.processed
}
