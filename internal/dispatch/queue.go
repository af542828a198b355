// Package dispatch delivers emails and push events in the background.
//
// Request handlers never talk to SendGrid or Pusher directly. They enqueue a
// task on the Queue and return; a fixed pool of workers runs the tasks, each
// under its own timeout, and logs the outcome. A failed delivery never rolls
// back the database change that triggered it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

var (
	// ErrQueueFull is returned when the buffer is full. The task is dropped.
	ErrQueueFull = errors.New("dispatch: queue is full")
	// ErrQueueClosed is returned for tasks enqueued after Stop.
	ErrQueueClosed = errors.New("dispatch: queue is closed")
)

// Task is one unit of background work.
type Task struct {
	ID   string
	Kind string // "email", "push"
	Run  func(ctx context.Context) error
}

// Queue is a buffered channel drained by a fixed set of workers.
type Queue struct {
	tasks   chan Task
	workers int
	timeout time.Duration
	logger  *slog.Logger

	// mu guards closed so Enqueue never sends on a closed channel.
	mu     sync.RWMutex
	closed bool

	// runCtx is canceled when Stop gives up waiting, aborting in-flight tasks.
	runCtx    context.Context
	cancelRun context.CancelFunc

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a queue with the given worker count, buffer size and
// per-task timeout. Call Start before enqueueing.
func NewQueue(workers, buffer int, timeout time.Duration, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		tasks:     make(chan Task, buffer),
		workers:   workers,
		timeout:   timeout,
		logger:    logger,
		runCtx:    ctx,
		cancelRun: cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.logger.Info("starting dispatch queue",
			slog.Int("workers", q.workers),
			slog.Int("buffer", cap(q.tasks)),
		)
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// Enqueue schedules run without blocking and returns the task id.
func (q *Queue) Enqueue(kind string, run func(ctx context.Context) error) (string, error) {
	task := Task{ID: xid.New().String(), Kind: kind, Run: run}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return "", ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return task.ID, nil
	default:
		q.logger.Warn("dispatch queue full, dropping task",
			slog.String("task_id", task.ID),
			slog.String("kind", kind),
		)
		return "", ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for the workers to drain what is
// already buffered. If ctx expires first, in-flight tasks are canceled and
// ctx.Err() is returned.
func (q *Queue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
	})

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		q.cancelRun()
		q.logger.Info("dispatch queue drained",
			slog.Int64("succeeded", q.succeeded.Load()),
			slog.Int64("failed", q.failed.Load()),
		)
		return nil
	case <-ctx.Done():
		q.cancelRun()
		q.logger.Warn("dispatch queue stop timed out", slog.Int("pending", len(q.tasks)))
		return ctx.Err()
	}
}

// Stats returns the number of tasks that succeeded and failed so far.
func (q *Queue) Stats() (succeeded, failed int64) {
	return q.succeeded.Load(), q.failed.Load()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for task := range q.tasks {
		q.run(task)
	}
}

func (q *Queue) run(task Task) {
	ctx := q.runCtx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeRun(ctx, task.Run)

	attrs := []any{
		slog.String("task_id", task.ID),
		slog.String("kind", task.Kind),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		q.failed.Add(1)
		q.logger.Error("dispatch task failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	q.succeeded.Add(1)
	q.logger.Debug("dispatch task done", attrs...)
}

// safeRun turns a panicking task into an error so one bad task cannot take
// a worker down.
func safeRun(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: task panicked: %v", r)
		}
	}()
	return run(ctx)
}
