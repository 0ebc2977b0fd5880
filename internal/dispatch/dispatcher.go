// Package dispatch runs fire-and-forget work off the caller's goroutine.
//
// Callers never wait for a task to finish; a failed task is reported to the
// logger and dropped. There is no retry.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the pending queue has no room
	ErrQueueFull = errors.New("dispatch queue full")
	// ErrClosed is returned after Close has been called
	ErrClosed = errors.New("dispatcher closed")
)

// Task is one unit of best-effort work
type Task func(ctx context.Context) error

type job struct {
	name string
	run  Task
}

// Config controls a Dispatcher
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Logger      *zap.Logger
}

// Dispatcher executes tasks on a fixed pool of workers
type Dispatcher struct {
	queue   chan job
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts a dispatcher. Zero values default to 1 worker, a 64 slot queue and a 10s task timeout.
func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:   make(chan job, cfg.QueueSize),
		timeout: cfg.TaskTimeout,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch queues a task without blocking
func (d *Dispatcher) Dispatch(name string, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- job{name: name, run: task}:
		return nil
	default:
		d.logger.Warn("Dropping task, dispatch queue full", zap.String("task", name))
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued ones until ctx is done.
// Tasks still running when ctx expires see their context cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Task panicked",
				zap.String("task", j.name),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	if err := j.run(ctx); err != nil {
		d.logger.Warn("Task failed",
			zap.String("task", j.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("Task completed",
		zap.String("task", j.name),
		zap.Duration("duration", time.Since(start)),
	)
}
