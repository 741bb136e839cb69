// Package scheduler admits generation work into a bounded FIFO queue served
// by a fixed pool of workers. Requests beyond the queue capacity are
// rejected immediately so the server degrades by refusing work instead of
// buffering without bound.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kilnserve/kiln/internal/logger"
)

var (
	// ErrQueueFull reports that the admission queue is at capacity.
	ErrQueueFull = errors.New("request queue is full")

	// ErrStopped reports that the scheduler shut down before the task ran.
	ErrStopped = errors.New("scheduler stopped")
)

// Task is one unit of queued work. It runs on a worker goroutine with the
// submitter's context. The alias keeps Submit assignable to caller-side
// interfaces declared over the plain function type.
type Task = func(ctx context.Context) error

type job struct {
	ctx  context.Context
	fn   Task
	err  error
	done chan struct{}
}

// Config sizes the pool. Zero values fall back to one worker and an
// eight-deep queue.
type Config struct {
	Workers   int
	QueueSize int
}

// Scheduler owns the queue and the worker pool. Create it with New, run the
// workers with Run, and feed it with Submit.
type Scheduler struct {
	queue   chan *job
	workers int
	log     logger.Logger
	stopc   chan struct{}
	active  atomic.Int64
}

func New(log logger.Logger, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	return &Scheduler{
		queue:   make(chan *job, cfg.QueueSize),
		workers: cfg.Workers,
		log:     log,
		stopc:   make(chan struct{}),
	}
}

// Run blocks serving queued tasks until ctx is cancelled, then releases any
// submitters still waiting. It always returns nil on a clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "workers", s.workers, "queue_size", cap(s.queue))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			s.work(ctx)
			return nil
		})
	}
	err := g.Wait()
	close(s.stopc)
	s.log.Info("scheduler stopped")
	return err
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			// A request abandoned while queued never reaches the model.
			if err := j.ctx.Err(); err != nil {
				j.err = err
				close(j.done)
				continue
			}
			s.active.Add(1)
			j.err = j.fn(j.ctx)
			s.active.Add(-1)
			close(j.done)
		}
	}
}

// Submit enqueues fn and blocks until it finishes, returning its error. If
// the queue is full the task is rejected with ErrQueueFull without blocking.
func (s *Scheduler) Submit(ctx context.Context, fn Task) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case s.queue <- j:
	default:
		return ErrQueueFull
	}
	select {
	case <-j.done:
		return j.err
	case <-s.stopc:
		return ErrStopped
	}
}

// Queued reports how many tasks are waiting for a worker.
func (s *Scheduler) Queued() int { return len(s.queue) }

// Active reports how many tasks are currently running.
func (s *Scheduler) Active() int { return int(s.active.Load()) }
