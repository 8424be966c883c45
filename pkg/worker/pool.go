// Package worker provides a bounded worker pool. The pipeline fans batch
// queries out through it, and the API server uses it to record answers off
// the request path.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Handler processes one job. Returned errors are logged and counted; callers
// that need them collect them inside the handler.
type Handler[J any] func(ctx context.Context, job J) error

// Config is the configuration options for the worker pool.
type Config[J any] struct {
	// Handler runs every job. Required.
	Handler Handler[J]

	// NumWorkers is the number of workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Name labels the pool in log lines.
	Name string

	Logger *slog.Logger
}

// Pool processes jobs on a fixed set of goroutines.
type Pool[J any] struct {
	config *Config[J]
	ctx    context.Context
	queue  chan J
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed; senders hold it shared so Close never closes the
	// queue under them.
	mu     sync.RWMutex
	closed bool

	failedMu sync.Mutex
	failed   int
}

// NewPool creates a pool and starts its worker goroutines. Jobs run with ctx.
func NewPool[J any](ctx context.Context, c *Config[J]) (*Pool[J], error) {
	if c.Handler == nil {
		return nil, fmt.Errorf("worker pool requires a handler")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Name == "" {
		c.Name = "worker"
	}

	wp := &Pool[J]{
		config: c,
		ctx:    ctx,
		queue:  make(chan J, c.QueueSize),
		logger: c.Logger.With("pool", c.Name),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job without blocking. It returns false, dropping the job,
// when the queue is full or the pool is closed.
func (p *Pool[J]) Enqueue(job J) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped")
		return false
	}
}

// Submit blocks until job is queued or ctx is done. Workers keep draining
// while Submit waits, so it cannot hold up Close indefinitely.
func (p *Pool[J]) Submit(ctx context.Context, job J) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("worker pool %s is closed", p.config.Name)
	}

	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued jobs to drain.
func (p *Pool[J]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Failed returns how many jobs returned an error.
func (p *Pool[J]) Failed() int {
	p.failedMu.Lock()
	defer p.failedMu.Unlock()
	return p.failed
}

func (p *Pool[J]) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		if err := p.config.Handler(p.ctx, job); err != nil {
			p.failedMu.Lock()
			p.failed++
			p.failedMu.Unlock()
			p.logger.Debug("job failed", "worker_id", id, "error", err)
		}
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}
