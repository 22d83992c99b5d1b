// Package pool provides a shared worker pool built on ants.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrPoolOverload is returned when a nonblocking pool is full.
	ErrPoolOverload = errors.New("pool: overloaded")
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity is the maximum number of concurrent goroutines.
	Capacity int
	// ExpiryDuration is how long an idle worker is kept alive.
	ExpiryDuration time.Duration
	// PreAlloc preallocates worker memory.
	PreAlloc bool
	// Nonblocking makes Submit return ErrPoolOverload when the pool is
	// full instead of waiting.
	Nonblocking bool
	// MaxBlockingTasks caps queued tasks when Nonblocking is false,
	// 0 means unlimited.
	MaxBlockingTasks int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() *Config {
	return &Config{
		Capacity:       256,
		ExpiryDuration: 10 * time.Second,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name   string
	pool   *ants.Pool
	stats  *statsCounter
	closed atomic.Bool
	mu     sync.Mutex
}

type statsCounter struct {
	Submitted atomic.Int64
	Completed atomic.Int64
	Rejected  atomic.Int64
	Panics    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Submitted int64
	Completed int64
	Rejected  int64
	Panics    int64
}

// New creates a new worker pool with the given configuration.
func New(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pool{
		name:  name,
		stats: &statsCounter{},
	}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.stats.Panics.Add(1)
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}),
	}

	inner, err := ants.NewPool(config.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	p.pool = inner

	logger.Infow("Worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Running returns the number of running workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free returns the number of available workers.
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Submit submits a task to the pool.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.stats.Submitted.Add(1)
	err := p.pool.Submit(func() {
		defer p.stats.Completed.Add(1)
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.Rejected.Add(1)
			return ErrPoolOverload
		}
		return err
	}
	return nil
}

// Go runs the task on the pool, falling back to a plain goroutine when
// the pool rejects it. The task always runs.
func (p *Pool) Go(task func()) {
	if err := p.Submit(task); err != nil {
		logger.Warnw("Pool submit failed, running task in goroutine", "pool", p.name, "error", err)
		go task()
	}
}

// SubmitWithContext submits a task that is skipped when the context is
// already cancelled at execution time.
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.Submit(func() {
		select {
		case <-ctx.Done():
			return
		default:
			task()
		}
	})
}

// Release closes the pool and releases resources.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout closes the pool, waiting up to timeout for running
// tasks to finish.
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats returns a snapshot of pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.stats.Submitted.Load(),
		Completed: p.stats.Completed.Load(),
		Rejected:  p.stats.Rejected.Load(),
		Panics:    p.stats.Panics.Load(),
	}
}
