// Package pool bounds how many extractor calls run concurrently for one
// orchestration request. It holds no domain knowledge: callers hand it a
// function, it runs the function once a slot is free.
package pool

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = eris.New("worker pool is closed")

// Pool is a bounded, FIFO-fair worker pool. Slot acquisition goes through a
// weighted semaphore, which services waiters in arrival order, so no
// submission can starve.
type Pool struct {
	sem    *semaphore.Weighted
	max    int64
	closed atomic.Bool

	running   atomic.Int64
	completed atomic.Int64
}

// New creates a pool with maxConcurrent slots. Values below 1 are treated as 1.
func New(maxConcurrent int) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
		max: int64(maxConcurrent),
	}
}

// Run blocks until a slot frees (or ctx is done), then executes fn on the
// calling goroutine. The slot is released when fn returns.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context)) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return eris.Wrap(err, "pool: acquire slot")
	}
	// Re-check after the wait so a Close that raced the acquire still wins.
	if p.closed.Load() {
		p.sem.Release(1)
		return ErrClosed
	}

	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.completed.Add(1)
		p.sem.Release(1)
	}()

	fn(ctx)
	return nil
}

// Counters reports how many tasks are in flight and how many have completed.
func (p *Pool) Counters() (running, completed int64) {
	return p.running.Load(), p.completed.Load()
}

// Close rejects new submissions and drains in-flight tasks before returning.
// Returns ctx's error if the drain is abandoned early.
func (p *Pool) Close(ctx context.Context) error {
	p.closed.Store(true)
	if err := p.sem.Acquire(ctx, p.max); err != nil {
		return eris.Wrap(err, "pool: drain")
	}
	p.sem.Release(p.max)
	return nil
}
