// Package worker runs background tasks with an observable error channel,
// so nothing launched from a request path fails silently.
package worker

import (
	"context"
	"fmt"
	"sync"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskError pairs a failed task with its error.
type TaskError struct {
	Name string
	Err  error
}

// Pool executes submitted tasks on a fixed set of workers. Failures are
// delivered on Errors; the submitter does not wait for completion.
type Pool struct {
	workers int
	tasks   chan Task
	errs    chan TaskError
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given worker count and queue depth.
func NewPool(workers, queue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = workers
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, queue),
		errs:    make(chan TaskError, queue),
	}
}

// Start launches the workers. They drain the queue until Close is called
// or ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					p.run(ctx, t)
				}
			}
		}()
	}
}

func (p *Pool) run(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.report(TaskError{Name: t.Name, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := t.Run(ctx); err != nil {
		p.report(TaskError{Name: t.Name, Err: err})
	}
}

func (p *Pool) report(te TaskError) {
	select {
	case p.errs <- te:
	default:
		// error channel full; the consumer is behind, drop rather than block ingestion
	}
}

// Submit enqueues a task. It returns false when the queue is full or the
// pool is closed, so callers can surface back-pressure instead of
// blocking a request path.
func (p *Pool) Submit(t Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- t:
		return true
	default:
		return false
	}
}

// Errors exposes task failures for logging or alerting.
func (p *Pool) Errors() <-chan TaskError { return p.errs }

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
