package worker

import (
	"context"
	"log"
	"sync"
)

// Task is a unit of blocking work, typically one provider request.
type Task interface {
	Run(ctx context.Context) (string, error)
}

// ResultCallback is invoked on task completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(text string, err error)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx  context.Context
	task Task
	cb   ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				text, err := runWithContext(j.ctx, j.task)
				log.Printf("Worker: task completed, text length=%d, err=%v", len(text), err)
				j.cb(text, err)
			}
		}()
	}
}

// Submit enqueues a task if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, task Task, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, task: task, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// runWithContext returns as soon as ctx is done even if the task ignores it.
func runWithContext(ctx context.Context, task Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, ok := ctx.Deadline(); !ok {
		return task.Run(ctx)
	}
	resCh := make(chan struct {
		text string
		err  error
	}, 1)
	go func() {
		text, err := task.Run(ctx)
		resCh <- struct {
			text string
			err  error
		}{text, err}
	}()
	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		// The task keeps running in the background; its result is dropped.
		return "", ctx.Err()
	}
}
