package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of blocking work (SMTP, image blending, sentiment calls)
// moved off the caller's goroutine.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of workers. Submit returns a channel that
// yields the task's error exactly once.
type Pool struct {
	tasks  chan job
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// NewPool starts size workers.
func NewPool(size int, logger zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		tasks:  make(chan job, size*4),
		logger: logger.With().Str("component", "worker_pool").Logger(),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.tasks {
		err := j.task(j.ctx)
		if err != nil {
			p.logger.Warn().Err(err).Msg("task failed")
		}
		j.done <- err
		close(j.done)
	}
}

// Submit queues a task and returns its completion channel.
func (p *Pool) Submit(ctx context.Context, task Task) (<-chan error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	done := make(chan error, 1)
	p.tasks <- job{ctx: ctx, task: task, done: done}
	return done, nil
}

// Run queues a task and blocks until it completes or ctx is cancelled.
func (p *Pool) Run(ctx context.Context, task Task) error {
	done, err := p.Submit(ctx, task)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for in-flight ones.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
