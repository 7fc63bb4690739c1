// Package pipeline provides the bounded worker pool, result accumulators and
// output writers used by the scraper.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Policy decides what a failed task does to the rest of the pool.
type Policy string

const (
	// PolicyAbort cancels the pool on the first task failure.
	PolicyAbort Policy = "abort"
	// PolicySkip records the failure and lets the other tasks continue.
	PolicySkip Policy = "skip"
)

// ErrPoolClosed is returned when Go is called after Wait.
var ErrPoolClosed = errors.New("pipeline: pool closed")

// Task is one unit of work. It receives the pool context, which is cancelled
// once another task fails under the abort policy.
type Task func(ctx context.Context) error

// Failure records a task that failed under the skip policy.
type Failure struct {
	Key string
	Err error
}

// Pool runs tasks on at most size goroutines.
type Pool struct {
	group  *errgroup.Group
	ctx    context.Context
	policy Policy

	mu       sync.Mutex // guards closed/failures
	closed   bool
	failures []Failure

	waitOnce sync.Once
	err      error
}

// NewPool builds a pool bounded to size concurrent tasks. Callers must call
// Wait on every exit path.
func NewPool(ctx context.Context, size int, policy Policy) *Pool {
	if size <= 0 {
		size = 1
	}
	if policy == "" {
		policy = PolicyAbort
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(size)

	return &Pool{
		group:  group,
		ctx:    groupCtx,
		policy: policy,
	}
}

// Go schedules task, blocking while the pool is full. key identifies the task
// in errors and logs.
func (p *Pool) Go(key string, task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.mu.Unlock()

	p.group.Go(func() error {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		err := task(p.ctx)
		if err == nil {
			return nil
		}
		if p.policy == PolicySkip && p.ctx.Err() == nil {
			p.addFailure(key, err)
			slog.Warn("task failed, skipping", slog.String("task", key), slog.Any("error", err))
			return nil
		}
		return fmt.Errorf("%s: %w", key, err)
	})
	return nil
}

// Wait blocks until every scheduled task has returned and closes the pool.
// Under the abort policy it returns the first task error.
func (p *Pool) Wait() error {
	p.waitOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.err = p.group.Wait()
	})
	return p.err
}

// Failures returns the tasks dropped under the skip policy.
func (p *Pool) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Failure, len(p.failures))
	copy(out, p.failures)
	return out
}

func (p *Pool) addFailure(key string, err error) {
	p.mu.Lock()
	p.failures = append(p.failures, Failure{Key: key, Err: err})
	p.mu.Unlock()
}
