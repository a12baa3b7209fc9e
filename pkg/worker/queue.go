// Package worker runs domain operations one at a time on a dedicated goroutine,
// so services can read-check-write their tables without locks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("worker queue is closed")

// DefaultTimeout bounds both waiting for the queue and waiting for the result.
const DefaultTimeout = 2 * time.Second

// job wraps one unit of work together with the channel that carries its outcome.
type job struct {
	run   func(context.Context) error
	reply chan error
}

// Queue owns the goroutine that executes jobs sequentially.
type Queue struct {
	name    string
	timeout time.Duration
	jobs    chan job
	quit    chan struct{}
	done    chan struct{}
}

// New starts the goroutine immediately so callers only ever block on their own job.
func New(name string) *Queue {
	q := &Queue{
		name:    name,
		timeout: DefaultTimeout,
		jobs:    make(chan job),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.loop()
	return q
}

// WithTimeout changes the enqueue and reply timeouts; zero keeps the default.
func (q *Queue) WithTimeout(d time.Duration) *Queue {
	if d > 0 {
		q.timeout = d
	}
	return q
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		select {
		case j := <-q.jobs:
			j.reply <- j.run(context.Background())
		case <-q.quit:
			return
		}
	}
}

// Do submits fn and waits for it to finish. The job still completes if the caller gives up
// waiting, so fn must not depend on the caller's context being alive.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{run: fn, reply: make(chan error, 1)}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrClosed
	case <-time.After(q.timeout):
		return fmt.Errorf("%s queue is busy", q.name)
	}

	select {
	case err := <-j.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(q.timeout):
		return fmt.Errorf("%s request timed out", q.name)
	}
}

// Close stops the goroutine once the running job, if any, has finished.
func (q *Queue) Close() {
	select {
	case <-q.quit:
		return
	default:
	}
	close(q.quit)
	<-q.done
}
