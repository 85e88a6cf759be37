// Package shutdownqueue is a process-wide LIFO queue of cleanup tasks.
//
// Components register tasks via Add as they start; main drains the queue
// once, with a timeout, on the way out:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	err := shutdownqueue.Shutdown(ctx)
//
// Tasks run in reverse registration order, panics are recovered, and errors
// are aggregated with errors.Join. Shutdown is idempotent.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is one cleanup step. It should honor ctx.
type Task func(ctx context.Context) error

var q = struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}{}

// Add registers a task, LIFO order. Nil tasks and tasks added after shutdown
// has started are ignored.
func Add(t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, t)
}

// Shutdown drains registered tasks in LIFO order. If ctx ends mid-drain the
// remaining tasks are skipped and the context error is included in the
// joined result. Subsequent calls are no-ops.
func Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed && len(q.tasks) == 0 {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled: %w", ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := runTask(ctx, tasks[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task: %v", r)
		}
	}()

	return t(ctx)
}
