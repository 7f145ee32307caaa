// Package pool runs keyed tasks with a fixed cap on concurrency.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/aliasmap/pkg/constants"
)

// Options configures a Run.
type Options struct {
	// Workers caps how many tasks are in flight. Defaults to 25.
	Workers int
	// Timeout bounds each task through its context. Zero disables it.
	Timeout time.Duration
	// OnDone is called after each task finishes. Calls are serialized.
	OnDone func(done, total int)
}

// Result is the outcome of one task.
type Result[T any] struct {
	Task  string
	Value T
	Err   error
}

// Run calls fn once per task with at most opts.Workers calls in flight and
// returns one result per task at the task's index. A failing task never
// stops the others; a panic in fn becomes that task's error.
func Run[T any](ctx context.Context, tasks []string, opts Options, fn func(ctx context.Context, task string) (T, error)) []Result[T] {
	workers := opts.Workers
	if workers <= 0 {
		workers = constants.DefaultWorkers
	}

	results := make([]Result[T], len(tasks))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(workers)

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = runOne(ctx, task, opts.Timeout, fn)
			if opts.OnDone != nil {
				mu.Lock()
				done++
				opts.OnDone(done, len(tasks))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runOne[T any](ctx context.Context, task string, timeout time.Duration, fn func(context.Context, string) (T, error)) (res Result[T]) {
	res.Task = task
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", task, r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res.Value, res.Err = fn(ctx, task)
	return res
}
