package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskNames(n int) []string {
	tasks := make([]string, n)
	for i := range tasks {
		tasks[i] = fmt.Sprintf("Provider.%03d", i)
	}
	return tasks
}

func TestRunResultsAlignedWithTasks(t *testing.T) {
	tasks := taskNames(50)
	results := Run(context.Background(), tasks, Options{Workers: 7}, func(_ context.Context, task string) (string, error) {
		return "done:" + task, nil
	})

	require.Len(t, results, len(tasks))
	for i, r := range results {
		assert.Equal(t, tasks[i], r.Task)
		assert.Equal(t, "done:"+tasks[i], r.Value)
		assert.NoError(t, r.Err)
	}
}

func TestRunNeverExceedsWorkerCap(t *testing.T) {
	for _, tc := range []struct{ tasks, workers int }{
		{100, 5}, {25, 25}, {300, 25}, {3, 10},
	} {
		t.Run(fmt.Sprintf("%d tasks %d workers", tc.tasks, tc.workers), func(t *testing.T) {
			var inFlight, peak atomic.Int32
			Run(context.Background(), taskNames(tc.tasks), Options{Workers: tc.workers}, func(context.Context, string) (int, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return 0, nil
			})

			assert.LessOrEqual(t, int(peak.Load()), tc.workers)
			assert.Positive(t, peak.Load())
		})
	}
}

func TestRunFailuresAreIsolated(t *testing.T) {
	boom := errors.New("boom")
	results := Run(context.Background(), []string{"a", "b", "c"}, Options{Workers: 2}, func(_ context.Context, task string) (int, error) {
		if task == "b" {
			return 0, boom
		}
		return len(task), nil
	})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
}

func TestRunRecoversPanics(t *testing.T) {
	results := Run(context.Background(), []string{"ok", "bad"}, Options{}, func(_ context.Context, task string) (int, error) {
		if task == "bad" {
			panic("unexpected response shape")
		}
		return 1, nil
	})

	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "unexpected response shape")
}

func TestRunPerTaskTimeout(t *testing.T) {
	start := time.Now()
	results := Run(context.Background(), []string{"stuck", "fast"}, Options{Workers: 1, Timeout: 20 * time.Millisecond},
		func(ctx context.Context, task string) (int, error) {
			if task == "stuck" {
				<-ctx.Done()
				return 0, ctx.Err()
			}
			return 1, nil
		})

	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.NoError(t, results[1].Err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunReportsProgress(t *testing.T) {
	var calls []int
	Run(context.Background(), taskNames(10), Options{Workers: 3, OnDone: func(done, total int) {
		assert.Equal(t, 10, total)
		calls = append(calls, done)
	}}, func(context.Context, string) (int, error) { return 0, nil })

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, calls)
}

func TestRunEmpty(t *testing.T) {
	results := Run(context.Background(), nil, Options{}, func(context.Context, string) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	assert.Empty(t, results)
}
