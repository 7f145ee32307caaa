package builder

import (
	"context"
	"time"

	"github.com/agentstation/aliasmap/pkg/errors"
)

// TaskState is where a FetchTask is in its lifecycle.
type TaskState string

// Fetch task states.
const (
	TaskPending   TaskState = "pending"
	TaskRetrying  TaskState = "retrying"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// FetchTask tracks the attempts made for one remote call.
// Provider is empty for the provider enumeration call.
type FetchTask struct {
	Provider string
	Attempt  int
	State    TaskState
	Err      error
}

// Name identifies the task in logs.
func (t *FetchTask) Name() string {
	if t.Provider == "" {
		return "provider list"
	}
	return t.Provider
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer so no goroutine spins while backing off.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attemptFunc performs one attempt of a task.
type attemptFunc func(ctx context.Context) error

// run drives t from pending to succeeded or failed. Each attempt gets its
// own deadline; an attempt that hits it is a transient timeout.
func (b *Builder) run(ctx context.Context, t *FetchTask, call attemptFunc) error {
	t.State = TaskPending
	log := b.logger.With().Str("task", t.Name()).Logger()

	for {
		t.Attempt++
		err := b.attempt(ctx, t, call)
		if err == nil {
			t.State, t.Err = TaskSucceeded, nil
			b.metrics.FetchAttempt("success")
			return nil
		}
		t.Err = err

		if ctx.Err() != nil {
			t.State = TaskFailed
			t.Err = errors.Join(errors.ErrCanceled, err)
			b.metrics.FetchAttempt("canceled")
			return t.Err
		}

		decision := b.policy.Next(t.Attempt, err)
		if !decision.Retry {
			t.State = TaskFailed
			b.metrics.FetchAttempt("failed")
			return err
		}

		t.State = TaskRetrying
		b.metrics.FetchAttempt("retry")
		log.Debug().
			Err(err).
			Int("attempt", t.Attempt).
			Dur("delay", decision.Delay).
			Msg("Retrying after transient failure")

		if err := b.sleep(ctx, decision.Delay); err != nil {
			t.State = TaskFailed
			b.metrics.FetchAttempt("canceled")
			t.Err = errors.Join(errors.ErrCanceled, t.Err)
			return t.Err
		}
	}
}

func (b *Builder) attempt(ctx context.Context, t *FetchTask, call attemptFunc) error {
	actx := ctx
	if b.admit != nil {
		admitted, err := b.admit(ctx)
		if err != nil {
			return err
		}
		actx = admitted
	}
	if b.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, b.attemptTimeout)
		defer cancel()
	}

	err := call(actx)
	if err != nil && ctx.Err() == nil && actx.Err() == context.DeadlineExceeded && !errors.IsTimeout(err) {
		return errors.NewTimeoutError("fetch "+t.Name(), b.attemptTimeout.String(), err.Error())
	}
	return err
}
