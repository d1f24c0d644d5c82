// Package scheduler runs a task once, after a delay. Jobs can be canceled
// before they fire; an optional notification channel reports completion.
// The heating controller uses it for boost expiry timers.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// A Task is executed by a Job once its delay has passed.
type Task interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a function to the Task interface.
type RunFunc func(ctx context.Context) error

func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// Schedule runs task after delay, unless the job is canceled, or ctx expires,
// first. If notify is not nil, the job is sent on it after the task ran.
func Schedule(ctx context.Context, task Task, delay time.Duration, notify chan<- struct{}) *Job {
	subCtx, cancel := context.WithCancel(ctx)
	j := Job{
		task:   task,
		due:    time.Now().Add(delay),
		cancel: cancel,
		notify: notify,
	}
	go j.run(subCtx, delay)
	return &j
}

// A Job is a scheduled, cancellable task.
type Job struct {
	task   Task
	due    time.Time
	cancel context.CancelFunc
	notify chan<- struct{}
	state  state
	err    error
	lock   sync.RWMutex
}

func (j *Job) run(ctx context.Context, delay time.Duration) {
	j.setState(stateScheduled, nil)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		j.setState(stateCanceled, nil)
	case <-timer.C:
		if err := j.task.Run(ctx); err != nil {
			j.setState(stateFailed, err)
		} else {
			j.setState(stateCompleted, nil)
		}
		if j.notify != nil {
			j.notify <- struct{}{}
		}
	}
}

// Cancel stops the job. Canceling a job that already ran is a no-op.
func (j *Job) Cancel() {
	j.cancel()
}

// Due returns the time the job is (or was) scheduled to run.
func (j *Job) Due() time.Time {
	return j.due
}

// Done reports whether the job ran, was canceled, or failed, and with what error.
func (j *Job) Done() (bool, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.state.done(), j.err
}

func (j *Job) setState(s state, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	// a canceled job stays canceled
	if j.state == stateCanceled && s != stateCanceled {
		return
	}
	j.state = s
	j.err = err
}

type state int

const (
	statePending state = iota
	stateScheduled
	stateCanceled
	stateCompleted
	stateFailed
)

func (s state) done() bool {
	return s == stateCompleted || s == stateFailed || s == stateCanceled
}
