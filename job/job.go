// Copyright (c) 2024 Nate Bag

// Package job implements a cancelable activity running in a background
// goroutine. Jobs are stopped through their context: pausing and canceling
// are distinguished by the cancellation cause, so the job function can
// return context.Cause(ctx) and the final state is derived from it.
package job

import (
	"context"
	"errors"
	"sync"
)

type State string

const (
	PAUSED    State = "PAUSED"
	RUNNING   State = "RUNNING"
	COMPLETED State = "COMPLETED"
	CANCELED  State = "CANCELED"
	FAILED    State = "FAILED"
)

// IsDone returns true for states that cannot transition any further.
func IsDone(s State) bool {
	return s == COMPLETED || s == CANCELED || s == FAILED
}

var (
	errPause  = errors.New("job is paused")
	errCancel = errors.New("job is canceled")
)

type Func func(ctx context.Context) error

type Job struct {
	cancel context.CancelCauseFunc

	wg sync.WaitGroup

	mu sync.Mutex

	status State
	err    error
}

// Run starts the given function in a background goroutine. The function is
// expected to return context.Cause(ctx) when its context is canceled.
func Run(f Func, ctx context.Context) *Job {
	jctx, jcancel := context.WithCancelCause(ctx)
	j := &Job{
		cancel: jcancel,
		status: RUNNING,
	}
	j.wg.Add(1)
	go j.goRun(jctx, f)
	return j
}

func (j *Job) goRun(ctx context.Context, f Func) {
	defer j.wg.Done()

	err := f(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	switch {
	case err == nil:
		j.status = COMPLETED
	case errors.Is(err, errPause):
		j.status = PAUSED
	case errors.Is(err, errCancel):
		j.status = CANCELED
	default:
		j.status = FAILED
	}
}

// Pause stops the job in a resumable manner. Returns after the job function
// has returned.
func (j *Job) Pause() {
	defer j.wg.Wait()
	j.cancel(errPause)
}

// Cancel stops the job permanently. Returns after the job function has
// returned.
func (j *Job) Cancel() {
	defer j.wg.Wait()
	j.cancel(errCancel)
}

// Wait blocks till the job function has returned.
func (j *Job) Wait() {
	j.wg.Wait()
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the job function's return value after it has stopped.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
