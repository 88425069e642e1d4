// Copyright (c) 2024 Nate Bag

package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPause(t *testing.T) {
	ctx := context.Background()
	jobf := func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	if j1.State() != RUNNING {
		t.Fatalf("j1 must be running")
	}
	j1.Pause()
	j1.Wait()
	if j1.State() != PAUSED {
		t.Fatalf("j1 must be paused")
	}
	if !errors.Is(j1.Err(), errPause) {
		t.Fatalf("want errPause, got %v", j1.Err())
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	jobf := func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	if j1.State() != RUNNING {
		t.Fatalf("j1 must be running")
	}
	j1.Cancel()
	j1.Wait()
	if j1.State() != CANCELED {
		t.Fatalf("j1 must be canceled")
	}
	if !errors.Is(j1.Err(), errCancel) {
		t.Fatalf("want errCancel, got %v", j1.Err())
	}
}

func TestFailed(t *testing.T) {
	ctx := context.Background()
	ch := make(chan error)
	jobf := func(ctx context.Context) error {
		return <-ch
	}
	j1 := Run(jobf, ctx)
	if j1.State() != RUNNING {
		t.Fatalf("j1 must be running")
	}
	errFailure := errors.New("operation failed")
	go func() { ch <- errFailure; close(ch) }()
	j1.Wait()
	if j1.State() != FAILED {
		t.Fatalf("j1 must have failed")
	}
	if !errors.Is(j1.Err(), errFailure) {
		t.Fatalf("want errFailure, got %v", j1.Err())
	}
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	ch := make(chan struct{})
	jobf := func(ctx context.Context) error {
		<-ch
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	if j1.State() != RUNNING {
		t.Fatalf("j1 must be running")
	}
	go func() { close(ch) }()
	j1.Wait()
	if j1.State() != COMPLETED {
		t.Fatalf("j1 must be complete, got %v (%v)", j1.State(), j1.Err())
	}
	if err := j1.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelWaits(t *testing.T) {
	ctx := context.Background()
	var running atomic.Bool
	jobf := func(ctx context.Context) error {
		running.Store(true)
		defer running.Store(false)
		<-ctx.Done()
		// Simulate an in-flight operation finishing after cancellation.
		time.Sleep(50 * time.Millisecond)
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	for !running.Load() {
		time.Sleep(time.Millisecond)
	}
	j1.Cancel()
	if running.Load() {
		t.Fatalf("Cancel returned while the job function was still running")
	}
	if j1.State() != CANCELED {
		t.Fatalf("j1 must be canceled, got %v", j1.State())
	}
}

func TestPauseWaits(t *testing.T) {
	ctx := context.Background()
	var running atomic.Bool
	jobf := func(ctx context.Context) error {
		running.Store(true)
		defer running.Store(false)
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	for !running.Load() {
		time.Sleep(time.Millisecond)
	}
	j1.Pause()
	if running.Load() {
		t.Fatalf("Pause returned while the job function was still running")
	}
	if j1.State() != PAUSED {
		t.Fatalf("j1 must be paused, got %v", j1.State())
	}
}
