// Copyright (c) 2024 Nate Bag

package looper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/job"
	"github.com/natebag/trenchtools/trader"
)

type fakeTrader struct {
	inflight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *fakeTrader) TradeOnce(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, requireBuyFirst bool) (*trader.Result, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if n <= max || f.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.calls.Add(1)
	return &trader.Result{Side: "BUY"}, nil
}

func fastConfig(groupID string) (*gobs.GroupConfig, error) {
	return &gobs.GroupConfig{
		UID:         groupID,
		MinInterval: time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
	}, nil
}

func TestStaggeredDelays(t *testing.T) {
	prev := time.Duration(-1)
	for i := 0; i < 10; i++ {
		d := staggerDelay(i)
		if d <= prev {
			t.Fatalf("delay for index %d is %v, not above %v", i, d, prev)
		}
		prev = d
	}
}

func TestSingleInFlight(t *testing.T) {
	ft := new(fakeTrader)
	s := NewScheduler(ft, fastConfig)

	l := &Loop{
		key:    Key{GroupID: "g1", WalletID: "w1"},
		sched:  s,
		wakeCh: make(chan struct{}, 1),
	}
	l.requireBuyFirst.Store(true)
	l.job = job.Run(l.run, context.Background())

	// Hammer the tick entry point concurrently with the loop's own ticks;
	// the execution flag must keep at most one trade in flight.
	cfg, _ := fastConfig("g1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			l.tick(context.Background(), cfg)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	<-done
	l.job.Cancel()

	if max := ft.maxSeen.Load(); max != 1 {
		t.Fatalf("observed %d concurrent trades for one wallet", max)
	}
	if calls := ft.calls.Load(); calls < 3 {
		t.Fatalf("only %d trades executed", calls)
	}
}

func TestCancelIdempotent(t *testing.T) {
	ft := new(fakeTrader)
	s := NewScheduler(ft, fastConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer := solana.NewWallet().PrivateKey
	s.Arm(ctx, "g1", "w1", signer, 0)
	s.Arm(ctx, "g1", "w2", signer, 1)
	s.Arm(ctx, "g2", "w1", signer, 0)

	if ids := s.Active("g1"); len(ids) != 2 {
		t.Fatalf("group g1 has %d active loops, want 2", len(ids))
	}

	s.Cancel("g1", "w1")
	s.Cancel("g1", "w1") // no-op
	if ids := s.Active("g1"); len(ids) != 1 || ids[0] != "w2" {
		t.Fatalf("unexpected active loops after cancel: %v", ids)
	}

	if n := s.CancelGroup("g1"); n != 1 {
		t.Fatalf("cancelled %d loops, want 1", n)
	}
	if ids := s.Active("g2"); len(ids) != 1 {
		t.Fatalf("other group's loops were cancelled")
	}
	s.CancelGroup("g2")
}

func TestWatchdog(t *testing.T) {
	ft := new(fakeTrader)
	s := NewScheduler(ft, fastConfig)
	w := NewWatchdog(s)

	l := &Loop{
		key:    Key{GroupID: "g1", WalletID: "w1"},
		sched:  s,
		wakeCh: make(chan struct{}, 1),
	}
	now := time.Now()
	l.lastTrade.Store(now.UnixNano())
	s.loopMap.Store(l.key, l)

	// A recent trade is not a stall.
	if n := w.CheckStalls(now); n != 0 {
		t.Fatalf("fresh loop reported stalled")
	}

	// Past the threshold the loop is woken.
	l.lastTrade.Store(now.Add(-2 * time.Minute).UnixNano())
	if n := w.CheckStalls(now); n != 1 {
		t.Fatalf("stalled loop not detected")
	}
	select {
	case <-l.wakeCh:
	default:
		t.Fatalf("stalled loop did not receive a wake signal")
	}

	// An executing loop is never considered stalled.
	l.executing.Store(true)
	if n := w.CheckStalls(now); n != 0 {
		t.Fatalf("executing loop reported stalled")
	}
}

func TestRunExitsOnCancel(t *testing.T) {
	ft := new(fakeTrader)
	s := NewScheduler(ft, fastConfig)
	l := &Loop{
		key:          Key{GroupID: "g1", WalletID: "w1"},
		sched:        s,
		initialDelay: time.Hour,
		wakeCh:       make(chan struct{}, 1),
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.run(ctx) }()

	cancelErr := errors.New("loop canceled")
	cancel(cancelErr)
	select {
	case err := <-done:
		if !errors.Is(err, cancelErr) {
			t.Fatalf("run returned %v, want %v", err, cancelErr)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not return after cancellation")
	}
	if n := ft.calls.Load(); n != 0 {
		t.Fatalf("canceled loop executed %d trades", n)
	}
}

func TestWatchdogClose(t *testing.T) {
	w := NewWatchdog(NewScheduler(new(fakeTrader), fastConfig))
	w.Start(context.Background())

	done := make(chan struct{})
	go func() { w.Close(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("watchdog did not stop after Close")
	}
}
