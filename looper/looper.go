// Copyright (c) 2024 Nate Bag

// Package looper keeps one independently-timed trade loop alive per (group,
// wallet) pair. Loops are armed with staggered delays, guard against
// reentrant ticks and re-read the group config on every tick so idle-time
// edits apply on the next reschedule.
package looper

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/natebag/trenchtools/ctxutil"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/job"
	"github.com/natebag/trenchtools/syncmap"
	"github.com/natebag/trenchtools/trader"
)

const (
	// staggerStep spaces out the initial delays of a group's loops. The
	// per-loop jitter stays below one step so delays strictly increase
	// with the wallet index.
	staggerStep = 2 * time.Second

	// configRetryInterval paces ticks whose config read failed.
	configRetryInterval = 5 * time.Second
)

// Key identifies one trade loop.
type Key struct {
	GroupID  string
	WalletID string
}

// Trader performs one trade attempt. Satisfied by *trader.Engine.
type Trader interface {
	TradeOnce(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, requireBuyFirst bool) (*trader.Result, error)
}

// ConfigFunc returns the current config of a group. Called at the top of
// every tick, never cached by the loop.
type ConfigFunc func(groupID string) (*gobs.GroupConfig, error)

type Scheduler struct {
	trader Trader

	config ConfigFunc

	// onTrade, when set, receives every successful trade.
	onTrade func(groupID string, r *trader.Result)

	loopMap syncmap.Map[Key, *Loop]
}

func NewScheduler(t Trader, config ConfigFunc) *Scheduler {
	return &Scheduler{trader: t, config: config}
}

// OnTrade installs the successful-trade callback. Must be called before any
// loop is armed.
func (s *Scheduler) OnTrade(fn func(groupID string, r *trader.Result)) {
	s.onTrade = fn
}

// staggerDelay returns the initial delay for the index'th loop of a group.
func staggerDelay(index int) time.Duration {
	return time.Duration(index)*staggerStep + time.Duration(rand.Int63n(int64(staggerStep)))
}

// Arm starts a loop for the wallet. An existing loop for the same key is
// left alone.
func (s *Scheduler) Arm(ctx context.Context, groupID, walletID string, signer solana.PrivateKey, index int) {
	l := &Loop{
		key:          Key{GroupID: groupID, WalletID: walletID},
		signer:       signer,
		sched:        s,
		initialDelay: staggerDelay(index),
		wakeCh:       make(chan struct{}, 1),
	}
	l.requireBuyFirst.Store(true)
	l.lastTrade.Store(time.Now().UnixNano())

	if _, loaded := s.loopMap.LoadOrStore(l.key, l); loaded {
		slog.Warn("loop is already armed", "group", groupID, "wallet", walletID)
		return
	}
	l.job = job.Run(l.run, ctx)
	slog.Info("armed trade loop", "group", groupID, "wallet", walletID, "initial-delay", l.initialDelay)
}

// Cancel stops the wallet's loop and clears its state. Idempotent.
func (s *Scheduler) Cancel(groupID, walletID string) {
	key := Key{GroupID: groupID, WalletID: walletID}
	l, loaded := s.loopMap.LoadAndDelete(key)
	if !loaded {
		return
	}
	l.job.Cancel()
	slog.Info("cancelled trade loop", "group", groupID, "wallet", walletID)
}

// CancelGroup stops every loop belonging to the group and returns the number
// of loops cancelled.
func (s *Scheduler) CancelGroup(groupID string) int {
	var n int
	for _, key := range s.loopMap.Keys() {
		if key.GroupID != groupID {
			continue
		}
		s.Cancel(key.GroupID, key.WalletID)
		n++
	}
	return n
}

// Active returns the wallet ids with a live loop in the group.
func (s *Scheduler) Active(groupID string) []string {
	var ids []string
	for _, key := range s.loopMap.Keys() {
		if key.GroupID == groupID {
			ids = append(ids, key.WalletID)
		}
	}
	return ids
}

// Loop owns the per-wallet execution state. Only the loop's own goroutine
// mutates requireBuyFirst; the executing flag and lastTrade are shared with
// the watchdog.
type Loop struct {
	key Key

	signer solana.PrivateKey

	sched *Scheduler

	initialDelay time.Duration

	executing       atomic.Bool
	requireBuyFirst atomic.Bool
	lastTrade       atomic.Int64 // unix nanos

	// wakeCh interrupts the between-ticks sleep when the watchdog re-arms
	// a stalled loop.
	wakeCh chan struct{}

	job *job.Job
}

func (l *Loop) run(ctx context.Context) error {
	ctxutil.Sleep(ctx, l.initialDelay)
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}

	for ctx.Err() == nil {
		cfg, err := l.sched.config(l.key.GroupID)
		if err != nil {
			slog.Error("could not read group config (will retry)", "group", l.key.GroupID, "wallet", l.key.WalletID, "err", err)
			l.sleep(ctx, configRetryInterval)
			continue
		}

		l.tick(ctx, cfg)
		l.sleep(ctx, tickDelay(cfg))
	}
	return context.Cause(ctx)
}

// tickDelay samples the next delay from the group's interval bounds.
func tickDelay(cfg *gobs.GroupConfig) time.Duration {
	min, max := cfg.MinInterval, cfg.MaxInterval
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func (l *Loop) tick(ctx context.Context, cfg *gobs.GroupConfig) {
	if !l.executing.CompareAndSwap(false, true) {
		return
	}
	defer l.executing.Store(false)

	r, err := l.sched.trader.TradeOnce(ctx, cfg, l.key.WalletID, l.signer, l.requireBuyFirst.Load())
	l.lastTrade.Store(time.Now().UnixNano())
	if err != nil {
		// Trade failures are local to this attempt; the loop
		// reschedules regardless.
		slog.Warn("trade attempt failed", "group", l.key.GroupID, "wallet", l.key.WalletID, "err", err)
		return
	}

	if r.Side == "BUY" {
		l.requireBuyFirst.Store(false)
	}
	slog.Info("trade executed", "group", l.key.GroupID, "wallet", l.key.WalletID, "side", r.Side, "venue", r.Venue, "lamports", r.SolLamports, "signature", r.Signature)
	if l.sched.onTrade != nil {
		l.sched.onTrade(l.key.GroupID, r)
	}
}

// sleep waits out the given delay, returning early on cancellation. A
// watchdog wake replaces the remaining delay with a short randomized one.
func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	case <-l.wakeCh:
		ctxutil.Sleep(ctx, time.Duration(rand.Int63n(int64(2*time.Second))))
	}
}

// wake interrupts the loop's pending sleep. Non-blocking.
func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}
