// Copyright (c) 2024 Nate Bag

package looper

import (
	"context"
	"log/slog"
	"time"

	"github.com/natebag/trenchtools/ctxutil"
)

const (
	watchdogInterval = 30 * time.Second

	// stallFloor is the minimum gap before a loop counts as stalled, so
	// groups with very short intervals don't trip on ordinary jitter.
	stallFloor = time.Minute
)

// Watchdog repairs loops that stopped ticking, typically after the host was
// suspended. A loop merely waiting out a long legitimate interval is left
// alone: the stall threshold is twice the group's maximum interval.
type Watchdog struct {
	sched *Scheduler

	cg ctxutil.CloseGroup
}

func NewWatchdog(sched *Scheduler) *Watchdog {
	return &Watchdog{sched: sched}
}

func (w *Watchdog) Start(ctx context.Context) {
	w.cg.Go(func(ctx context.Context) {
		for {
			ctxutil.Sleep(ctx, watchdogInterval)
			if ctx.Err() != nil {
				return
			}
			w.CheckStalls(time.Now())
		}
	})
}

func (w *Watchdog) Close() {
	w.cg.Close()
}

// CheckStalls wakes every stalled loop and returns the number woken.
func (w *Watchdog) CheckStalls(now time.Time) int {
	var woken int
	w.sched.loopMap.Range(func(key Key, l *Loop) bool {
		cfg, err := w.sched.config(key.GroupID)
		if err != nil {
			return true
		}
		threshold := 2 * cfg.MaxInterval
		if threshold < stallFloor {
			threshold = stallFloor
		}
		gap := now.Sub(time.Unix(0, l.lastTrade.Load()))
		if gap <= threshold || l.executing.Load() {
			return true
		}
		slog.Warn("trade loop stalled; re-arming", "group", key.GroupID, "wallet", key.WalletID, "gap", gap)
		l.wake()
		woken++
		return true
	})
	return woken
}
