// Copyright (c) 2024 Nate Bag

package group

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/trader"
)

type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Failed:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Runtime is the live state of one group. All mutation goes through the
// transition methods; an invalid transition is an error, never a silent
// overwrite.
type Runtime struct {
	uid string

	mu sync.Mutex

	state State

	// walletIDs are the wallets owned by this run. Non-empty while Idle
	// means the group holds orphans awaiting cleanup.
	walletIDs []string

	numTrades int64
	volume    decimal.Decimal

	startedAt time.Time

	lastErr error
}

func newRuntime(uid string) *Runtime {
	return &Runtime{uid: uid}
}

func (rt *Runtime) transitionErr(to State) error {
	return fmt.Errorf("group %s cannot transition from %s to %s", rt.uid, rt.state, to)
}

// setStarting begins a start. Only an idle group with no orphans can start;
// orphans must go through resume or cleanup first.
func (rt *Runtime) setStarting() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state != Idle && rt.state != Failed {
		return rt.transitionErr(Starting)
	}
	if len(rt.walletIDs) != 0 {
		return fmt.Errorf("group %s holds %d orphan wallets; resume or cleanup first", rt.uid, len(rt.walletIDs))
	}
	rt.state = Starting
	rt.lastErr = nil
	return nil
}

// setRunning completes a start or a resume with the wallet set owned by the
// run.
func (rt *Runtime) setRunning(walletIDs []string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state != Starting {
		return rt.transitionErr(Running)
	}
	rt.state = Running
	rt.walletIDs = slices.Clone(walletIDs)
	rt.numTrades = 0
	rt.volume = decimal.Zero
	rt.startedAt = time.Now()
	return nil
}

// setStopping begins a teardown: stop from Running, cleanup from
// idle-with-orphans.
func (rt *Runtime) setStopping() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	switch {
	case rt.state == Running || rt.state == Failed:
	case rt.state == Idle && len(rt.walletIDs) != 0:
	default:
		return rt.transitionErr(Stopping)
	}
	rt.state = Stopping
	return nil
}

// setIdle ends a teardown, carrying forward the kept wallets as orphans.
func (rt *Runtime) setIdle(kept []string, lastErr error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.state = Idle
	rt.walletIDs = slices.Clone(kept)
	rt.lastErr = lastErr
}

// fail marks an unrecoverable failure. The wallet set is retained, never
// silently discarded, so a partially started group can still be cleaned up.
func (rt *Runtime) fail(walletIDs []string, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.state = Failed
	if len(walletIDs) != 0 {
		rt.walletIDs = slices.Clone(walletIDs)
	}
	rt.lastErr = err
}

// setResumed adopts orphan wallets directly into Running, re-arming a group
// whose runtime was lost to a restart. Cumulative stats carry over.
func (rt *Runtime) setResumed(walletIDs []string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state != Idle {
		return rt.transitionErr(Running)
	}
	rt.state = Running
	rt.walletIDs = slices.Clone(walletIDs)
	rt.startedAt = time.Now()
	rt.lastErr = nil
	return nil
}

// adoptOrphans records wallets discovered after a restart on an idle group.
func (rt *Runtime) adoptOrphans(walletIDs []string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.state != Idle {
		return rt.transitionErr(Idle)
	}
	rt.walletIDs = slices.Clone(walletIDs)
	return nil
}

func (rt *Runtime) recordTrade(r *trader.Result) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.numTrades++
	rt.volume = rt.volume.Add(lamportsToSOL(r.SolLamports))
}

func (rt *Runtime) State() State {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.state
}

func (rt *Runtime) WalletIDs() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.walletIDs)
}

// Summary renders the runtime into its persistable form.
func (rt *Runtime) Summary() *gobs.GroupSummary {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s := &gobs.GroupSummary{
		UID:       rt.uid,
		Status:    rt.state.String(),
		WalletIDs: slices.Clone(rt.walletIDs),
		NumTrades: rt.numTrades,
		VolumeSOL: rt.volume,
		StartedAt: rt.startedAt,
	}
	if rt.state == Idle && len(rt.walletIDs) != 0 {
		s.Status = "IDLE-WITH-ORPHANS"
	}
	if rt.lastErr != nil {
		s.LastError = rt.lastErr.Error()
	}
	return s
}
