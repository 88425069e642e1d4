// Copyright (c) 2024 Nate Bag

// Package group implements bot group lifecycle: persisted configs, live
// runtimes and the start / stop / resume / cleanup transitions that fund
// burner wallets, run their trade loops and later retire them without losing
// funds or keys.
package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bvkgo/kv"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/kvutil"
	"github.com/natebag/trenchtools/syncmap"
	"github.com/natebag/trenchtools/trader"
	"github.com/natebag/trenchtools/vault"
)

const summaryKeyspace = "/summaries/"

// Chain lists the on-chain operations the lifecycle manager needs.
// Satisfied by *chain.Client.
type Chain interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
	TransferBatch(ctx context.Context, from solana.PrivateKey, recipients []solana.PublicKey, lamports uint64) (solana.Signature, *chain.HashWindow, error)
	Confirm(ctx context.Context, sig solana.Signature, hw *chain.HashWindow) error
	Sweep(ctx context.Context, from solana.PrivateKey, to solana.PublicKey) (uint64, solana.Signature, error)
}

// Liquidator sells a wallet's token holdings down to the dust threshold.
// Satisfied by *trader.Engine.
type Liquidator interface {
	Liquidate(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, dust uint64) (uint64, error)
}

// Looper arms and cancels per-wallet trade loops. Satisfied by
// *looper.Scheduler.
type Looper interface {
	Arm(ctx context.Context, groupID, walletID string, signer solana.PrivateKey, index int)
	CancelGroup(groupID string) int
	Active(groupID string) []string
}

type Options struct {
	// Dust is the raw token balance treated as effectively zero when
	// verifying a wallet is empty.
	Dust uint64

	// FundingFeeReserve is added per wallet to the treasury balance
	// precondition to cover transfer fees and rent.
	FundingFeeReserve uint64
}

func (v *Options) setDefaults() {
	if v.Dust == 0 {
		v.Dust = 1000
	}
	if v.FundingFeeReserve == 0 {
		v.FundingFeeReserve = 1_000_000
	}
}

type Manager struct {
	opts Options

	db kv.Database

	vault vault.Vault

	chain Chain

	engine Liquidator

	looper Looper

	protector Protector

	// onOutcome, when set, receives every lifecycle outcome for operator
	// notification.
	onOutcome func(name, op string, out *Outcome)

	runtimeMap syncmap.Map[string, *Runtime]
}

func NewManager(db kv.Database, vlt vault.Vault, c Chain, engine Liquidator, lp Looper, p Protector, opts *Options) *Manager {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()
	return &Manager{
		opts:      v,
		db:        db,
		vault:     vlt,
		chain:     c,
		engine:    engine,
		looper:    lp,
		protector: p,
	}
}

// OnOutcome installs the lifecycle notification callback.
func (m *Manager) OnOutcome(fn func(name, op string, out *Outcome)) {
	m.onOutcome = fn
}

// Outcome reports the counts of a lifecycle operation. Partial success is
// the common case, so callers get counts plus retained error strings rather
// than a boolean.
type Outcome struct {
	WalletsCreated int
	WalletsFunded  int
	LoopsArmed     int

	TokensSold int
	SellErrors int

	WalletsSwept int
	SweepErrors  int

	WalletsDeleted   int
	WalletsProtected int
	WalletsKept      int

	Errors []string
}

func (o *Outcome) addError(err error) {
	o.Errors = append(o.Errors, err.Error())
}

// Err returns the most recent retained error, or nil.
func (o *Outcome) Err() error {
	if len(o.Errors) == 0 {
		return nil
	}
	return errors.New(o.Errors[len(o.Errors)-1])
}

func (o *Outcome) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "created=%d funded=%d armed=%d sold=%d sell-errors=%d swept=%d sweep-errors=%d deleted=%d protected=%d kept=%d",
		o.WalletsCreated, o.WalletsFunded, o.LoopsArmed, o.TokensSold, o.SellErrors, o.WalletsSwept, o.SweepErrors, o.WalletsDeleted, o.WalletsProtected, o.WalletsKept)
	for _, e := range o.Errors {
		fmt.Fprintf(&sb, "; %s", e)
	}
	return sb.String()
}

func lamportsToSOL(v uint64) decimal.Decimal {
	return decimal.NewFromUint64(v).Div(decimal.NewFromInt(chain.LamportsPerSOL))
}

func solToLamports(v decimal.Decimal) uint64 {
	return uint64(v.Mul(decimal.NewFromInt(chain.LamportsPerSOL)).IntPart())
}

// runtime returns the live runtime for a group uid, creating an idle one if
// none exists.
func (m *Manager) runtime(uid string) *Runtime {
	rt, _ := m.runtimeMap.LoadOrStore(uid, newRuntime(uid))
	return rt
}

// RecordTrade folds a successful trade into the group's cumulative stats.
// Wired as the scheduler's OnTrade callback.
func (m *Manager) RecordTrade(groupID string, r *trader.Result) {
	m.runtime(groupID).recordTrade(r)
}

// Summary returns the group's live runtime summary.
func (m *Manager) Summary(ctx context.Context, uid string) *gobs.GroupSummary {
	return m.runtime(uid).Summary()
}

// saveSummary persists the runtime summary so a restarted daemon can render
// prior state and find orphans.
func (m *Manager) saveSummary(ctx context.Context, rt *Runtime) {
	s := rt.Summary()
	if err := kvutil.SetDB(ctx, m.db, summaryKeyspace+s.UID, s); err != nil {
		slog.Error("could not save group summary", "group", s.UID, "err", err)
	}
}

// LoadSummaries restores persisted summaries into idle runtimes with their
// orphan wallet sets. Called once on daemon startup.
func (m *Manager) LoadSummaries(ctx context.Context) error {
	begin, end := kvutil.PathRange(summaryKeyspace)
	fn := func(ctx context.Context, r kv.Reader, k string, s *gobs.GroupSummary) error {
		rt := m.runtime(s.UID)
		if len(s.WalletIDs) != 0 {
			if err := rt.adoptOrphans(s.WalletIDs); err != nil {
				return err
			}
		}
		return nil
	}
	return kvutil.AscendDB(ctx, m.db, begin, end, fn)
}

// treasury returns the primary wallet funding burner wallets.
func (m *Manager) treasury(ctx context.Context) (*vault.Wallet, error) {
	wallets, err := m.vault.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if w.Kind == vault.Primary {
			return w, nil
		}
	}
	return nil, fmt.Errorf("vault has no primary wallet: %w", os.ErrNotExist)
}

func (m *Manager) notify(name, op string, out *Outcome) {
	if m.onOutcome != nil {
		m.onOutcome(name, op, out)
	}
}
