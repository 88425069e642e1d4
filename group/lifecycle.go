// Copyright (c) 2024 Nate Bag

package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/natebag/trenchtools/ctxutil"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/vault"
)

// Start funds a fresh set of burner wallets for the group and arms one trade
// loop per wallet. Preconditions (unlocked vault, sufficient treasury
// balance) fail closed before any wallet is created; failures after wallet
// generation keep the partial set recorded for cleanup.
func (m *Manager) Start(ctx context.Context, uid string) (*Outcome, error) {
	cfg, err := m.GetConfig(ctx, uid)
	if err != nil {
		return nil, err
	}
	rt := m.runtime(cfg.UID)
	if err := rt.setStarting(); err != nil {
		return nil, err
	}

	out := new(Outcome)

	// Precondition failures leave prior state untouched.
	if m.vault.Locked() {
		rt.setIdle(nil, nil)
		return nil, fmt.Errorf("cannot start group %q: %w", cfg.Name, vault.ErrLocked)
	}
	treasury, err := m.treasury(ctx)
	if err != nil {
		rt.setIdle(nil, nil)
		return nil, fmt.Errorf("cannot start group %q: %w", cfg.Name, err)
	}
	balance, err := m.chain.Balance(ctx, treasury.Address)
	if err != nil {
		rt.setIdle(nil, nil)
		return nil, fmt.Errorf("could not read treasury balance: %w", err)
	}
	perWallet := solToLamports(cfg.FundingSOL) + m.opts.FundingFeeReserve
	required := uint64(cfg.NumWallets) * perWallet
	if balance < required {
		rt.setIdle(nil, nil)
		return nil, fmt.Errorf("treasury holds %s SOL but group %q needs %s SOL",
			lamportsToSOL(balance), cfg.Name, lamportsToSOL(required))
	}

	wallets, err := m.vault.Generate(ctx, cfg.NumWallets, cfg.Name, vault.Burner)
	if err != nil {
		rt.fail(walletIDs(wallets), err)
		m.saveSummary(ctx, rt)
		return nil, fmt.Errorf("could not generate wallets for group %q: %w", cfg.Name, err)
	}
	out.WalletsCreated = len(wallets)

	// Funding failures must not discard the generated set; it stays on
	// the runtime so cleanup can retire it.
	if err := m.fund(ctx, cfg, treasury, wallets); err != nil {
		rt.fail(walletIDs(wallets), err)
		m.saveSummary(ctx, rt)
		return out, fmt.Errorf("could not fund wallets for group %q: %w", cfg.Name, err)
	}
	out.WalletsFunded = len(wallets)

	if err := rt.setRunning(walletIDs(wallets)); err != nil {
		return out, err
	}
	for i, w := range wallets {
		signer, err := m.vault.Signer(ctx, w.ID)
		if err != nil {
			// The wallet stays in the runtime's accounting but
			// cannot trade without a signer.
			slog.Error("could not resolve signer; wallet excluded from trading", "group", cfg.Name, "wallet", w.ID, "err", err)
			out.addError(fmt.Errorf("wallet %s: %w", w.Name, err))
			continue
		}
		m.looper.Arm(ctx, cfg.UID, w.ID, signer, i)
		out.LoopsArmed++
	}
	m.saveSummary(ctx, rt)

	slog.Info("started group", "group", cfg.Name, "outcome", out)
	m.notify(cfg.Name, "start", out)
	return out, nil
}

func walletIDs(wallets []*vault.Wallet) []string {
	ids := make([]string, 0, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
	}
	return ids
}

// fund transfers the group's funding amount to every wallet: one atomic
// batched transfer by default, or one jittered transfer per wallet when
// stealth funding is enabled.
func (m *Manager) fund(ctx context.Context, cfg *gobs.GroupConfig, treasury *vault.Wallet, wallets []*vault.Wallet) error {
	signer, err := m.vault.Signer(ctx, treasury.ID)
	if err != nil {
		return fmt.Errorf("could not resolve treasury signer: %w", err)
	}
	amount := solToLamports(cfg.FundingSOL)

	if cfg.StealthFunding {
		for _, w := range wallets {
			sig, hw, err := m.chain.TransferBatch(ctx, signer, []solana.PublicKey{w.Address}, amount)
			if err != nil {
				return fmt.Errorf("could not fund wallet %s: %w", w.Name, err)
			}
			if err := m.chain.Confirm(ctx, sig, hw); err != nil {
				return fmt.Errorf("funding transfer for %s: %w", w.Name, err)
			}
			ctxutil.Sleep(ctx, time.Duration(rand.Int63n(int64(3*time.Second))))
		}
		return nil
	}

	recipients := make([]solana.PublicKey, 0, len(wallets))
	for _, w := range wallets {
		recipients = append(recipients, w.Address)
	}
	sig, hw, err := m.chain.TransferBatch(ctx, signer, recipients, amount)
	if err != nil {
		return err
	}
	return m.chain.Confirm(ctx, sig, hw)
}

// Stop cancels the group's trade loops, liquidates and retires its wallets
// and returns the group to idle, keeping any wallet that could not be
// verified empty.
func (m *Manager) Stop(ctx context.Context, uid string) (*Outcome, error) {
	cfg, err := m.GetConfig(ctx, uid)
	if err != nil {
		return nil, err
	}
	rt := m.runtime(cfg.UID)
	if err := rt.setStopping(); err != nil {
		return nil, err
	}

	// Loops are cancelled first, unconditionally, so no new trade can
	// start mid-teardown.
	m.looper.CancelGroup(cfg.UID)

	out := m.teardown(ctx, cfg, rt)
	slog.Info("stopped group", "group", cfg.Name, "outcome", out)
	m.notify(cfg.Name, "stop", out)
	return out, nil
}

// Cleanup runs the stop pipeline over an orphan wallet set that has no
// active loops, retrying a prior teardown that kept wallets.
func (m *Manager) Cleanup(ctx context.Context, uid string) (*Outcome, error) {
	cfg, err := m.GetConfig(ctx, uid)
	if err != nil {
		return nil, err
	}
	rt := m.runtime(cfg.UID)
	if len(rt.WalletIDs()) == 0 {
		return nil, fmt.Errorf("group %q has no orphan wallets", cfg.Name)
	}
	if err := rt.setStopping(); err != nil {
		return nil, err
	}

	out := m.teardown(ctx, cfg, rt)
	slog.Info("cleaned up group", "group", cfg.Name, "outcome", out)
	m.notify(cfg.Name, "cleanup", out)
	return out, nil
}

// Resume re-adopts orphan wallets matching the group's naming convention
// into a fresh runtime and re-arms their loops without re-funding.
func (m *Manager) Resume(ctx context.Context, uid string) (*Outcome, error) {
	cfg, err := m.GetConfig(ctx, uid)
	if err != nil {
		return nil, err
	}
	rt := m.runtime(cfg.UID)

	orphans, err := m.orphanWallets(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(orphans) == 0 {
		return nil, fmt.Errorf("group %q has no orphan wallets to resume", cfg.Name)
	}

	if err := rt.setResumed(walletIDs(orphans)); err != nil {
		return nil, err
	}

	out := new(Outcome)
	for i, w := range orphans {
		signer, err := m.vault.Signer(ctx, w.ID)
		if err != nil {
			slog.Error("could not resolve signer; wallet excluded from trading", "group", cfg.Name, "wallet", w.ID, "err", err)
			out.addError(fmt.Errorf("wallet %s: %w", w.Name, err))
			continue
		}
		m.looper.Arm(ctx, cfg.UID, w.ID, signer, i)
		out.LoopsArmed++
	}
	m.saveSummary(ctx, rt)

	slog.Info("resumed group", "group", cfg.Name, "outcome", out)
	m.notify(cfg.Name, "resume", out)
	return out, nil
}

// orphanWallets returns burner wallets named by the group's convention.
func (m *Manager) orphanWallets(ctx context.Context, cfg *gobs.GroupConfig) ([]*vault.Wallet, error) {
	wallets, err := m.vault.List(ctx)
	if err != nil {
		return nil, err
	}
	prefix := cfg.Name + "-W"
	var orphans []*vault.Wallet
	for _, w := range wallets {
		if w.Kind == vault.Burner && strings.HasPrefix(w.Name, prefix) {
			orphans = append(orphans, w)
		}
	}
	return orphans, nil
}

// teardown liquidates, verifies, sweeps and deletes the runtime's wallets.
// A wallet's key is deleted only when it is verified empty, not
// launch-protected and its SOL has been swept; everything else is kept.
func (m *Manager) teardown(ctx context.Context, cfg *gobs.GroupConfig, rt *Runtime) *Outcome {
	out := new(Outcome)

	treasury, terr := m.treasury(ctx)
	mint, merr := solana.PublicKeyFromBase58(cfg.TokenMint)
	if merr != nil {
		terr = errors.Join(terr, merr)
	}

	var kept []string
	var verified []*vault.Wallet

	for _, id := range rt.WalletIDs() {
		w, signer, err := m.walletSigner(ctx, id)
		if err != nil {
			out.addError(fmt.Errorf("wallet %s: %w", id, err))
			kept = append(kept, id)
			continue
		}

		if terr == nil {
			sold, err := m.engine.Liquidate(ctx, cfg, id, signer, m.opts.Dust)
			if err != nil {
				out.SellErrors++
				out.addError(fmt.Errorf("wallet %s: %w", w.Name, err))
			} else if sold > 0 {
				out.TokensSold++
			}
		}

		// Re-read the balance after liquidation. A verification
		// failure means the wallet is kept, never deleted.
		balance, err := m.chain.TokenBalance(ctx, w.Address, mint)
		if err != nil || balance > m.opts.Dust {
			if err != nil {
				out.addError(fmt.Errorf("wallet %s balance unverified: %w", w.Name, err))
			}
			kept = append(kept, id)
			continue
		}
		verified = append(verified, w)
	}

	deletable, protected := partitionSafety(ctx, verified, m.protector)
	out.WalletsProtected = len(protected)
	for _, w := range protected {
		kept = append(kept, w.ID)
	}

	var deleted []string
	for _, w := range deletable {
		if terr != nil {
			out.addError(fmt.Errorf("wallet %s not swept: %w", w.Name, terr))
			kept = append(kept, w.ID)
			continue
		}
		signer, err := m.vault.Signer(ctx, w.ID)
		if err != nil {
			kept = append(kept, w.ID)
			continue
		}
		if _, _, err := m.chain.Sweep(ctx, signer, treasury.Address); err != nil {
			out.SweepErrors++
			out.addError(fmt.Errorf("wallet %s: %w", w.Name, err))
			kept = append(kept, w.ID)
			continue
		}
		out.WalletsSwept++
		deleted = append(deleted, w.ID)
	}

	if len(deleted) != 0 {
		n, err := m.vault.Remove(ctx, deleted)
		out.WalletsDeleted = n
		if err != nil {
			out.addError(err)
			// Wallets that survived the partial remove are kept.
			kept = append(kept, deleted[n:]...)
		}
	}
	out.WalletsKept = len(kept)

	rt.setIdle(kept, out.Err())
	m.saveSummary(ctx, rt)
	return out
}

func (m *Manager) walletSigner(ctx context.Context, id string) (*vault.Wallet, solana.PrivateKey, error) {
	wallets, err := m.vault.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range wallets {
		if w.ID == id {
			signer, err := m.vault.Signer(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			return w, signer, nil
		}
	}
	return nil, nil, fmt.Errorf("wallet %s is not in the vault: %w", id, os.ErrNotExist)
}
