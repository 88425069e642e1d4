// Copyright (c) 2024 Nate Bag

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/ctxutil"
	"github.com/natebag/trenchtools/group"
	"github.com/natebag/trenchtools/vault"
)

func lamportsToSOL(v uint64) decimal.Decimal {
	return decimal.NewFromUint64(v).Div(decimal.NewFromInt(chain.LamportsPerSOL))
}

// treasuryAlertFreeze is how long repeat low-treasury alerts stay silenced
// after one was sent.
const treasuryAlertFreeze = time.Hour

func (s *Server) SendMessage(ctx context.Context, at time.Time, format string, args ...any) {
	if s.telegramClient == nil {
		return
	}
	if err := s.telegramClient.SendMessage(ctx, at, fmt.Sprintf(format, args...)); err != nil {
		slog.Warn("could not send telegram message (ignored)", "err", err)
	}
}

// notifyOutcome forwards lifecycle outcomes to the operator. Wired as the
// group manager's OnOutcome callback.
func (s *Server) notifyOutcome(name, op string, out *group.Outcome) {
	s.SendMessage(s.ctx, time.Now(), "group %q %s: %s", name, op, out.String())
}

func (s *Server) watchTreasury(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.checkTreasury(ctx); err != nil {
			slog.Warn("could not check treasury balance (will retry)", "err", err)
		}
		ctxutil.Sleep(ctx, s.opts.TreasuryCheckInterval)
	}
}

func (s *Server) checkTreasury(ctx context.Context) error {
	ws, err := s.vault.List(ctx)
	if err != nil {
		return err
	}
	for _, w := range ws {
		if w.Kind != vault.Primary {
			continue
		}
		lamports, err := s.chain.Balance(ctx, w.Address)
		if err != nil {
			return err
		}
		s.alertOnLowTreasury(ctx, w.Name, lamports)
		return nil
	}
	return nil
}

func (s *Server) alertOnLowTreasury(ctx context.Context, name string, lamports uint64) {
	balance := lamportsToSOL(lamports)
	if balance.GreaterThan(s.opts.TreasuryAlertSOL) {
		return
	}

	now := time.Now()
	s.mu.Lock()
	frozen := now.Before(s.treasuryAlertDeadline)
	if !frozen {
		s.treasuryAlertDeadline = now.Add(treasuryAlertFreeze)
	}
	s.mu.Unlock()
	if frozen {
		return
	}

	s.SendMessage(ctx, now, "Treasury wallet %q balance %s SOL is below the %s SOL limit.",
		name, balance.StringFixed(4), s.opts.TreasuryAlertSOL.StringFixed(4))
}

func (s *Server) statusTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)
	cfgs, err := s.manager.ListConfigs(ctx)
	if err != nil {
		return err
	}
	if len(cfgs) == 0 {
		fmt.Fprintln(stdout, "no bot groups")
		return nil
	}
	for _, cfg := range cfgs {
		sum := s.manager.Summary(ctx, cfg.UID)
		fmt.Fprintf(stdout, "%s: %s trades=%d volume=%s SOL\n",
			cfg.Name, sum.Status, sum.NumTrades, sum.VolumeSOL.StringFixed(4))
	}
	return nil
}
