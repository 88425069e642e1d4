// Copyright (c) 2024 Nate Bag

package group

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bvkgo/kv"
	"github.com/google/uuid"

	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/kvutil"
	"github.com/natebag/trenchtools/namer"
)

const Keyspace = "/groups/"

const configTypename = "group"

func configKey(uid string) string {
	return Keyspace + uid
}

func checkConfig(cfg *gobs.GroupConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("group name cannot be empty: %w", os.ErrInvalid)
	}
	if cfg.TokenMint == "" {
		return fmt.Errorf("group token mint cannot be empty: %w", os.ErrInvalid)
	}
	if cfg.NumWallets <= 0 {
		return fmt.Errorf("group wallet count must be positive: %w", os.ErrInvalid)
	}
	if cfg.FundingSOL.Sign() <= 0 {
		return fmt.Errorf("group funding amount must be positive: %w", os.ErrInvalid)
	}
	if cfg.MinSwapSOL.Sign() <= 0 || cfg.MaxSwapSOL.LessThan(cfg.MinSwapSOL) {
		return fmt.Errorf("group swap bounds are invalid: %w", os.ErrInvalid)
	}
	if cfg.MinInterval <= 0 || cfg.MaxInterval < cfg.MinInterval {
		return fmt.Errorf("group interval bounds are invalid: %w", os.ErrInvalid)
	}
	return nil
}

// CreateConfig validates and persists a new group config and returns its
// uid.
func (m *Manager) CreateConfig(ctx context.Context, cfg *gobs.GroupConfig) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	cfg.UID = uuid.New().String()
	cfg.CreatedAt = time.Now()

	save := func(ctx context.Context, rw kv.ReadWriter) error {
		if _, id, _, err := namer.Resolve(ctx, rw, cfg.Name); err == nil && id != "" {
			return fmt.Errorf("group name %q is already in use: %w", cfg.Name, os.ErrExist)
		}
		if err := namer.SetName(ctx, rw, cfg.Name, cfg.UID, configTypename); err != nil {
			return err
		}
		return kvutil.Set(ctx, rw, configKey(cfg.UID), cfg)
	}
	if err := kv.WithReadWriter(ctx, m.db, save); err != nil {
		return "", err
	}
	return cfg.UID, nil
}

// GetConfig loads a group config by uid or name.
func (m *Manager) GetConfig(ctx context.Context, arg string) (*gobs.GroupConfig, error) {
	uid := arg
	if _, id, _, err := namer.ResolveDB(ctx, m.db, arg); err == nil && id != "" {
		uid = id
	}
	cfg, err := kvutil.GetDB[gobs.GroupConfig](ctx, m.db, configKey(uid))
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", arg, err)
	}
	return cfg, nil
}

// ListConfigs returns every group config.
func (m *Manager) ListConfigs(ctx context.Context) ([]*gobs.GroupConfig, error) {
	var out []*gobs.GroupConfig
	begin, end := kvutil.PathRange(Keyspace)
	fn := func(ctx context.Context, r kv.Reader, k string, cfg *gobs.GroupConfig) error {
		out = append(out, cfg)
		return nil
	}
	if err := kvutil.AscendDB(ctx, m.db, begin, end, fn); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConfig edits the tunable fields of an idle group: swap bounds,
// interval bounds, funding amount and pattern. Identity fields (name, token,
// wallet count) are fixed at creation.
func (m *Manager) UpdateConfig(ctx context.Context, update *gobs.GroupConfig) error {
	rt := m.runtime(update.UID)
	if s := rt.State(); s != Idle {
		return fmt.Errorf("group %s is %s; config edits need an idle group", update.UID, s)
	}

	modify := func(ctx context.Context, rw kv.ReadWriter) error {
		cfg, err := kvutil.Get[gobs.GroupConfig](ctx, rw, configKey(update.UID))
		if err != nil {
			return err
		}
		cfg.FundingSOL = update.FundingSOL
		cfg.Pattern = update.Pattern
		cfg.MinSwapSOL = update.MinSwapSOL
		cfg.MaxSwapSOL = update.MaxSwapSOL
		cfg.MinInterval = update.MinInterval
		cfg.MaxInterval = update.MaxInterval
		cfg.StealthFunding = update.StealthFunding
		if err := checkConfig(cfg); err != nil {
			return err
		}
		return kvutil.Set(ctx, rw, configKey(update.UID), cfg)
	}
	return kv.WithReadWriter(ctx, m.db, modify)
}

// DeleteConfig removes an idle group with no orphan wallets.
func (m *Manager) DeleteConfig(ctx context.Context, uid string) error {
	rt := m.runtime(uid)
	if s := rt.State(); s != Idle {
		return fmt.Errorf("group %s is %s; delete needs an idle group", uid, s)
	}
	if n := len(rt.WalletIDs()); n != 0 {
		return fmt.Errorf("group %s holds %d orphan wallets; cleanup first", uid, n)
	}

	remove := func(ctx context.Context, rw kv.ReadWriter) error {
		cfg, err := kvutil.Get[gobs.GroupConfig](ctx, rw, configKey(uid))
		if err != nil {
			return err
		}
		if err := namer.Delete(ctx, rw, cfg.Name, cfg.UID); err != nil {
			return err
		}
		return rw.Delete(ctx, configKey(uid))
	}
	if err := kv.WithReadWriter(ctx, m.db, remove); err != nil {
		return err
	}
	m.runtimeMap.Delete(uid)
	return nil
}
