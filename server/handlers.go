// Copyright (c) 2024 Nate Bag

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/group"
	"github.com/natebag/trenchtools/vault"
)

func apiOutcome(out *group.Outcome) *api.Outcome {
	if out == nil {
		return nil
	}
	return &api.Outcome{
		WalletsCreated: out.WalletsCreated,
		WalletsFunded:  out.WalletsFunded,
		LoopsArmed:     out.LoopsArmed,

		TokensSold: out.TokensSold,
		SellErrors: out.SellErrors,

		WalletsSwept: out.WalletsSwept,
		SweepErrors:  out.SweepErrors,

		WalletsDeleted:   out.WalletsDeleted,
		WalletsProtected: out.WalletsProtected,
		WalletsKept:      out.WalletsKept,

		Errors: out.Errors,
	}
}

func (s *Server) doGroupCreate(ctx context.Context, req *api.GroupCreateRequest) (*api.GroupCreateResponse, error) {
	cfg := &gobs.GroupConfig{
		UID:  uuid.New().String(),
		Name: req.Name,

		TokenMint:  req.TokenMint,
		NumWallets: req.NumWallets,
		FundingSOL: req.FundingSOL,
		Pattern:    req.Pattern,

		MinSwapSOL: req.MinSwapSOL,
		MaxSwapSOL: req.MaxSwapSOL,

		MinInterval: req.MinInterval,
		MaxInterval: req.MaxInterval,

		StealthFunding: req.StealthFunding,

		CreatedAt: time.Now(),
	}
	uid, err := s.manager.CreateConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &api.GroupCreateResponse{UID: uid}, nil
}

func (s *Server) doGroupUpdate(ctx context.Context, req *api.GroupUpdateRequest) (*api.GroupUpdateResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}

	// Zero valued fields keep their current setting.
	if !req.FundingSOL.IsZero() {
		cfg.FundingSOL = req.FundingSOL
	}
	if len(req.Pattern) != 0 {
		cfg.Pattern = req.Pattern
	}
	if !req.MinSwapSOL.IsZero() {
		cfg.MinSwapSOL = req.MinSwapSOL
	}
	if !req.MaxSwapSOL.IsZero() {
		cfg.MaxSwapSOL = req.MaxSwapSOL
	}
	if req.MinInterval != 0 {
		cfg.MinInterval = req.MinInterval
	}
	if req.MaxInterval != 0 {
		cfg.MaxInterval = req.MaxInterval
	}
	cfg.StealthFunding = req.StealthFunding

	if err := s.manager.UpdateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return &api.GroupUpdateResponse{UID: cfg.UID}, nil
}

func (s *Server) doGroupDelete(ctx context.Context, req *api.GroupDeleteRequest) (*api.GroupDeleteResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	if err := s.manager.DeleteConfig(ctx, cfg.UID); err != nil {
		return nil, err
	}
	return &api.GroupDeleteResponse{UID: cfg.UID}, nil
}

func (s *Server) doGroupList(ctx context.Context, req *api.GroupListRequest) (*api.GroupListResponse, error) {
	cfgs, err := s.manager.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.GroupListResponse)
	for _, cfg := range cfgs {
		sum := s.manager.Summary(ctx, cfg.UID)
		resp.Groups = append(resp.Groups, &api.GroupListResponseItem{
			UID:  cfg.UID,
			Name: cfg.Name,

			TokenMint:  cfg.TokenMint,
			NumWallets: cfg.NumWallets,

			Status: sum.Status,

			NumTrades: sum.NumTrades,
			VolumeSOL: sum.VolumeSOL,
		})
	}
	return resp, nil
}

func (s *Server) doGroupStatus(ctx context.Context, req *api.GroupStatusRequest) (*api.GroupStatusResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	sum := s.manager.Summary(ctx, cfg.UID)
	return &api.GroupStatusResponse{
		UID:  cfg.UID,
		Name: cfg.Name,

		Status: sum.Status,

		WalletIDs: sum.WalletIDs,

		NumTrades: sum.NumTrades,
		VolumeSOL: sum.VolumeSOL,

		StartedAt: sum.StartedAt,

		LastError: sum.LastError,
	}, nil
}

func (s *Server) doGroupStart(ctx context.Context, req *api.GroupStartRequest) (*api.GroupStartResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	out, err := s.manager.Start(s.ctx, cfg.UID)
	if err != nil {
		return nil, err
	}
	return &api.GroupStartResponse{UID: cfg.UID, Outcome: apiOutcome(out)}, nil
}

func (s *Server) doGroupStop(ctx context.Context, req *api.GroupStopRequest) (*api.GroupStopResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	out, err := s.manager.Stop(s.ctx, cfg.UID)
	if err != nil {
		return nil, err
	}
	return &api.GroupStopResponse{UID: cfg.UID, Outcome: apiOutcome(out)}, nil
}

func (s *Server) doGroupResume(ctx context.Context, req *api.GroupResumeRequest) (*api.GroupResumeResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	out, err := s.manager.Resume(s.ctx, cfg.UID)
	if err != nil {
		return nil, err
	}
	return &api.GroupResumeResponse{UID: cfg.UID, Outcome: apiOutcome(out)}, nil
}

func (s *Server) doGroupCleanup(ctx context.Context, req *api.GroupCleanupRequest) (*api.GroupCleanupResponse, error) {
	cfg, err := s.manager.GetConfig(ctx, req.Group)
	if err != nil {
		return nil, err
	}
	out, err := s.manager.Cleanup(s.ctx, cfg.UID)
	if err != nil {
		return nil, err
	}
	return &api.GroupCleanupResponse{UID: cfg.UID, Outcome: apiOutcome(out)}, nil
}

func (s *Server) doVaultUnlock(ctx context.Context, req *api.VaultUnlockRequest) (*api.VaultUnlockResponse, error) {
	if err := s.vault.Unlock(req.Password); err != nil {
		return nil, err
	}
	ws, err := s.vault.List(ctx)
	if err != nil {
		return nil, err
	}
	s.watchBurners(ws)
	return &api.VaultUnlockResponse{NumWallets: len(ws)}, nil
}

// watchBurners subscribes the launch monitor to every burner wallet so that
// token launches are recorded while trade loops run.
func (s *Server) watchBurners(ws []*vault.Wallet) {
	if s.monitor == nil {
		return
	}
	for _, w := range ws {
		if w.Kind == vault.Burner {
			s.monitor.Watch(w.ID, w.Address.String())
		}
	}
}

func (s *Server) doVaultLock(ctx context.Context, req *api.VaultLockRequest) (*api.VaultLockResponse, error) {
	s.vault.Lock()
	return &api.VaultLockResponse{}, nil
}

func (s *Server) doVaultList(ctx context.Context, req *api.VaultListRequest) (*api.VaultListResponse, error) {
	ws, err := s.vault.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.VaultListResponse)
	for _, w := range ws {
		launched, err := s.registry.IsLaunchWallet(ctx, w.Address.String())
		if err != nil {
			return nil, err
		}
		resp.Wallets = append(resp.Wallets, &api.VaultListResponseItem{
			ID:       w.ID,
			Name:     w.Name,
			Kind:     string(w.Kind),
			Address:  w.Address.String(),
			Launched: launched,
		})
	}
	return resp, nil
}

func (s *Server) doVaultGenerate(ctx context.Context, req *api.VaultGenerateRequest) (*api.VaultGenerateResponse, error) {
	var kind vault.Kind
	switch req.Kind {
	case string(vault.Primary):
		kind = vault.Primary
	case string(vault.Burner), "":
		kind = vault.Burner
	default:
		return nil, fmt.Errorf("invalid wallet kind %q", req.Kind)
	}

	ws, err := s.vault.Generate(ctx, req.Count, req.NamePrefix, kind)
	if err != nil {
		return nil, err
	}
	s.watchBurners(ws)

	resp := new(api.VaultGenerateResponse)
	for _, w := range ws {
		resp.Wallets = append(resp.Wallets, &api.VaultListResponseItem{
			ID:      w.ID,
			Name:    w.Name,
			Kind:    string(w.Kind),
			Address: w.Address.String(),
		})
	}
	return resp, nil
}

func (s *Server) doTradeList(ctx context.Context, req *api.TradeListRequest) (*api.TradeListResponse, error) {
	var records []*gobs.TradeRecord
	collect := func(rec *gobs.TradeRecord) error {
		records = append(records, rec)
		return nil
	}

	if len(req.Group) != 0 {
		cfg, err := s.manager.GetConfig(ctx, req.Group)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.ScanGroup(ctx, cfg.UID, collect); err != nil {
			return nil, err
		}
	} else {
		if err := s.ledger.Scan(ctx, collect); err != nil {
			return nil, err
		}
	}

	// Records scan in time order; the limit keeps the most recent ones.
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[len(records)-req.Limit:]
	}

	resp := new(api.TradeListResponse)
	for _, rec := range records {
		resp.Trades = append(resp.Trades, &api.TradeListResponseItem{
			UID:     rec.UID,
			GroupID: rec.GroupID,

			WalletID: rec.WalletID,
			Wallet:   rec.Wallet,

			Side:      rec.Side,
			TokenMint: rec.TokenMint,
			Venue:     rec.Venue,

			SolAmount:   rec.SolAmount,
			TokenAmount: rec.TokenAmount,

			Signature: rec.Signature,

			Time: rec.Time,
		})
	}
	return resp, nil
}

func (s *Server) doLaunchList(ctx context.Context, req *api.LaunchListRequest) (*api.LaunchListResponse, error) {
	launches, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.LaunchListResponse)
	for _, ld := range launches {
		resp.Launches = append(resp.Launches, &api.LaunchListResponseItem{
			WalletID:  ld.WalletID,
			Wallet:    ld.Wallet,
			TokenMint: ld.TokenMint,
			Time:      ld.Time,
		})
	}
	return resp, nil
}
