// Copyright (c) 2024 Nate Bag

// Package server wires the storage, chain and trading components into one
// daemon and exposes the JSON api consumed by the command-line client.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bvkgo/kv"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/ctxutil"
	"github.com/natebag/trenchtools/dex"
	"github.com/natebag/trenchtools/dex/jupiter"
	"github.com/natebag/trenchtools/dex/pumpfun"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/group"
	"github.com/natebag/trenchtools/launchreg"
	"github.com/natebag/trenchtools/ledger"
	"github.com/natebag/trenchtools/looper"
	"github.com/natebag/trenchtools/telegram"
	"github.com/natebag/trenchtools/trader"
	"github.com/natebag/trenchtools/vault"

	"github.com/natebag/trenchtools/api"
)

// Vault extends the wallet store with the lock operations only the daemon
// may perform.
type Vault interface {
	vault.Vault

	Unlock(password string) error
	Lock()
}

type Server struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	opts Options

	db kv.Database

	vault Vault

	chain *chain.Client

	ledger *ledger.Ledger

	registry *launchreg.Registry
	monitor  *launchreg.Monitor

	engine *trader.Engine

	scheduler *looper.Scheduler
	watchdog  *looper.Watchdog

	manager *group.Manager

	telegramClient *telegram.Client

	mu sync.Mutex

	// treasuryAlertDeadline freezes repeat low-treasury alerts for a
	// while after one is sent.
	treasuryAlertDeadline time.Time

	cg ctxutil.CloseGroup
}

func New(ctx context.Context, secrets *Secrets, db kv.Database, vlt Vault, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancelCause(context.Background())
	defer func() {
		if status != nil {
			cancel(status)
		}
	}()

	s := &Server{
		ctx:    sctx,
		cancel: cancel,
		opts:   *opts,
		db:     db,
		vault:  vlt,
	}

	s.chain = chain.New(secrets.Solana.RPCEndpoint)
	s.ledger = ledger.New(db)
	s.registry = launchreg.New(db)

	curve := pumpfun.New(s.chain)
	router := &dex.Router{
		Curve:      curve,
		Aggregator: jupiter.New(s.chain, nil),
		Detector:   curve,
	}

	s.engine = trader.NewEngine(s.chain, router, s.ledger, opts.IdgenSeed)

	s.scheduler = looper.NewScheduler(s.engine, func(groupID string) (*gobs.GroupConfig, error) {
		return s.manager.GetConfig(s.ctx, groupID)
	})
	s.manager = group.NewManager(db, vlt, s.chain, s.engine, s.scheduler, s.registry, nil)
	s.scheduler.OnTrade(s.manager.RecordTrade)
	s.manager.OnOutcome(s.notifyOutcome)

	if err := s.manager.LoadSummaries(ctx); err != nil {
		return nil, err
	}

	s.watchdog = looper.NewWatchdog(s.scheduler)
	s.watchdog.Start(s.ctx)

	if len(secrets.Solana.WebsocketEndpoint) != 0 {
		s.monitor = launchreg.NewMonitor(secrets.Solana.WebsocketEndpoint, s.registry)
		s.monitor.Start(s.ctx)
	}

	if secrets.Telegram != nil {
		tc, err := telegram.New(ctx, db, secrets.Telegram)
		if err != nil {
			return nil, err
		}
		s.telegramClient = tc
		if err := tc.AddCommand(ctx, "status", "Prints bot group statuses", s.statusTelegramCmd); err != nil {
			return nil, err
		}
		if opts.TreasuryAlertSOL.IsPositive() {
			s.cg.Go(s.watchTreasury)
		}
	}

	s.cg.Go(s.watchTrades)
	return s, nil
}

func (s *Server) Close() error {
	s.cancel(os.ErrClosed)
	if s.monitor != nil {
		s.monitor.Close()
	}
	s.watchdog.Close()
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	s.cg.Close()
	s.ledger.Close()
	return nil
}

// HandlerMap returns the daemon's api handlers keyed by url path.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.GroupCreatePath:  httpPostJSONHandler(s.doGroupCreate),
		api.GroupUpdatePath:  httpPostJSONHandler(s.doGroupUpdate),
		api.GroupDeletePath:  httpPostJSONHandler(s.doGroupDelete),
		api.GroupListPath:    httpPostJSONHandler(s.doGroupList),
		api.GroupStatusPath:  httpPostJSONHandler(s.doGroupStatus),
		api.GroupStartPath:   httpPostJSONHandler(s.doGroupStart),
		api.GroupStopPath:    httpPostJSONHandler(s.doGroupStop),
		api.GroupResumePath:  httpPostJSONHandler(s.doGroupResume),
		api.GroupCleanupPath: httpPostJSONHandler(s.doGroupCleanup),

		api.VaultUnlockPath:   httpPostJSONHandler(s.doVaultUnlock),
		api.VaultLockPath:     httpPostJSONHandler(s.doVaultLock),
		api.VaultListPath:     httpPostJSONHandler(s.doVaultList),
		api.VaultGeneratePath: httpPostJSONHandler(s.doVaultGenerate),

		api.TradeListPath:  httpPostJSONHandler(s.doTradeList),
		api.LaunchListPath: httpPostJSONHandler(s.doLaunchList),

		"/metrics": metricsHandler(),
	}
}

func httpPostJSONHandler[REQ, RESP any](fn func(ctx context.Context, req *REQ) (*RESP, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "api handlers only accept POST requests", http.StatusMethodNotAllowed)
			return
		}
		req := new(REQ)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), httpStatusFor(err))
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("content-type", "application/json")
		w.Write(data)
	})
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, os.ErrExist):
		return http.StatusConflict
	case errors.Is(err, os.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrLocked):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
