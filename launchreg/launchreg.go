// Copyright (c) 2024 Nate Bag

// Package launchreg tracks wallets that have launched a token. Launch
// wallets hold the creator authority for their token, so cleanup must never
// delete them.
package launchreg

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/bvkgo/kv"

	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/kvutil"
	"github.com/natebag/trenchtools/syncmap"
)

const Keyspace = "/launches/"

type Registry struct {
	db kv.Database

	// cache holds addresses already known to be launch wallets. Entries
	// are only ever added, matching the registry's append-only nature.
	cache syncmap.Map[string, *gobs.LaunchData]
}

func New(db kv.Database) *Registry {
	return &Registry{db: db}
}

// Mark records the wallet at the given address as a launch wallet. Marking
// an already marked wallet is not an error.
func (r *Registry) Mark(ctx context.Context, walletID, address, mint string) error {
	data := &gobs.LaunchData{
		WalletID:  walletID,
		Wallet:    address,
		TokenMint: mint,
		Time:      time.Now(),
	}
	if err := kvutil.SetDB(ctx, r.db, Keyspace+address, data); err != nil {
		return err
	}
	r.cache.Store(address, data)
	return nil
}

// IsLaunchWallet reports whether the address has ever launched a token.
func (r *Registry) IsLaunchWallet(ctx context.Context, address string) (bool, error) {
	if _, ok := r.cache.Load(address); ok {
		return true, nil
	}
	data, err := kvutil.GetDB[gobs.LaunchData](ctx, r.db, Keyspace+address)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	r.cache.Store(address, data)
	return true, nil
}

// List returns every launch record.
func (r *Registry) List(ctx context.Context) ([]*gobs.LaunchData, error) {
	var out []*gobs.LaunchData
	begin, end := kvutil.PathRange(Keyspace)
	fn := func(ctx context.Context, rd kv.Reader, k string, data *gobs.LaunchData) error {
		out = append(out, data)
		return nil
	}
	if err := kvutil.AscendDB(ctx, r.db, begin, end, fn); err != nil {
		return nil, err
	}
	return out, nil
}
