// Copyright (c) 2024 Nate Bag

package group

import (
	"context"

	"github.com/natebag/trenchtools/vault"
)

// Protector reports whether a wallet address has ever launched a token.
// Satisfied by *launchreg.Registry.
type Protector interface {
	IsLaunchWallet(ctx context.Context, address string) (bool, error)
}

// partitionSafety splits candidate wallets into deletable and protected.
// A wallet whose protection status cannot be determined counts as protected;
// deleting it would forfeit any creator fees forever, keeping it costs
// nothing. This runs as the last gate before every deletion since protection
// can change mid-run.
func partitionSafety(ctx context.Context, candidates []*vault.Wallet, p Protector) (deletable, protected []*vault.Wallet) {
	for _, w := range candidates {
		launched, err := p.IsLaunchWallet(ctx, w.Address.String())
		if err != nil || launched {
			protected = append(protected, w)
			continue
		}
		deletable = append(deletable, w)
	}
	return deletable, protected
}
