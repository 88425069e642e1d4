// Copyright (c) 2024 Nate Bag

// Package vault manages trading wallet keypairs. Burner wallets created for
// a bot group are named "<group-name>-W<index>" so that orphaned wallets can
// be re-associated with their group config after a process restart.
package vault

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// Kind distinguishes long-lived treasury wallets from the ephemeral burner
// wallets created for bot group runs.
type Kind string

const (
	Primary Kind = "PRIMARY"
	Burner  Kind = "BURNER"
)

// ErrLocked is returned by every operation that needs key material while the
// vault has no unlock password.
var ErrLocked = errors.New("vault is locked")

type Wallet struct {
	ID   string
	Name string
	Kind Kind

	Address solana.PublicKey
}

type Vault interface {
	// Locked reports whether key material is currently inaccessible.
	Locked() bool

	// List returns all wallets. The whole vault file is encrypted, so even
	// wallet metadata requires the vault to be unlocked.
	List(ctx context.Context) ([]*Wallet, error)

	// Generate creates count new wallets named namePrefix-W<index> with
	// indexes continuing after any existing wallets with the same prefix.
	Generate(ctx context.Context, count int, namePrefix string, kind Kind) ([]*Wallet, error)

	// Remove deletes the given wallet ids and their signing keys. Returns
	// the number of wallets removed.
	Remove(ctx context.Context, ids []string) (int, error)

	// Signer returns the signing key for a wallet id.
	Signer(ctx context.Context, id string) (solana.PrivateKey, error)
}
