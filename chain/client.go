// Copyright (c) 2024 Nate Bag

// Package chain wraps the Solana JSON-RPC client with rate limiting, the
// balance reads used by the trade engine, batched SOL transfers and the
// transaction confirmation protocol.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// RPC lists the JSON-RPC methods used by this package. *rpc.Client satisfies
// it; tests substitute fakes.
type RPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

type Client struct {
	rpc RPC

	limiter *rate.Limiter
}

// New creates a client over the given RPC endpoint url.
func New(endpoint string) *Client {
	return &Client{
		rpc:     rpc.New(endpoint),
		limiter: rate.NewLimiter(25, 1),
	}
}

// NewWithRPC creates a client over a caller-supplied RPC implementation.
func NewWithRPC(r RPC) *Client {
	return &Client{
		rpc:     r,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// Balance returns the live SOL balance of the given account in lamports.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	resp, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("could not fetch balance for %s: %w", account, err)
	}
	return resp.Value, nil
}

// TokenBalance returns the live raw token balance of the owner's associated
// token account for the given mint. A missing token account reads as zero.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("could not derive token account for %s: %w", owner, err)
	}

	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	resp, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if isMissingAccount(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("could not fetch token balance for %s: %w", owner, err)
	}
	if resp.Value == nil {
		return 0, nil
	}

	var amount uint64
	if _, err := fmt.Sscan(resp.Value.Amount, &amount); err != nil {
		return 0, fmt.Errorf("could not parse token amount %q: %w", resp.Value.Amount, err)
	}
	return amount, nil
}

func isMissingAccount(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	return strings.Contains(err.Error(), "could not find account")
}

// AccountExists reports whether the given account has been created on chain.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	resp, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if isMissingAccount(err) {
			return false, nil
		}
		return false, err
	}
	return resp.Value != nil, nil
}

// AccountData returns the raw binary data of the given account.
func (c *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return nil, rpc.ErrNotFound
	}
	return resp.Value.Data.GetBinary(), nil
}

// HashWindow identifies the blockhash and expiry height a transaction was
// built against.
type HashWindow struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// LatestBlockhash fetches a fresh blockhash window.
func (c *Client) LatestBlockhash(ctx context.Context) (*HashWindow, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("could not fetch latest blockhash: %w", err)
	}
	return &HashWindow{
		Blockhash:            resp.Value.Blockhash,
		LastValidBlockHeight: resp.Value.LastValidBlockHeight,
	}, nil
}

// Send submits a signed transaction and returns its signature.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("could not send transaction: %w", err)
	}
	return sig, nil
}
