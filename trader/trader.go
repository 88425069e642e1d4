// Copyright (c) 2024 Nate Bag

// Package trader implements single trade attempts. Given a group config and
// one of its wallets the engine decides buy-vs-sell from live on-chain state
// and performs exactly one swap.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/dex"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/idgen"
	"github.com/natebag/trenchtools/ledger"
)

const (
	// FeeReserve is kept back from every burner wallet's SOL balance to
	// cover transaction fees and token account rent.
	FeeReserve uint64 = 10_000_000

	// Sell slices are sampled from this range, as a percentage of the
	// wallet's current token balance. The bounds are tunable; only the
	// randomized shape matters.
	sellMinPct = 25
	sellMaxPct = 75

	defaultSlippageBps = 500
)

// ErrNoExecutableTrade is returned when a wallet can neither buy (spendable
// balance below the group minimum) nor sell (no token holdings).
var ErrNoExecutableTrade = errors.New("no executable trade")

// Result reports one completed swap.
type Result struct {
	Side string // "BUY" or "SELL"

	Venue string

	SolLamports uint64
	TokenAmount uint64

	Signature solana.Signature
}

type Engine struct {
	chain  *chain.Client
	router *dex.Router
	ledger *ledger.Ledger

	idgen *idgen.Generator
}

func NewEngine(c *chain.Client, router *dex.Router, l *ledger.Ledger, seed string) *Engine {
	return &Engine{
		chain:  c,
		router: router,
		ledger: l,
		idgen:  idgen.New(seed, 0),
	}
}

func lamports(sol decimal.Decimal) uint64 {
	return uint64(sol.Mul(decimal.NewFromInt(chain.LamportsPerSOL)).IntPart())
}

// TradeOnce performs one buy-or-sell attempt for the wallet. The caller's
// requireBuyFirst flag forces a buy for a fresh wallet; after the first
// successful buy the direction is a coin flip whenever both are possible.
func (e *Engine) TradeOnce(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, requireBuyFirst bool) (*Result, error) {
	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint %q: %w", cfg.TokenMint, err)
	}
	owner := signer.PublicKey()

	balance, err := e.chain.Balance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("could not read wallet balance: %w", err)
	}
	tokens, err := e.chain.TokenBalance(ctx, owner, mint)
	if err != nil {
		return nil, fmt.Errorf("could not read token balance: %w", err)
	}

	var spendable uint64
	if balance > FeeReserve {
		spendable = balance - FeeReserve
	}
	minSwap, maxSwap := lamports(cfg.MinSwapSOL), lamports(cfg.MaxSwapSOL)
	canBuy := spendable >= minSwap

	preferBuy := requireBuyFirst || rand.Intn(2) == 0

	switch {
	case preferBuy && canBuy:
		return e.buy(ctx, cfg, walletID, signer, mint, buyAmount(spendable, minSwap, maxSwap))
	case tokens > 0:
		slice := sellSlice(tokens, sellMinPct+rand.Intn(sellMaxPct-sellMinPct+1))
		if slice == 0 {
			slice = tokens
		}
		return e.sell(ctx, cfg, walletID, signer, mint, slice, false /* fallback */)
	case canBuy:
		return e.buy(ctx, cfg, walletID, signer, mint, buyAmount(spendable, minSwap, maxSwap))
	default:
		return nil, fmt.Errorf("wallet %s has %d lamports spendable and no tokens: %w", walletID, spendable, ErrNoExecutableTrade)
	}
}

// sellSlice takes pct percent of the raw token balance. Raw balances can be
// near the uint64 limit, so the product is taken over big.Int.
func sellSlice(tokens uint64, pct int) uint64 {
	num := new(big.Int).Mul(new(big.Int).SetUint64(tokens), big.NewInt(int64(pct)))
	return new(big.Int).Quo(num, big.NewInt(100)).Uint64()
}

// buyAmount samples a buy size within the group bounds, clamped to the
// spendable balance and at least the minimum.
func buyAmount(spendable, minSwap, maxSwap uint64) uint64 {
	amount := minSwap
	if maxSwap > minSwap {
		amount += uint64(rand.Int63n(int64(maxSwap-minSwap) + 1))
	}
	if amount > spendable {
		amount = spendable
	}
	if amount < minSwap {
		amount = minSwap
	}
	return amount
}

func (e *Engine) buy(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, mint solana.PublicKey, amount uint64) (*Result, error) {
	venue, _ := e.router.Pick(ctx, mint)
	q, err := venue.Quote(ctx, solana.SolMint, mint, amount, defaultSlippageBps)
	if err != nil {
		return nil, fmt.Errorf("could not quote buy on %s: %w", venue.Name(), err)
	}
	r, err := venue.Execute(ctx, q, signer)
	if err != nil {
		return nil, fmt.Errorf("could not execute buy on %s: %w", venue.Name(), err)
	}
	result := &Result{
		Side:        "BUY",
		Venue:       venue.Name(),
		SolLamports: amount,
		TokenAmount: r.OutAmount,
		Signature:   r.Signature,
	}
	e.record(ctx, cfg, walletID, signer, result)
	return result, nil
}

// sell liquidates the given token amount. With fallback enabled a failure on
// the primary venue is retried once on the alternate venue; steady-state
// trading never falls back since the next tick re-probes anyway.
func (e *Engine) sell(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, mint solana.PublicKey, amount uint64, fallback bool) (*Result, error) {
	primary, alternate := e.router.Pick(ctx, mint)

	r, err := e.sellOn(ctx, primary, signer, mint, amount)
	if err != nil && fallback {
		slog.Warn("sell failed on primary venue; retrying on alternate", "wallet", walletID, "venue", primary.Name(), "err", err)
		r, err = e.sellOn(ctx, alternate, signer, mint, amount)
		if err == nil {
			primary = alternate
		}
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Side:        "SELL",
		Venue:       primary.Name(),
		SolLamports: r.OutAmount,
		TokenAmount: amount,
		Signature:   r.Signature,
	}
	e.record(ctx, cfg, walletID, signer, result)
	return result, nil
}

func (e *Engine) sellOn(ctx context.Context, venue dex.Swapper, signer solana.PrivateKey, mint solana.PublicKey, amount uint64) (*dex.Result, error) {
	q, err := venue.Quote(ctx, mint, solana.SolMint, amount, defaultSlippageBps)
	if err != nil {
		return nil, fmt.Errorf("could not quote sell on %s: %w", venue.Name(), err)
	}
	r, err := venue.Execute(ctx, q, signer)
	if err != nil {
		return nil, fmt.Errorf("could not execute sell on %s: %w", venue.Name(), err)
	}
	return r, nil
}

// Liquidate sells the wallet's entire token balance down to the dust
// threshold, with venue fallback. Returns the amount sold; zero with a nil
// error means there was nothing above dust to sell.
func (e *Engine) Liquidate(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, dust uint64) (uint64, error) {
	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return 0, fmt.Errorf("invalid token mint %q: %w", cfg.TokenMint, err)
	}
	tokens, err := e.chain.TokenBalance(ctx, signer.PublicKey(), mint)
	if err != nil {
		return 0, fmt.Errorf("could not read token balance: %w", err)
	}
	if tokens <= dust {
		return 0, nil
	}
	if _, err := e.sell(ctx, cfg, walletID, signer, mint, tokens, true /* fallback */); err != nil {
		return 0, err
	}
	return tokens, nil
}

// record appends the trade to the ledger. Ledger failures must not undo a
// swap that already landed, so they are logged and dropped.
func (e *Engine) record(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, r *Result) {
	rec := &gobs.TradeRecord{
		UID:         e.idgen.NextID().String(),
		GroupID:     cfg.UID,
		WalletID:    walletID,
		Wallet:      signer.PublicKey().String(),
		Side:        r.Side,
		TokenMint:   cfg.TokenMint,
		Venue:       r.Venue,
		SolAmount:   decimal.NewFromUint64(r.SolLamports).Div(decimal.NewFromInt(chain.LamportsPerSOL)),
		TokenAmount: r.TokenAmount,
		Signature:   r.Signature.String(),
		Time:        time.Now(),
	}
	if err := e.ledger.Append(ctx, rec); err != nil {
		slog.Error("could not record trade in the ledger", "group", cfg.Name, "wallet", walletID, "signature", r.Signature, "err", err)
	}
}
