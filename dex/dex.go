// Copyright (c) 2024 Nate Bag

// Package dex defines the swap venue abstraction. A target token trades on a
// bonding-curve venue before graduation and on the general aggregator after;
// the router re-probes the venue on every trade so a graduation event is
// picked up automatically.
package dex

import (
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
)

// Quote is a priced swap for a specific input/output pair. The venue that
// produced a quote is the only venue that can execute it.
type Quote struct {
	Venue string

	InputMint  solana.PublicKey
	OutputMint solana.PublicKey

	InAmount  uint64
	OutAmount uint64

	SlippageBps uint64

	// Raw carries the venue-specific quote payload needed by Execute.
	Raw json.RawMessage
}

type Result struct {
	Signature solana.Signature
	OutAmount uint64
}

type Swapper interface {
	Name() string

	Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint64) (*Quote, error)

	Execute(ctx context.Context, q *Quote, signer solana.PrivateKey) (*Result, error)
}

// Detector probes whether a token still trades on its bonding curve.
type Detector interface {
	IsPreGraduation(ctx context.Context, mint solana.PublicKey) (bool, error)
}

// Router picks the venue for each trade. The probe result is never cached.
type Router struct {
	Curve      Swapper
	Aggregator Swapper
	Detector   Detector
}

// Pick returns the primary venue for the given mint and the alternate venue
// to fall back to during teardown liquidation. When the probe fails the
// aggregator is assumed.
func (r *Router) Pick(ctx context.Context, mint solana.PublicKey) (primary, alternate Swapper) {
	pre, err := r.Detector.IsPreGraduation(ctx, mint)
	if err == nil && pre {
		return r.Curve, r.Aggregator
	}
	return r.Aggregator, r.Curve
}
