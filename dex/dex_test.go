// Copyright (c) 2024 Nate Bag

package dex

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
)

type fakeSwapper struct {
	name string
}

func (f *fakeSwapper) Name() string { return f.name }

func (f *fakeSwapper) Quote(ctx context.Context, in, out solana.PublicKey, amount, slippageBps uint64) (*Quote, error) {
	return &Quote{Venue: f.name, InputMint: in, OutputMint: out, InAmount: amount, OutAmount: amount}, nil
}

func (f *fakeSwapper) Execute(ctx context.Context, q *Quote, signer solana.PrivateKey) (*Result, error) {
	return &Result{OutAmount: q.OutAmount}, nil
}

type fakeDetector struct {
	pre bool
	err error
}

func (f *fakeDetector) IsPreGraduation(ctx context.Context, mint solana.PublicKey) (bool, error) {
	return f.pre, f.err
}

func TestRouterPick(t *testing.T) {
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()

	curve := &fakeSwapper{name: "curve"}
	agg := &fakeSwapper{name: "agg"}
	d := &fakeDetector{pre: true}
	r := &Router{Curve: curve, Aggregator: agg, Detector: d}

	p, a := r.Pick(ctx, mint)
	if p != curve || a != agg {
		t.Fatalf("pre-graduation pick: primary %s alternate %s", p.Name(), a.Name())
	}

	d.pre = false
	p, a = r.Pick(ctx, mint)
	if p != agg || a != curve {
		t.Fatalf("post-graduation pick: primary %s alternate %s", p.Name(), a.Name())
	}
}

func TestRouterPickProbeFailure(t *testing.T) {
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()

	curve := &fakeSwapper{name: "curve"}
	agg := &fakeSwapper{name: "agg"}
	r := &Router{Curve: curve, Aggregator: agg, Detector: &fakeDetector{err: errors.New("rpc down")}}

	if p, _ := r.Pick(ctx, mint); p != agg {
		t.Fatalf("probe failure picked %s, want aggregator", p.Name())
	}
}
