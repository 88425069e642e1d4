// Copyright (c) 2024 Nate Bag

package trader

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/dex"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/ledger"
)

type fakeRPC struct {
	lamports uint64
	tokens   uint64
}

func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.lamports}, nil
}

func (f *fakeRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: strconv.FormatUint(f.tokens, 10)},
	}, nil
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return solana.Signature{}, errors.New("not implemented")
}

type fakeSwapper struct {
	name string

	fail bool

	sides []string
}

func (f *fakeSwapper) Name() string { return f.name }

func (f *fakeSwapper) Quote(ctx context.Context, in, out solana.PublicKey, amount, slippageBps uint64) (*dex.Quote, error) {
	if f.fail {
		return nil, errors.New("venue unavailable")
	}
	return &dex.Quote{Venue: f.name, InputMint: in, OutputMint: out, InAmount: amount, OutAmount: amount * 2}, nil
}

func (f *fakeSwapper) Execute(ctx context.Context, q *dex.Quote, signer solana.PrivateKey) (*dex.Result, error) {
	if f.fail {
		return nil, errors.New("venue unavailable")
	}
	side := "SELL"
	if q.InputMint.Equals(solana.SolMint) {
		side = "BUY"
	}
	f.sides = append(f.sides, side)
	return &dex.Result{OutAmount: q.OutAmount}, nil
}

type fakeDetector struct{ pre bool }

func (f *fakeDetector) IsPreGraduation(ctx context.Context, mint solana.PublicKey) (bool, error) {
	return f.pre, nil
}

func testConfig() *gobs.GroupConfig {
	return &gobs.GroupConfig{
		UID:        "group-1",
		Name:       "mygroup",
		TokenMint:  solana.NewWallet().PublicKey().String(),
		MinSwapSOL: decimal.NewFromFloat(0.01),
		MaxSwapSOL: decimal.NewFromFloat(0.05),
	}
}

func testEngine(f *fakeRPC, curve, agg *fakeSwapper, pre bool) (*Engine, *ledger.Ledger) {
	router := &dex.Router{Curve: curve, Aggregator: agg, Detector: &fakeDetector{pre: pre}}
	l := ledger.New(kvmemdb.New())
	return NewEngine(chain.NewWithRPC(f), router, l, "test-seed"), l
}

func TestBuyFirst(t *testing.T) {
	ctx := context.Background()
	// The wallet holds tokens and SOL, so both directions are possible.
	f := &fakeRPC{lamports: 100_000_000, tokens: 1_000_000}
	agg := &fakeSwapper{name: "agg"}
	engine, l := testEngine(f, &fakeSwapper{name: "curve"}, agg, false)
	defer l.Close()

	signer := solana.NewWallet().PrivateKey
	for i := 0; i < 50; i++ {
		r, err := engine.TradeOnce(ctx, testConfig(), "w1", signer, true /* requireBuyFirst */)
		if err != nil {
			t.Fatal(err)
		}
		if r.Side != "BUY" {
			t.Fatalf("attempt %d resolved to %s with requireBuyFirst set", i, r.Side)
		}
	}
}

func TestNoExecutableTrade(t *testing.T) {
	ctx := context.Background()
	f := &fakeRPC{lamports: FeeReserve, tokens: 0}
	engine, l := testEngine(f, &fakeSwapper{name: "curve"}, &fakeSwapper{name: "agg"}, false)
	defer l.Close()

	_, err := engine.TradeOnce(ctx, testConfig(), "w1", solana.NewWallet().PrivateKey, true)
	if !errors.Is(err, ErrNoExecutableTrade) {
		t.Fatalf("got %v, want %v", err, ErrNoExecutableTrade)
	}
}

func TestSellWhenBroke(t *testing.T) {
	ctx := context.Background()
	// Spendable balance is below the minimum swap, but tokens remain.
	f := &fakeRPC{lamports: FeeReserve + 1, tokens: 1_000_000}
	agg := &fakeSwapper{name: "agg"}
	engine, l := testEngine(f, &fakeSwapper{name: "curve"}, agg, false)
	defer l.Close()

	r, err := engine.TradeOnce(ctx, testConfig(), "w1", solana.NewWallet().PrivateKey, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.Side != "SELL" {
		t.Fatalf("resolved to %s, want SELL", r.Side)
	}
	lo := uint64(1_000_000) * sellMinPct / 100
	hi := uint64(1_000_000) * sellMaxPct / 100
	if r.TokenAmount < lo || r.TokenAmount > hi {
		t.Fatalf("sell slice %d outside [%d, %d]", r.TokenAmount, lo, hi)
	}
}

func TestTradeRecorded(t *testing.T) {
	ctx := context.Background()
	f := &fakeRPC{lamports: 100_000_000}
	engine, l := testEngine(f, &fakeSwapper{name: "curve"}, &fakeSwapper{name: "agg"}, true)
	defer l.Close()

	cfg := testConfig()
	if _, err := engine.TradeOnce(ctx, cfg, "w1", solana.NewWallet().PrivateKey, true); err != nil {
		t.Fatal(err)
	}

	var recs []*gobs.TradeRecord
	if err := l.ScanGroup(ctx, cfg.UID, func(rec *gobs.TradeRecord) error {
		recs = append(recs, rec)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(recs))
	}
	if recs[0].Side != "BUY" || recs[0].Venue != "curve" || recs[0].WalletID != "w1" {
		t.Fatalf("unexpected record: %+v", recs[0])
	}
}

func TestLiquidateFallback(t *testing.T) {
	ctx := context.Background()
	f := &fakeRPC{tokens: 1_000_000}
	curve := &fakeSwapper{name: "curve", fail: true}
	agg := &fakeSwapper{name: "agg"}
	engine, l := testEngine(f, curve, agg, true /* pre-graduation, curve is primary */)
	defer l.Close()

	sold, err := engine.Liquidate(ctx, testConfig(), "w1", solana.NewWallet().PrivateKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sold != 1_000_000 {
		t.Fatalf("liquidated %d tokens, want 1000000", sold)
	}
	if len(agg.sides) != 1 || agg.sides[0] != "SELL" {
		t.Fatalf("alternate venue trades: %v", agg.sides)
	}
}

func TestLiquidateDust(t *testing.T) {
	ctx := context.Background()
	f := &fakeRPC{tokens: 50}
	curve := &fakeSwapper{name: "curve"}
	engine, l := testEngine(f, curve, &fakeSwapper{name: "agg"}, true)
	defer l.Close()

	sold, err := engine.Liquidate(ctx, testConfig(), "w1", solana.NewWallet().PrivateKey, 100)
	if err != nil {
		t.Fatal(err)
	}
	if sold != 0 {
		t.Fatalf("liquidated %d tokens below the dust threshold", sold)
	}
	if len(curve.sides) != 0 {
		t.Fatalf("unexpected trades: %v", curve.sides)
	}
}

func TestSellSliceLargeBalance(t *testing.T) {
	// Raw balances for 9-decimal tokens get close to the uint64 limit;
	// the slice must stay within the sampled percentage.
	const tokens = uint64(1e18)
	for pct := sellMinPct; pct <= sellMaxPct; pct++ {
		slice := sellSlice(tokens, pct)
		if want := tokens / 100 * uint64(pct); slice != want {
			t.Fatalf("slice of %d%% of %d is %d, want %d", pct, tokens, slice, want)
		}
	}
	if slice := sellSlice(tokens, sellMaxPct); slice >= tokens {
		t.Fatalf("slice %d is not a strict subset of the %d balance", slice, tokens)
	}
}
