// Copyright (c) 2024 Nate Bag

package group

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/gobs"
	"github.com/natebag/trenchtools/vault"
)

type fakeVault struct {
	locked bool

	wallets []*vault.Wallet
	signers map[string]solana.PrivateKey

	generateErr error
}

func newFakeVault() *fakeVault {
	v := &fakeVault{signers: make(map[string]solana.PrivateKey)}
	v.add("treasury", "treasury", vault.Primary)
	return v
}

func (v *fakeVault) add(id, name string, kind vault.Kind) *vault.Wallet {
	w := solana.NewWallet()
	wallet := &vault.Wallet{ID: id, Name: name, Kind: kind, Address: w.PublicKey()}
	v.wallets = append(v.wallets, wallet)
	v.signers[id] = w.PrivateKey
	return wallet
}

func (v *fakeVault) Locked() bool {
	return v.locked
}

func (v *fakeVault) List(ctx context.Context) ([]*vault.Wallet, error) {
	return v.wallets, nil
}

func (v *fakeVault) Generate(ctx context.Context, count int, namePrefix string, kind vault.Kind) ([]*vault.Wallet, error) {
	if v.generateErr != nil {
		return nil, v.generateErr
	}
	var out []*vault.Wallet
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s-W%d", namePrefix, i)
		out = append(out, v.add(name, name, kind))
	}
	return out, nil
}

func (v *fakeVault) Remove(ctx context.Context, ids []string) (int, error) {
	var n int
	for _, id := range ids {
		for i, w := range v.wallets {
			if w.ID == id {
				v.wallets = append(v.wallets[:i], v.wallets[i+1:]...)
				delete(v.signers, id)
				n++
				break
			}
		}
	}
	return n, nil
}

func (v *fakeVault) Signer(ctx context.Context, id string) (solana.PrivateKey, error) {
	s, ok := v.signers[id]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", id, os.ErrNotExist)
	}
	return s, nil
}

func (v *fakeVault) has(id string) bool {
	for _, w := range v.wallets {
		if w.ID == id {
			return true
		}
	}
	return false
}

type transfer struct {
	recipients int
	lamports   uint64
}

type fakeChain struct {
	treasuryBalance uint64

	// tokenBalances maps owner address to remaining raw tokens.
	tokenBalances map[string]uint64

	// verifyErrs makes TokenBalance fail for an owner address.
	verifyErrs map[string]error

	// sweepErrs makes Sweep fail for a wallet address.
	sweepErrs map[string]error

	transfers []transfer
	sweeps    []string
}

func (c *fakeChain) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return c.treasuryBalance, nil
}

func (c *fakeChain) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	if err := c.verifyErrs[owner.String()]; err != nil {
		return 0, err
	}
	return c.tokenBalances[owner.String()], nil
}

func (c *fakeChain) TransferBatch(ctx context.Context, from solana.PrivateKey, recipients []solana.PublicKey, lamports uint64) (solana.Signature, *chain.HashWindow, error) {
	c.transfers = append(c.transfers, transfer{recipients: len(recipients), lamports: lamports})
	return solana.Signature{}, &chain.HashWindow{}, nil
}

func (c *fakeChain) Confirm(ctx context.Context, sig solana.Signature, hw *chain.HashWindow) error {
	return nil
}

func (c *fakeChain) Sweep(ctx context.Context, from solana.PrivateKey, to solana.PublicKey) (uint64, solana.Signature, error) {
	addr := from.PublicKey().String()
	if err := c.sweepErrs[addr]; err != nil {
		return 0, solana.Signature{}, err
	}
	c.sweeps = append(c.sweeps, addr)
	return 95_000_000, solana.Signature{}, nil
}

type fakeLiquidator struct {
	// sellErrs makes Liquidate fail for a wallet id.
	sellErrs map[string]error

	// sold maps wallet id to the amount reported as sold.
	sold map[string]uint64
}

func (f *fakeLiquidator) Liquidate(ctx context.Context, cfg *gobs.GroupConfig, walletID string, signer solana.PrivateKey, dust uint64) (uint64, error) {
	if err := f.sellErrs[walletID]; err != nil {
		return 0, err
	}
	return f.sold[walletID], nil
}

type armed struct {
	groupID  string
	walletID string
	index    int
}

type fakeLooper struct {
	armed     []armed
	cancelled int
}

func (f *fakeLooper) Arm(ctx context.Context, groupID, walletID string, signer solana.PrivateKey, index int) {
	f.armed = append(f.armed, armed{groupID: groupID, walletID: walletID, index: index})
}

func (f *fakeLooper) CancelGroup(groupID string) int {
	f.cancelled++
	n := 0
	for _, a := range f.armed {
		if a.groupID == groupID {
			n++
		}
	}
	return n
}

func (f *fakeLooper) Active(groupID string) []string {
	return nil
}

type fakeProtector struct {
	protected map[string]bool
	errs      map[string]error
}

func (f *fakeProtector) IsLaunchWallet(ctx context.Context, address string) (bool, error) {
	if err := f.errs[address]; err != nil {
		return false, err
	}
	return f.protected[address], nil
}

type fixture struct {
	m     *Manager
	vault *fakeVault
	chain *fakeChain
	liq   *fakeLiquidator
	loops *fakeLooper
	prot  *fakeProtector
	uid   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		vault: newFakeVault(),
		chain: &fakeChain{
			treasuryBalance: chain.LamportsPerSOL,
			tokenBalances:   make(map[string]uint64),
			verifyErrs:      make(map[string]error),
			sweepErrs:       make(map[string]error),
		},
		liq:   &fakeLiquidator{sellErrs: make(map[string]error), sold: make(map[string]uint64)},
		loops: new(fakeLooper),
		prot:  &fakeProtector{protected: make(map[string]bool), errs: make(map[string]error)},
	}
	f.m = NewManager(kvmemdb.New(), f.vault, f.chain, f.liq, f.loops, f.prot, nil)

	uid, err := f.m.CreateConfig(context.Background(), &gobs.GroupConfig{
		Name:        "mygroup",
		TokenMint:   solana.NewWallet().PublicKey().String(),
		NumWallets:  3,
		FundingSOL:  decimal.NewFromFloat(0.1),
		MinSwapSOL:  decimal.NewFromFloat(0.01),
		MaxSwapSOL:  decimal.NewFromFloat(0.05),
		MinInterval: 10 * time.Second,
		MaxInterval: 30 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.uid = uid
	return f
}

func (f *fixture) address(t *testing.T, id string) string {
	t.Helper()
	for _, w := range f.vault.wallets {
		if w.ID == id {
			return w.Address.String()
		}
	}
	t.Fatalf("wallet %s not in vault", id)
	return ""
}

func TestStartScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	out, err := f.m.Start(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if out.WalletsCreated != 3 || out.WalletsFunded != 3 || out.LoopsArmed != 3 {
		t.Fatalf("unexpected outcome: %s", out)
	}
	if s := f.m.runtime(f.uid).State(); s != Running {
		t.Fatalf("group state is %s, want RUNNING", s)
	}

	// Funding is one atomic batched transfer of 0.1 SOL per wallet.
	if len(f.chain.transfers) != 1 {
		t.Fatalf("%d funding transfers, want 1", len(f.chain.transfers))
	}
	tr := f.chain.transfers[0]
	if tr.recipients != 3 || tr.lamports != 100_000_000 {
		t.Fatalf("unexpected funding transfer: %+v", tr)
	}

	// One loop per wallet with increasing indexes.
	for i, a := range f.loops.armed {
		if a.index != i || a.groupID != f.uid {
			t.Fatalf("unexpected loop %d: %+v", i, a)
		}
	}
}

func TestStartInsufficientTreasury(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Required is 3 x (0.1 + 0.001) = 0.303 SOL.
	f.chain.treasuryBalance = 200_000_000

	_, err := f.m.Start(ctx, f.uid)
	if err == nil || !strings.Contains(err.Error(), "needs 0.303") {
		t.Fatalf("got %v, want insufficient treasury error", err)
	}
	if len(f.vault.wallets) != 1 {
		t.Fatalf("wallets were created despite the failed precondition")
	}
	if s := f.m.runtime(f.uid).State(); s != Idle {
		t.Fatalf("group state is %s, want IDLE", s)
	}
}

func TestStartLockedVault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.vault.locked = true

	if _, err := f.m.Start(ctx, f.uid); !errors.Is(err, vault.ErrLocked) {
		t.Fatalf("got %v, want %v", err, vault.ErrLocked)
	}
}

func TestStopPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.m.Start(ctx, f.uid); err != nil {
		t.Fatal(err)
	}

	// Wallet 0 liquidates clean; wallet 1's sell fails and tokens remain;
	// wallet 2 liquidates clean.
	f.liq.sold["mygroup-W0"] = 500
	f.liq.sellErrs["mygroup-W1"] = errors.New("venue unavailable")
	f.chain.tokenBalances[f.address(t, "mygroup-W1")] = 700_000

	out, err := f.m.Stop(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if f.loops.cancelled == 0 {
		t.Fatalf("loops were not cancelled before teardown")
	}
	if out.SellErrors != 1 || out.WalletsDeleted != 2 || out.WalletsKept != 1 {
		t.Fatalf("unexpected outcome: %s", out)
	}

	if f.vault.has("mygroup-W0") || f.vault.has("mygroup-W2") {
		t.Fatalf("verified-empty wallets were not deleted")
	}
	if !f.vault.has("mygroup-W1") {
		t.Fatalf("unverified wallet was deleted")
	}

	rt := f.m.runtime(f.uid)
	if s := rt.State(); s != Idle {
		t.Fatalf("group state is %s, want IDLE", s)
	}
	if ids := rt.WalletIDs(); len(ids) != 1 || ids[0] != "mygroup-W1" {
		t.Fatalf("kept wallets: %v, want [mygroup-W1]", ids)
	}
	if s := rt.Summary(); s.LastError == "" || s.Status != "IDLE-WITH-ORPHANS" {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestProtectedNeverDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.m.Start(ctx, f.uid); err != nil {
		t.Fatal(err)
	}
	// Wallet 1 launched a token: verified empty yet never deleted.
	f.prot.protected[f.address(t, "mygroup-W1")] = true

	out, err := f.m.Stop(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if out.WalletsProtected != 1 || out.WalletsDeleted != 2 {
		t.Fatalf("unexpected outcome: %s", out)
	}
	if !f.vault.has("mygroup-W1") {
		t.Fatalf("launch-protected wallet was deleted")
	}
}

func TestVerificationErrorKeepsWallet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.m.Start(ctx, f.uid); err != nil {
		t.Fatal(err)
	}
	f.chain.verifyErrs[f.address(t, "mygroup-W2")] = errors.New("rpc timeout")

	out, err := f.m.Stop(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if out.WalletsDeleted != 2 || out.WalletsKept != 1 {
		t.Fatalf("unexpected outcome: %s", out)
	}
	if !f.vault.has("mygroup-W2") {
		t.Fatalf("wallet with unverified balance was deleted")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.m.Start(ctx, f.uid); err != nil {
		t.Fatal(err)
	}
	// Every wallet is stuck: tokens remain and sells keep failing.
	for _, id := range []string{"mygroup-W0", "mygroup-W1", "mygroup-W2"} {
		f.liq.sellErrs[id] = errors.New("venue unavailable")
		f.chain.tokenBalances[f.address(t, id)] = 1_000_000
	}
	if _, err := f.m.Stop(ctx, f.uid); err != nil {
		t.Fatal(err)
	}

	first, err := f.m.Cleanup(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.m.Cleanup(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if first.WalletsKept != 3 || second.WalletsKept != 3 {
		t.Fatalf("kept counts differ: %d then %d", first.WalletsKept, second.WalletsKept)
	}
	if first.WalletsDeleted != 0 || second.WalletsDeleted != 0 {
		t.Fatalf("stuck wallets were deleted")
	}
}

func TestResumeOrphans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Orphans exist in the vault but the runtime is fresh, as after a
	// daemon restart.
	if _, err := f.vault.Generate(ctx, 3, "mygroup", vault.Burner); err != nil {
		t.Fatal(err)
	}

	out, err := f.m.Resume(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if out.LoopsArmed != 3 {
		t.Fatalf("unexpected outcome: %s", out)
	}
	// Resume never spends treasury funds.
	if len(f.chain.transfers) != 0 {
		t.Fatalf("resume issued %d funding transfers", len(f.chain.transfers))
	}
	if s := f.m.runtime(f.uid).State(); s != Running {
		t.Fatalf("group state is %s, want RUNNING", s)
	}
}

func TestUpdateConfigIdleOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.m.Start(ctx, f.uid); err != nil {
		t.Fatal(err)
	}
	update := &gobs.GroupConfig{
		UID:         f.uid,
		FundingSOL:  decimal.NewFromFloat(0.2),
		MinSwapSOL:  decimal.NewFromFloat(0.01),
		MaxSwapSOL:  decimal.NewFromFloat(0.05),
		MinInterval: time.Second,
		MaxInterval: 2 * time.Second,
	}
	if err := f.m.UpdateConfig(ctx, update); err == nil {
		t.Fatalf("config edit allowed on a running group")
	}

	if _, err := f.m.Stop(ctx, f.uid); err != nil {
		t.Fatal(err)
	}
	if err := f.m.UpdateConfig(ctx, update); err != nil {
		t.Fatal(err)
	}
	cfg, err := f.m.GetConfig(ctx, f.uid)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.FundingSOL.Equal(decimal.NewFromFloat(0.2)) || cfg.MinInterval != time.Second {
		t.Fatalf("config edit not applied: %+v", cfg)
	}
}

func TestDeleteConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.m.DeleteConfig(ctx, f.uid); err != nil {
		t.Fatal(err)
	}
	if _, err := f.m.GetConfig(ctx, f.uid); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v, want %v", err, os.ErrNotExist)
	}
	// The name is free for reuse.
	if _, err := f.m.CreateConfig(ctx, &gobs.GroupConfig{
		Name:        "mygroup",
		TokenMint:   solana.NewWallet().PublicKey().String(),
		NumWallets:  1,
		FundingSOL:  decimal.NewFromFloat(0.1),
		MinSwapSOL:  decimal.NewFromFloat(0.01),
		MaxSwapSOL:  decimal.NewFromFloat(0.02),
		MinInterval: time.Second,
		MaxInterval: 2 * time.Second,
	}); err != nil {
		t.Fatal(err)
	}
}
