// Copyright (c) 2024 Nate Bag

package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type fakeRPC struct {
	statuses   []rpc.ConfirmationStatusType
	statusIdx  int
	height     uint64
	lastValid  uint64
	statusErrs []error
}

func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash{},
			LastValidBlockHeight: f.lastValid,
		},
	}, nil
}

func (f *fakeRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	return f.height, nil
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.statusIdx >= len(f.statuses) {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	st := f.statuses[f.statusIdx]
	f.statusIdx++
	if st == "" {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{{ConfirmationStatus: st}},
	}, nil
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return solana.Signature{}, errors.New("not implemented")
}

func TestConfirmKnownWindow(t *testing.T) {
	ctx := context.Background()
	f := &fakeRPC{
		statuses:  []rpc.ConfirmationStatusType{rpc.ConfirmationStatusConfirmed},
		height:    100,
		lastValid: 200,
	}
	c := NewWithRPC(f)

	hw := &HashWindow{LastValidBlockHeight: 200}
	if err := c.Confirm(ctx, solana.Signature{}, hw); err != nil {
		t.Fatal(err)
	}
}

func TestConfirmFreshWindowRetry(t *testing.T) {
	ctx := context.Background()
	// First window is already expired; the retry against a fresh window
	// finds the transaction confirmed.
	f := &fakeRPC{
		statuses:  []rpc.ConfirmationStatusType{"", rpc.ConfirmationStatusFinalized},
		height:    300,
		lastValid: 400,
	}
	c := NewWithRPC(f)

	hw := &HashWindow{LastValidBlockHeight: 200}
	if err := c.Confirm(ctx, solana.Signature{}, hw); err != nil {
		t.Fatal(err)
	}
}

func TestConfirmStatusFallback(t *testing.T) {
	ctx := context.Background()
	// Both windows expire without a status; the direct lookup wins.
	f := &fakeRPC{
		statuses:  []rpc.ConfirmationStatusType{"", "", rpc.ConfirmationStatusFinalized},
		height:    500,
		lastValid: 400,
	}
	c := NewWithRPC(f)

	hw := &HashWindow{LastValidBlockHeight: 200}
	if err := c.Confirm(ctx, solana.Signature{}, hw); err != nil {
		t.Fatal(err)
	}
}

func TestConfirmNotConfirmed(t *testing.T) {
	ctx := context.Background()
	f := &fakeRPC{
		height:    500,
		lastValid: 400,
	}
	c := NewWithRPC(f)

	err := c.Confirm(ctx, solana.Signature{}, nil)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("want ErrNotConfirmed, got %v", err)
	}
}
