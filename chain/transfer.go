// Copyright (c) 2024 Nate Bag

package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// SweepFeeBuffer is the amount of lamports left behind on a swept wallet to
// cover the transfer fee.
const SweepFeeBuffer uint64 = 5_000

// TransferBatch funds every recipient with the same lamport amount in one
// atomic transaction signed by the sender. Either every recipient is funded
// or none are.
func (c *Client) TransferBatch(ctx context.Context, from solana.PrivateKey, recipients []solana.PublicKey, lamports uint64) (solana.Signature, *HashWindow, error) {
	if len(recipients) == 0 {
		return solana.Signature{}, nil, fmt.Errorf("recipient list cannot be empty")
	}

	hw, err := c.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, nil, err
	}

	sender := from.PublicKey()
	var instrs []solana.Instruction
	for _, to := range recipients {
		instrs = append(instrs, system.NewTransferInstruction(lamports, sender, to).Build())
	}

	tx, err := solana.NewTransaction(instrs, hw.Blockhash, solana.TransactionPayer(sender))
	if err != nil {
		return solana.Signature{}, nil, fmt.Errorf("could not build transfer transaction: %w", err)
	}
	if _, err := tx.Sign(signerFor(from)); err != nil {
		return solana.Signature{}, nil, fmt.Errorf("could not sign transfer transaction: %w", err)
	}

	sig, err := c.Send(ctx, tx)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	return sig, hw, nil
}

// Sweep transfers the wallet's full SOL balance, minus the fee buffer, to
// the given destination. Returns the swept lamports.
func (c *Client) Sweep(ctx context.Context, from solana.PrivateKey, to solana.PublicKey) (uint64, solana.Signature, error) {
	balance, err := c.Balance(ctx, from.PublicKey())
	if err != nil {
		return 0, solana.Signature{}, err
	}
	if balance <= SweepFeeBuffer {
		return 0, solana.Signature{}, nil
	}
	amount := balance - SweepFeeBuffer

	hw, err := c.LatestBlockhash(ctx)
	if err != nil {
		return 0, solana.Signature{}, err
	}

	sender := from.PublicKey()
	instr := system.NewTransferInstruction(amount, sender, to).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{instr}, hw.Blockhash, solana.TransactionPayer(sender))
	if err != nil {
		return 0, solana.Signature{}, fmt.Errorf("could not build sweep transaction: %w", err)
	}
	if _, err := tx.Sign(signerFor(from)); err != nil {
		return 0, solana.Signature{}, fmt.Errorf("could not sign sweep transaction: %w", err)
	}

	sig, err := c.Send(ctx, tx)
	if err != nil {
		return 0, solana.Signature{}, err
	}
	if err := c.Confirm(ctx, sig, hw); err != nil {
		return 0, sig, err
	}
	return amount, sig, nil
}

func signerFor(keys ...solana.PrivateKey) func(key solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey() == key {
				return &keys[i]
			}
		}
		return nil
	}
}
