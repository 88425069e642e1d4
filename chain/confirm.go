// Copyright (c) 2024 Nate Bag

package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/natebag/trenchtools/ctxutil"
)

// ErrNotConfirmed indicates that a submitted transaction could not be
// confirmed within the expiry window. The transaction may still land later;
// callers should report it distinctly from hard failures.
var ErrNotConfirmed = errors.New("transaction not confirmed; check explorer")

const confirmPollInterval = 500 * time.Millisecond

// Confirm waits until the given signature reaches the confirmed commitment.
//
// When the blockhash window used to build the transaction is known, it is
// used to bound the wait. Otherwise (or when that window expires without a
// status), a fresh window is fetched and the wait is retried once, and as the
// final fallback a direct status lookup decides. Only when all of these fail
// is ErrNotConfirmed returned.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, hw *HashWindow) error {
	if hw != nil {
		ok, err := c.confirmWindow(ctx, sig, hw)
		if ok {
			return nil
		}
		if err != nil && ctx.Err() != nil {
			return err
		}
	}

	fresh, err := c.LatestBlockhash(ctx)
	if err == nil {
		if ok, _ := c.confirmWindow(ctx, sig, fresh); ok {
			return nil
		}
	}

	ok, err := c.statusConfirmed(ctx, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfirmed, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, sig)
	}
	return nil
}

// confirmWindow polls the signature status until it confirms or the window's
// block height passes.
func (c *Client) confirmWindow(ctx context.Context, sig solana.Signature, hw *HashWindow) (bool, error) {
	for ctx.Err() == nil {
		ok, err := c.statusConfirmed(ctx, sig)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return false, err
		}
		if height > hw.LastValidBlockHeight {
			return false, nil
		}
		ctxutil.Sleep(ctx, confirmPollInterval)
	}
	return false, context.Cause(ctx)
}

func (c *Client) statusConfirmed(ctx context.Context, sig solana.Signature) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	resp, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return false, err
	}
	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return false, nil
	}
	st := resp.Value[0]
	if st.Err != nil {
		return false, fmt.Errorf("transaction %s has failed on chain: %v", sig, st.Err)
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil
	}
	return false, nil
}
