// Copyright (c) 2024 Nate Bag

// Package pumpfun implements the bonding-curve swap venue. Tokens trade here
// until the curve completes, after which swaps must go through the
// aggregator.
package pumpfun

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/dex"
)

const VenueName = "pumpfun"

var (
	ProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	globalAccount  = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	feeRecipient   = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	eventAuthority = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHGGqqoCsbuKXzLDxDTGAtcm")

	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// ErrCurveComplete is returned when a swap is attempted against a graduated
// curve.
var ErrCurveComplete = errors.New("bonding curve is complete")

// BondingCurve is the on-chain curve account layout, minus the 8 byte
// account discriminator prefix.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

type Client struct {
	chain *chain.Client
}

func New(chain *chain.Client) *Client {
	return &Client{chain: chain}
}

func (c *Client) Name() string {
	return VenueName
}

func curveAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), mint.Bytes()}, ProgramID)
	return addr, err
}

func (c *Client) fetchCurve(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, *BondingCurve, error) {
	addr, err := curveAddress(mint)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("could not derive curve address: %w", err)
	}
	data, err := c.chain.AccountData(ctx, addr)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("could not fetch curve account %s: %w", addr, err)
	}
	if len(data) < 8 {
		return solana.PublicKey{}, nil, fmt.Errorf("curve account %s is truncated", addr)
	}
	curve := new(BondingCurve)
	if err := bin.NewBorshDecoder(data[8:]).Decode(curve); err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("could not decode curve account %s: %w", addr, err)
	}
	return addr, curve, nil
}

// IsPreGraduation reports whether the mint still trades on its bonding
// curve. A missing curve account or a completed curve both mean the
// aggregator owns the token.
func (c *Client) IsPreGraduation(ctx context.Context, mint solana.PublicKey) (bool, error) {
	addr, err := curveAddress(mint)
	if err != nil {
		return false, err
	}
	ok, err := c.chain.AccountExists(ctx, addr)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	_, curve, err := c.fetchCurve(ctx, mint)
	if err != nil {
		return false, err
	}
	return !curve.Complete, nil
}

func mulDiv(a, b, d uint64) uint64 {
	num := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return new(big.Int).Quo(num, new(big.Int).SetUint64(d)).Uint64()
}

// buyOut prices a SOL-to-token swap against the constant product reserves.
func (b *BondingCurve) buyOut(lamports uint64) uint64 {
	if b.VirtualSolReserves == 0 {
		return 0
	}
	out := mulDiv(lamports, b.VirtualTokenReserves, b.VirtualSolReserves+lamports)
	if out > b.RealTokenReserves {
		out = b.RealTokenReserves
	}
	return out
}

// sellOut prices a token-to-SOL swap.
func (b *BondingCurve) sellOut(tokens uint64) uint64 {
	if b.VirtualTokenReserves == 0 {
		return 0
	}
	return mulDiv(tokens, b.VirtualSolReserves, b.VirtualTokenReserves+tokens)
}

func (c *Client) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint64) (*dex.Quote, error) {
	mint := outputMint
	isBuy := inputMint.Equals(solana.SolMint) || inputMint.IsZero()
	if !isBuy {
		mint = inputMint
	}
	_, curve, err := c.fetchCurve(ctx, mint)
	if err != nil {
		return nil, err
	}
	if curve.Complete {
		return nil, fmt.Errorf("token %s: %w", mint, ErrCurveComplete)
	}

	var out uint64
	if isBuy {
		out = curve.buyOut(amount)
	} else {
		out = curve.sellOut(amount)
	}
	if out == 0 {
		return nil, fmt.Errorf("curve quote for %d of %s is empty", amount, inputMint)
	}
	return &dex.Quote{
		Venue:       VenueName,
		InputMint:   inputMint,
		OutputMint:  outputMint,
		InAmount:    amount,
		OutAmount:   out,
		SlippageBps: slippageBps,
	}, nil
}

func (c *Client) Execute(ctx context.Context, q *dex.Quote, signer solana.PrivateKey) (*dex.Result, error) {
	if q.Venue != VenueName {
		return nil, fmt.Errorf("quote venue %q is not %q", q.Venue, VenueName)
	}

	isBuy := q.InputMint.Equals(solana.SolMint) || q.InputMint.IsZero()
	mint := q.OutputMint
	if !isBuy {
		mint = q.InputMint
	}

	curveAddr, err := curveAddress(mint)
	if err != nil {
		return nil, err
	}
	curveATA, _, err := solana.FindAssociatedTokenAddress(curveAddr, mint)
	if err != nil {
		return nil, fmt.Errorf("could not derive curve token account: %w", err)
	}
	user := signer.PublicKey()
	userATA, _, err := solana.FindAssociatedTokenAddress(user, mint)
	if err != nil {
		return nil, fmt.Errorf("could not derive user token account: %w", err)
	}

	var insts []solana.Instruction
	var data []byte
	if isBuy {
		// Tolerate slippage through the max cost bound; the token
		// amount in the instruction is the quoted output.
		maxCost := withSlippageUp(q.InAmount, q.SlippageBps)
		data = encodeSwapArgs(buyDiscriminator, q.OutAmount, maxCost)
		insts = append(insts, ata.NewCreateInstruction(user, user, mint).Build())
	} else {
		minOut := withSlippageDown(q.OutAmount, q.SlippageBps)
		data = encodeSwapArgs(sellDiscriminator, q.InAmount, minOut)
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(globalAccount, false, false),
		solana.NewAccountMeta(feeRecipient, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(curveAddr, true, false),
		solana.NewAccountMeta(curveATA, true, false),
		solana.NewAccountMeta(userATA, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	if isBuy {
		metas = append(metas,
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
			solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		)
	} else {
		metas = append(metas,
			solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		)
	}
	metas = append(metas,
		solana.NewAccountMeta(eventAuthority, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
	)
	insts = append(insts, solana.NewInstruction(ProgramID, metas, data))

	hw, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(insts, hw.Blockhash, solana.TransactionPayer(user))
	if err != nil {
		return nil, fmt.Errorf("could not build swap transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(user) {
			return &signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("could not sign swap transaction: %w", err)
	}

	sig, err := c.chain.Send(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("could not send swap transaction: %w", err)
	}
	if err := c.chain.Confirm(ctx, sig, hw); err != nil {
		return nil, fmt.Errorf("swap %s: %w", sig, err)
	}
	return &dex.Result{Signature: sig, OutAmount: q.OutAmount}, nil
}

func encodeSwapArgs(discriminator []byte, amount, bound uint64) []byte {
	data := make([]byte, 0, 24)
	data = append(data, discriminator...)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = binary.LittleEndian.AppendUint64(data, bound)
	return data
}

func withSlippageUp(v, bps uint64) uint64 {
	return v + v*bps/10_000
}

func withSlippageDown(v, bps uint64) uint64 {
	return v - v*bps/10_000
}
