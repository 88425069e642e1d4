// Copyright (c) 2024 Nate Bag

// Package jupiter implements the aggregator swap venue over the Jupiter v6
// HTTP api.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"

	"github.com/natebag/trenchtools/chain"
	"github.com/natebag/trenchtools/dex"
)

var errInvalidQuote = errors.New("quote was produced by a different venue")

const VenueName = "jupiter"

type Options struct {
	BaseURL     string
	HttpTimeout time.Duration
	RateLimit   rate.Limit
}

func (v *Options) setDefaults() {
	if v.BaseURL == "" {
		v.BaseURL = "https://quote-api.jup.ag/v6"
	}
	if v.HttpTimeout == 0 {
		v.HttpTimeout = 10 * time.Second
	}
	if v.RateLimit == 0 {
		v.RateLimit = 2
	}
}

type Client struct {
	opts Options

	chain *chain.Client

	client *http.Client

	limiter *rate.Limiter
}

func New(chain *chain.Client, opts *Options) *Client {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()
	return &Client{
		opts:    v,
		chain:   chain,
		client:  &http.Client{Timeout: v.HttpTimeout},
		limiter: rate.NewLimiter(v.RateLimit, 1),
	}
}

func (c *Client) Name() string {
	return VenueName
}

type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

func (c *Client) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint64) (*dex.Quote, error) {
	values := make(url.Values)
	values.Set("inputMint", inputMint.String())
	values.Set("outputMint", outputMint.String())
	values.Set("amount", strconv.FormatUint(amount, 10))
	values.Set("slippageBps", strconv.FormatUint(slippageBps, 10))

	raw, err := c.httpGet(ctx, "/quote", values)
	if err != nil {
		return nil, fmt.Errorf("could not fetch quote: %w", err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("could not unmarshal quote response: %w", err)
	}
	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outAmount %q: %w", resp.OutAmount, err)
	}

	return &dex.Quote{
		Venue:       VenueName,
		InputMint:   inputMint,
		OutputMint:  outputMint,
		InAmount:    amount,
		OutAmount:   out,
		SlippageBps: slippageBps,
		Raw:         raw,
	}, nil
}

type swapRequest struct {
	QuoteResponse   json.RawMessage `json:"quoteResponse"`
	UserPublicKey   string          `json:"userPublicKey"`
	WrapUnwrapSOL   bool            `json:"wrapAndUnwrapSol"`
	DynamicSlippage bool            `json:"dynamicSlippage"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

func (c *Client) Execute(ctx context.Context, q *dex.Quote, signer solana.PrivateKey) (*dex.Result, error) {
	if q.Venue != VenueName {
		return nil, fmt.Errorf("quote venue %q is not %q: %w", q.Venue, VenueName, errInvalidQuote)
	}

	req := &swapRequest{
		QuoteResponse: q.Raw,
		UserPublicKey: signer.PublicKey().String(),
		WrapUnwrapSOL: true,
	}
	raw, err := c.httpPost(ctx, "/swap", req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch swap transaction: %w", err)
	}
	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("could not unmarshal swap response: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("could not decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, fmt.Errorf("could not deserialize swap transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
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
	// Aggregator transactions carry their own recent blockhash, so
	// confirmation starts with a direct status lookup.
	if err := c.chain.Confirm(ctx, sig, nil); err != nil {
		return nil, fmt.Errorf("swap %s: %w", sig, err)
	}
	return &dex.Result{Signature: sig, OutAmount: q.OutAmount}, nil
}

func (c *Client) httpGet(ctx context.Context, subpath string, values url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.opts.BaseURL + subpath + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.httpDo(req)
}

func (c *Client) httpPost(ctx context.Context, subpath string, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+subpath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpDo(req)
}

func (c *Client) httpDo(req *http.Request) (json.RawMessage, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}
