// Copyright (c) 2024 Nate Bag

// Package group implements subcommands to manage bot groups.
package group

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Create struct {
	cmdutil.ClientFlags

	tokenMint string

	numWallets int

	fundingSOL float64

	pattern string

	minSwapSOL float64
	maxSwapSOL float64

	minInterval time.Duration
	maxInterval time.Duration

	stealthFunding bool
}

func (c *Create) Synopsis() string {
	return "Creates a new bot group"
}

func (c *Create) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("create", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.tokenMint, "token", "", "base58 mint address of the target token")
	fset.IntVar(&c.numWallets, "wallets", 0, "number of burner wallets for the group")
	fset.Float64Var(&c.fundingSOL, "funding", 0, "SOL amount transferred to each burner wallet on start")
	fset.StringVar(&c.pattern, "pattern", "", "trading pattern tag")
	fset.Float64Var(&c.minSwapSOL, "min-swap", 0, "minimum per-trade swap size in SOL")
	fset.Float64Var(&c.maxSwapSOL, "max-swap", 0, "maximum per-trade swap size in SOL")
	fset.DurationVar(&c.minInterval, "min-interval", 0, "minimum delay between trades")
	fset.DurationVar(&c.maxInterval, "max-interval", 0, "maximum delay between trades")
	fset.BoolVar(&c.stealthFunding, "stealth-funding", false, "fund wallets individually with jittered timing")
	return "create", fset, cli.CmdFunc(c.run)
}

func (c *Create) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (group-name) argument")
	}

	req := &api.GroupCreateRequest{
		Name:      args[0],
		TokenMint: c.tokenMint,

		NumWallets: c.numWallets,

		FundingSOL: decimal.NewFromFloat(c.fundingSOL),

		Pattern: c.pattern,

		MinSwapSOL: decimal.NewFromFloat(c.minSwapSOL),
		MaxSwapSOL: decimal.NewFromFloat(c.maxSwapSOL),

		MinInterval: c.minInterval,
		MaxInterval: c.maxInterval,

		StealthFunding: c.stealthFunding,
	}
	resp, err := cmdutil.Post[api.GroupCreateResponse](ctx, &c.ClientFlags, api.GroupCreatePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
