// Copyright (c) 2024 Nate Bag

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

type Update struct {
	cmdutil.ClientFlags

	fundingSOL float64

	pattern string

	minSwapSOL float64
	maxSwapSOL float64

	minInterval time.Duration
	maxInterval time.Duration

	stealthFunding bool
}

func (c *Update) Synopsis() string {
	return "Updates mutable settings of an idle bot group"
}

func (c *Update) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("update", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Float64Var(&c.fundingSOL, "funding", 0, "SOL amount transferred to each burner wallet on start")
	fset.StringVar(&c.pattern, "pattern", "", "trading pattern tag")
	fset.Float64Var(&c.minSwapSOL, "min-swap", 0, "minimum per-trade swap size in SOL")
	fset.Float64Var(&c.maxSwapSOL, "max-swap", 0, "maximum per-trade swap size in SOL")
	fset.DurationVar(&c.minInterval, "min-interval", 0, "minimum delay between trades")
	fset.DurationVar(&c.maxInterval, "max-interval", 0, "maximum delay between trades")
	fset.BoolVar(&c.stealthFunding, "stealth-funding", false, "fund wallets individually with jittered timing")
	return "update", fset, cli.CmdFunc(c.run)
}

func (c *Update) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (group-name) argument")
	}

	req := &api.GroupUpdateRequest{
		Group: args[0],

		FundingSOL: decimal.NewFromFloat(c.fundingSOL),

		Pattern: c.pattern,

		MinSwapSOL: decimal.NewFromFloat(c.minSwapSOL),
		MaxSwapSOL: decimal.NewFromFloat(c.maxSwapSOL),

		MinInterval: c.minInterval,
		MaxInterval: c.maxInterval,

		StealthFunding: c.stealthFunding,
	}
	resp, err := cmdutil.Post[api.GroupUpdateResponse](ctx, &c.ClientFlags, api.GroupUpdatePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
