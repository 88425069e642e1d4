// Copyright (c) 2024 Nate Bag

// Package trade implements subcommands to inspect the trade ledger.
package trade

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type List struct {
	cmdutil.ClientFlags

	group string
	limit int
}

func (c *List) Synopsis() string {
	return "Prints executed trades, most recent last"
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.group, "group", "", "restrict the listing to one bot group")
	fset.IntVar(&c.limit, "limit", 50, "max number of trades to print; zero for all")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	req := &api.TradeListRequest{
		Group: c.group,
		Limit: c.limit,
	}
	resp, err := cmdutil.Post[api.TradeListResponse](ctx, &c.ClientFlags, api.TradeListPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 4, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tVENUE\tWALLET\tSOL\tTOKENS\tSIGNATURE\t")
	for _, t := range resp.Trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t\n",
			t.Time.Format("2006-01-02 15:04:05"), t.Side, t.Venue, t.Wallet, t.SolAmount.StringFixed(4), t.TokenAmount, t.Signature)
	}
	return tw.Flush()
}
