// Copyright (c) 2024 Nate Bag

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

type Launches struct {
	cmdutil.ClientFlags
}

func (c *Launches) Synopsis() string {
	return "Prints wallets that launched a token and are protected from deletion"
}

func (c *Launches) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("launches", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "launches", fset, cli.CmdFunc(c.run)
}

func (c *Launches) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	resp, err := cmdutil.Post[api.LaunchListResponse](ctx, &c.ClientFlags, api.LaunchListPath, &api.LaunchListRequest{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 4, ' ', 0)
	fmt.Fprintln(tw, "TIME\tWALLET\tTOKEN\t")
	for _, l := range resp.Launches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", l.Time.Format("2006-01-02 15:04:05"), l.Wallet, l.TokenMint)
	}
	return tw.Flush()
}
