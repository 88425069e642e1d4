// Copyright (c) 2024 Nate Bag

package group

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
}

func (c *List) Synopsis() string {
	return "Prints all bot groups with their live status"
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	resp, err := cmdutil.Post[api.GroupListResponse](ctx, &c.ClientFlags, api.GroupListPath, &api.GroupListRequest{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 4, ' ', 0)
	fmt.Fprintln(tw, "NAME\tUID\tTOKEN\tSTATUS\tWALLETS\tTRADES\tVOLUME (SOL)\t")
	for _, g := range resp.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t\n",
			g.Name, g.UID, g.TokenMint, g.Status, g.NumWallets, g.NumTrades, g.VolumeSOL.StringFixed(4))
	}
	return tw.Flush()
}
