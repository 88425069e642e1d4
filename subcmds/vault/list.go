// Copyright (c) 2024 Nate Bag

package vault

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
	return "Prints all vault wallets"
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

	resp, err := cmdutil.Post[api.VaultListResponse](ctx, &c.ClientFlags, api.VaultListPath, &api.VaultListRequest{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 4, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tADDRESS\tLAUNCHED\t")
	for _, w := range resp.Wallets {
		launched := ""
		if w.Launched {
			launched = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", w.Name, w.Kind, w.Address, launched)
	}
	return tw.Flush()
}
