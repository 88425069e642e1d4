// Copyright (c) 2024 Nate Bag

package group

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Cleanup struct {
	cmdutil.ClientFlags
}

func (c *Cleanup) Synopsis() string {
	return "Retries liquidation and wallet retirement for a group's orphaned wallets"
}

func (c *Cleanup) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "cleanup", fset, cli.CmdFunc(c.run)
}

func (c *Cleanup) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (group-name) argument")
	}

	req := &api.GroupCleanupRequest{Group: args[0]}
	resp, err := cmdutil.Post[api.GroupCleanupResponse](ctx, &c.ClientFlags, api.GroupCleanupPath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
