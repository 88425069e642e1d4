// Copyright (c) 2024 Nate Bag

package vault

import (
	"context"
	"flag"
	"fmt"

	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Lock struct {
	cmdutil.ClientFlags
}

func (c *Lock) Synopsis() string {
	return "Locks the daemon's wallet vault"
}

func (c *Lock) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("lock", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "lock", fset, cli.CmdFunc(c.run)
}

func (c *Lock) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	if _, err := cmdutil.Post[api.VaultLockResponse](ctx, &c.ClientFlags, api.VaultLockPath, &api.VaultLockRequest{}); err != nil {
		return err
	}
	fmt.Println("vault locked")
	return nil
}
