// Copyright (c) 2024 Nate Bag

// Package vault implements subcommands to manage the wallet vault.
package vault

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/visvasity/cli"
	"golang.org/x/term"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Unlock struct {
	cmdutil.ClientFlags

	password string
}

func (c *Unlock) Synopsis() string {
	return "Unlocks the daemon's wallet vault"
}

func (c *Unlock) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("unlock", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.password, "password", "", "vault password; prompted when empty")
	return "unlock", fset, cli.CmdFunc(c.run)
}

func (c *Unlock) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	password := c.password
	if len(password) == 0 {
		fmt.Print("Vault password: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("could not read password: %w", err)
		}
		password = string(data)
	}

	req := &api.VaultUnlockRequest{Password: password}
	resp, err := cmdutil.Post[api.VaultUnlockResponse](ctx, &c.ClientFlags, api.VaultUnlockPath, req)
	if err != nil {
		return err
	}
	fmt.Printf("vault unlocked with %d wallets\n", resp.NumWallets)
	return nil
}
