// Copyright (c) 2024 Nate Bag

package vault

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Generate struct {
	cmdutil.ClientFlags

	count int
	kind  string
}

func (c *Generate) Synopsis() string {
	return "Generates new wallets in the vault"
}

func (c *Generate) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("generate", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.IntVar(&c.count, "count", 1, "number of wallets to generate")
	fset.StringVar(&c.kind, "kind", "PRIMARY", "wallet kind: PRIMARY or BURNER")
	return "generate", fset, cli.CmdFunc(c.run)
}

func (c *Generate) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (name-prefix) argument")
	}

	req := &api.VaultGenerateRequest{
		Count:      c.count,
		NamePrefix: args[0],
		Kind:       c.kind,
	}
	resp, err := cmdutil.Post[api.VaultGenerateResponse](ctx, &c.ClientFlags, api.VaultGeneratePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
