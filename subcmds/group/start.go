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

type Start struct {
	cmdutil.ClientFlags
}

func (c *Start) Synopsis() string {
	return "Starts a bot group: generates wallets, funds them and arms trade loops"
}

func (c *Start) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("start", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "start", fset, cli.CmdFunc(c.run)
}

func (c *Start) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (group-name) argument")
	}

	req := &api.GroupStartRequest{Group: args[0]}
	resp, err := cmdutil.Post[api.GroupStartResponse](ctx, &c.ClientFlags, api.GroupStartPath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
