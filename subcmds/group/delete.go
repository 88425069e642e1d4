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

type Delete struct {
	cmdutil.ClientFlags
}

func (c *Delete) Synopsis() string {
	return "Deletes an idle bot group configuration"
}

func (c *Delete) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("delete", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "delete", fset, cli.CmdFunc(c.run)
}

func (c *Delete) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (group-name) argument")
	}

	req := &api.GroupDeleteRequest{Group: args[0]}
	resp, err := cmdutil.Post[api.GroupDeleteResponse](ctx, &c.ClientFlags, api.GroupDeletePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
