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

type Resume struct {
	cmdutil.ClientFlags
}

func (c *Resume) Synopsis() string {
	return "Resumes trade loops on a group's orphaned wallets without re-funding"
}

func (c *Resume) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("resume", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "resume", fset, cli.CmdFunc(c.run)
}

func (c *Resume) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (group-name) argument")
	}

	req := &api.GroupResumeRequest{Group: args[0]}
	resp, err := cmdutil.Post[api.GroupResumeResponse](ctx, &c.ClientFlags, api.GroupResumePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}
