// Copyright (c) 2024 Nate Bag

// Package db implements subcommands to view and update the database
// directly.
package db

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Get struct {
	cmdutil.DBFlags
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (key) argument")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	get := func(ctx context.Context, r kv.Reader) error {
		v, err := r.Get(ctx, args[0])
		if err != nil {
			return err
		}
		data, err := io.ReadAll(v)
		if err != nil {
			return err
		}
		fmt.Printf("%x", data)
		return nil
	}
	return kv.WithReader(ctx, db, get)
}

func (c *Get) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "get", fset, cli.CmdFunc(c.run)
}

func (c *Get) Synopsis() string {
	return "Prints the value of a key in the database"
}
