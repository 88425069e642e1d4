// Copyright (c) 2024 Nate Bag

package db

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Set struct {
	cmdutil.DBFlags
}

func (c *Set) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("needs two (key, value) arguments")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	set := func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Set(ctx, args[0], strings.NewReader(args[1]))
	}
	return kv.WithReadWriter(ctx, db, set)
}

func (c *Set) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "set", fset, cli.CmdFunc(c.run)
}

func (c *Set) Synopsis() string {
	return "Updates the value for a key in the database"
}
