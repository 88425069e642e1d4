// Copyright (c) 2024 Nate Bag

package main

import (
	"context"
	"log"
	"os"

	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/subcmds"
	"github.com/natebag/trenchtools/subcmds/db"
	"github.com/natebag/trenchtools/subcmds/group"
	"github.com/natebag/trenchtools/subcmds/trade"
	"github.com/natebag/trenchtools/subcmds/vault"
)

func main() {
	groupCmds := []cli.Command{
		new(group.Create),
		new(group.Update),
		new(group.Delete),
		new(group.List),
		new(group.Status),
		new(group.Start),
		new(group.Stop),
		new(group.Resume),
		new(group.Cleanup),
	}

	vaultCmds := []cli.Command{
		new(vault.Unlock),
		new(vault.Lock),
		new(vault.List),
		new(vault.Generate),
	}

	tradeCmds := []cli.Command{
		new(trade.List),
		new(trade.Launches),
	}

	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Set),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Status),
		cli.NewGroup("group", "Manage bot groups", groupCmds...),
		cli.NewGroup("vault", "Manage the wallet vault", vaultCmds...),
		cli.NewGroup("trade", "Inspect executed trades and token launches", tradeCmds...),
		cli.NewGroup("db", "View/update database directly", dbCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
