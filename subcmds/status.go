// Copyright (c) 2024 Nate Bag

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/visvasity/cli"

	"github.com/natebag/trenchtools/api"
	"github.com/natebag/trenchtools/subcmds/cmdutil"
)

type Status struct {
	cmdutil.ClientFlags
}

func (c *Status) Synopsis() string {
	return "Status prints daemon process health and bot group summaries"
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	pid, err := c.daemonPid(ctx)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("could not inspect daemon process %d: %w", pid, err)
	}
	cpu, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return err
	}
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return err
	}
	created, err := proc.CreateTimeWithContext(ctx)
	if err != nil {
		return err
	}
	uptime := time.Since(time.UnixMilli(created)).Round(time.Second)

	fmt.Printf("Daemon pid %d up %v cpu %.1f%% rss %dMiB\n\n", pid, uptime, cpu, mem.RSS>>20)

	resp, err := cmdutil.Post[api.GroupListResponse](ctx, &c.ClientFlags, api.GroupListPath, &api.GroupListRequest{})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 4, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tWALLETS\tTRADES\tVOLUME (SOL)\t")
	for _, g := range resp.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t\n", g.Name, g.Status, g.NumWallets, g.NumTrades, g.VolumeSOL.StringFixed(4))
	}
	return tw.Flush()
}

func (c *Status) daemonPid(ctx context.Context) (int, error) {
	addrURL := c.AddressURL()
	addrURL.Path = path.Join(addrURL.Path, "/pid")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addrURL.String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HttpClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("http status code %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid pid response %q: %w", data, err)
	}
	return pid, nil
}
