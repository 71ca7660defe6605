package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

func probeAction(ctx context.Context, cmd *cli.Command) error {
	descPath, err := descriptorArg(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	tc, err := a.toolchain(descPath)
	if err != nil {
		return err
	}
	version, disc, err := a.discover(ctx, tc)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(version.String())
	t.AppendHeader(table.Row{"Kind", "Name", "Default", "Min", "Max"})
	for _, f := range disc.Flags {
		t.AppendRow(table.Row{"flag", f, "", "", ""})
	}
	for _, p := range disc.Params {
		d := disc.Defaults[p]
		t.AppendRow(table.Row{"param", p, d.Default, d.Min, d.Max})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d flags, %d params", len(disc.Flags), len(disc.Params))})
	t.Render()

	return nil
}
