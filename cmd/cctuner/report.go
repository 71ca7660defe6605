package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/programme-lv/cctuner/internal/harness"
	"github.com/programme-lv/cctuner/internal/history"
	"github.com/programme-lv/cctuner/internal/importance"
)

func histogramAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	store, err := history.Open(a.stateRoot())
	if err != nil {
		return err
	}
	records, err := store.ReadAll()
	if err != nil {
		return err
	}

	shares := history.Histogram(records, cmd.String("program"), int(cmd.Int("top")))
	if len(shares) == 0 {
		fmt.Fprintf(os.Stdout, "no successful runs in %s\n", store.Path())
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Flag", "Share"})
	for i, s := range shares {
		t.AppendRow(table.Row{i + 1, s.Flag, fmt.Sprintf("%.1f%%", s.Share*100)})
	}
	t.Render()
	return nil
}

func importanceAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: importance <descriptor.json> <config.json>")
	}
	descPath, cfgPath := cmd.Args().Get(0), cmd.Args().Get(1)

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	tc, err := a.toolchain(descPath)
	if err != nil {
		return err
	}
	_, disc, err := a.discover(ctx, tc)
	if err != nil {
		return err
	}
	sp, err := a.buildSpace(disc)
	if err != nil {
		return err
	}
	cfg, err := sp.LoadConfiguration(cfgPath)
	if err != nil {
		return err
	}
	flags, err := sp.Flags(cfg)
	if err != nil {
		return err
	}

	work, removeWork, err := a.runWorkDir("importance-" + uuid.NewString())
	defer removeWork()
	if err != nil {
		return err
	}
	h := harness.New(a.runner, sp, harness.Options{
		Toolchain:          tc,
		CompileConstraints: a.cfg.CompileConstraints(),
		RunConstraints:     a.cfg.RunConstraints(),
		WorkRoot:           work,
		KillAllNames:       a.cfg.KillAllNames,
	}, harness.NewStopToken(), nil, a.logger)

	report, err := importance.Analyze(ctx, h, flags, int(cmd.Int("trials")), a.logger)
	if err != nil {
		return err
	}
	if lb := report.LoadBearing(); len(lb) > 0 {
		a.logger.Warn("removing these flags breaks the program", "flags", lb)
	}
	return report.Render(os.Stdout, int(cmd.Int("top")), importance.Format(cmd.String("format")))
}
