package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/programme-lv/cctuner/internal/gatherer/tally"
	"github.com/programme-lv/cctuner/internal/harness"
	"github.com/programme-lv/cctuner/internal/history"
	"github.com/programme-lv/cctuner/internal/tuning"
)

func descriptorArg(cmd *cli.Command) (string, error) {
	path := cmd.Args().First()
	if path == "" {
		return "", errors.New("missing descriptor argument")
	}
	return path, nil
}

func tuneAction(ctx context.Context, cmd *cli.Command) error {
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
	sp, err := a.buildSpace(disc)
	if err != nil {
		return err
	}
	a.logger.Info("search space ready",
		"flags", len(sp.TunableFlags()), "params", len(sp.NumericParams()), "compiler", version.String())

	runUuid := uuid.NewString()
	summary := tally.New()
	g, closeGatherers, err := a.gatherers(ctx, runUuid, summary)
	defer closeGatherers()
	if err != nil {
		return err
	}

	work, removeWork, err := a.runWorkDir(runUuid)
	defer removeWork()
	if err != nil {
		return err
	}
	final, early := a.cfg.SavedPaths(descPath)

	h := harness.New(a.runner, sp, harness.Options{
		Toolchain:          tc,
		CompileConstraints: a.cfg.CompileConstraints(),
		RunConstraints:     a.cfg.RunConstraints(),
		WorkRoot:           work,
		EarlyStopThreshold: a.cfg.EarlyStopThreshold(),
		EarlyStopPath:      early,
		ForceKillAll:       a.cfg.ForceKillAll,
		KillAllNames:       a.cfg.KillAllNames,
		Debug:              a.cfg.Debug,
		DebugSeed:          a.cfg.Search.Seed,
	}, harness.NewStopToken(), g, a.logger)

	store, err := history.Open(a.stateRoot())
	if err != nil {
		a.logger.Warn("run history disabled", tint.Err(err))
		store = nil
	}

	driver := tuning.NewDriver(h, tuning.NewRandomSearch(sp, a.cfg.Search.Seed), tuning.Options{
		RunUuid:         runUuid,
		Program:         tc.Build.Program,
		ToolVersion:     version.Identity,
		Parallelism:     a.cfg.Search.Parallelism,
		MaxTrials:       a.cfg.Search.MaxTrials,
		TimeLimit:       a.cfg.StopAfter(),
		FinalConfigPath: final,
		Baselines:       a.cfg.Search.Baselines,
	}, g, store, a.logger)

	result, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	s := summary.Summary()
	a.logger.Info("tuning finished",
		"trials", result.Trials,
		"discarded", result.Discarded,
		"early_stop", result.EarlyStopped,
		"errors", s.States[string(harness.Error)],
		"timeouts", s.States[string(harness.Timeout)],
		"compile_time", s.CompileTime.Round(time.Millisecond),
		"best", fmt.Sprintf("%.4f", result.BestSeconds()))
	if result.Best != nil {
		a.logger.Info("best configuration saved", "path", final)
	}
	return nil
}
