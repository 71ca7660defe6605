package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/programme-lv/cctuner/internal/cache"
	"github.com/programme-lv/cctuner/internal/config"
	"github.com/programme-lv/cctuner/internal/descriptor"
	"github.com/programme-lv/cctuner/internal/environment"
	"github.com/programme-lv/cctuner/internal/gatherer"
	"github.com/programme-lv/cctuner/internal/gatherer/natsgath"
	"github.com/programme-lv/cctuner/internal/gatherer/sqsgath"
	"github.com/programme-lv/cctuner/internal/gatherer/termgath"
	"github.com/programme-lv/cctuner/internal/invoke"
	"github.com/programme-lv/cctuner/internal/probe"
	"github.com/programme-lv/cctuner/internal/space"
	"github.com/programme-lv/cctuner/internal/xdg"
)

const appName = "cctuner"

type app struct {
	cfg    config.Config
	env    *environment.EnvConfig
	dirs   *xdg.Dirs
	logger *slog.Logger
	runner *invoke.ShellRunner
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))

	env, err := environment.ReadEnvConfig(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	runner, err := invoke.NewShellRunner(logger)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, env: env, dirs: xdg.NewDirs(), logger: logger, runner: runner}, nil
}

// applyFlags lets explicitly given flags win over the config file.
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	str := func(name string, dst *string) {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	float := func(name string, dst *float64) {
		if cmd.IsSet(name) {
			*dst = cmd.Float(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if cmd.IsSet(name) {
			*dst = cmd.Bool(name)
		}
	}

	str("run-dir", &cfg.RunDir)
	str("cc", &cfg.CC)
	str("compile-template", &cfg.CompileTemplate)
	str("saved-name", &cfg.SavedName)
	str("log-level", &cfg.LogLevel)
	float("compile-limit", &cfg.Limits.CompileSeconds)
	float("run-limit", &cfg.Limits.RunSeconds)
	float("early-time", &cfg.EarlyTime)
	float("stop-after", &cfg.Search.StopAfterSeconds)
	boolean("debug", &cfg.Debug)
	boolean("force-killall", &cfg.ForceKillAll)
	boolean("no-cached-flags", &cfg.NoCachedFlags)
	boolean("verbose", &cfg.Gatherers.Verbose)
	boolean("nats", &cfg.Gatherers.Nats)
	boolean("sqs", &cfg.Gatherers.Sqs)

	if cmd.IsSet("memory-limit") {
		cfg.Limits.MemoryKiB = int64(cmd.Int("memory-limit"))
	}
	if cmd.IsSet("scaler") {
		cfg.Scaler = int64(cmd.Int("scaler"))
	}
	if cmd.IsSet("parallelism") {
		cfg.Search.Parallelism = int(cmd.Int("parallelism"))
	}
	if cmd.IsSet("test-limit") {
		cfg.Search.MaxTrials = int(cmd.Int("test-limit"))
	}
	if cmd.IsSet("seed") {
		cfg.Search.Seed = uint64(cmd.Int("seed"))
	}
	if cmd.IsSet("no-baselines") {
		cfg.Search.Baselines = !cmd.Bool("no-baselines")
	}
}

func (a *app) toolchain(descriptorPath string) (descriptor.Toolchain, error) {
	d, err := descriptor.Load(descriptorPath)
	if err != nil {
		return descriptor.Toolchain{}, err
	}
	runDir, err := filepath.Abs(a.cfg.RunDir)
	if err != nil {
		return descriptor.Toolchain{}, fmt.Errorf("failed to resolve run dir: %w", err)
	}
	return descriptor.Toolchain{
		CC:       a.cfg.CC,
		Template: descriptor.Template(a.cfg.CompileTemplate),
		Build:    d.Resolve(runDir),
	}, nil
}

func (a *app) workRoot() (string, error) {
	root, err := filepath.Abs(a.cfg.WorkDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve work dir: %w", err)
	}
	if err := xdg.EnsureDir(root); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	return root, nil
}

// runWorkDir returns a fresh directory for one run's trial workspaces and a
// func that removes it.
func (a *app) runWorkDir(name string) (string, func(), error) {
	work, err := a.workRoot()
	if err != nil {
		return "", func() {}, err
	}
	dir := filepath.Join(work, name)
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			a.logger.Warn("failed to remove work dir", "dir", dir, tint.Err(err))
		}
	}
	return dir, cleanup, nil
}

func (a *app) cacheRoot() string {
	if a.cfg.CacheDir != "" {
		return a.cfg.CacheDir
	}
	return a.dirs.AppCacheDir(appName)
}

func (a *app) stateRoot() string {
	if a.cfg.StateDir != "" {
		return a.cfg.StateDir
	}
	return a.dirs.AppStateDir(appName)
}

func (a *app) prober(tc descriptor.Toolchain, scratch string) *probe.Prober {
	return probe.New(a.runner, probe.Options{
		Toolchain:   tc,
		Constraints: a.cfg.CompileConstraints(),
		ScratchRoot: scratch,
		Parallelism: a.cfg.Search.Parallelism,
	}, a.logger)
}

// discover returns the compiler identity and what it accepts, from the
// cache when possible.
func (a *app) discover(ctx context.Context, tc descriptor.Toolchain) (probe.Version, probe.Discovery, error) {
	work, err := a.workRoot()
	if err != nil {
		return probe.Version{}, probe.Discovery{}, err
	}
	p := a.prober(tc, work)

	version, err := p.ToolVersion(ctx)
	if err != nil {
		return version, probe.Discovery{}, fmt.Errorf("failed to identify compiler: %w", err)
	}
	c, err := cache.Open(a.cacheRoot(), version.Identity, a.cfg.NoCachedFlags)
	if err != nil {
		return version, probe.Discovery{}, err
	}
	disc, err := p.Discover(ctx, c)
	return version, disc, err
}

func (a *app) buildSpace(disc probe.Discovery) (*space.Space, error) {
	return space.Build(space.BuildInput{
		Flags:        disc.Flags,
		Params:       disc.Params,
		Defaults:     disc.Defaults,
		Scaler:       a.cfg.Scaler,
		Incompatible: a.cfg.IncompatibleFlags,
	})
}

// gatherers assembles the configured event sinks. The returned func
// releases their connections.
func (a *app) gatherers(ctx context.Context, runUuid string, extra ...gatherer.TrialGatherer) (gatherer.TrialGatherer, func(), error) {
	multi := gatherer.Multi(extra)
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if a.cfg.Gatherers.Terminal {
		multi = append(multi, termgath.New(os.Stdout, a.cfg.Gatherers.Verbose))
	}
	if a.cfg.Gatherers.Nats {
		if a.env.NatsURL == "" {
			return nil, closeAll, fmt.Errorf("nats gatherer enabled but CCTUNER_NATS_URL is not set")
		}
		nc, err := nats.Connect(a.env.NatsURL, nats.Name(appName))
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, nc.Close)
		multi = append(multi, natsgath.New(nc, runUuid, a.env.NatsSubject, a.logger))
	}
	if a.cfg.Gatherers.Sqs {
		if a.env.SqsQueueURL == "" {
			return nil, closeAll, fmt.Errorf("sqs gatherer enabled but CCTUNER_SQS_QUEUE_URL is not set")
		}
		g, err := sqsgath.New(ctx, a.env.SqsRegion, runUuid, a.env.SqsQueueURL, a.logger)
		if err != nil {
			return nil, closeAll, err
		}
		multi = append(multi, g)
	}
	return multi, closeAll, nil
}
