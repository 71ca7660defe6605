// Package probe finds out which optimisation flags and --param knobs a
// compiler accepts for the program being tuned.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/lmittmann/tint"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/programme-lv/cctuner/internal/cache"
	"github.com/programme-lv/cctuner/internal/descriptor"
	"github.com/programme-lv/cctuner/internal/invoke"
	"github.com/programme-lv/cctuner/internal/space"
)

const (
	targetUnsupportedDiag = "warning: this target"
	renamedDiag           = "has been renamed"
)

type Options struct {
	Toolchain   descriptor.Toolchain
	Constraints invoke.Constraints
	// ScratchRoot holds one throwaway directory per probe compile.
	ScratchRoot string
	Parallelism int
}

type Prober struct {
	runner invoke.Runner
	opts   Options
	logger *slog.Logger
}

func New(runner invoke.Runner, opts Options, logger *slog.Logger) *Prober {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = os.TempDir()
	}
	return &Prober{runner: runner, opts: opts, logger: logger}
}

func (p *Prober) query(ctx context.Context, args ...string) (string, error) {
	cmd := p.opts.Toolchain.QueryCommand(args...)
	data, err := p.runner.Run(ctx, invoke.Command{
		Shell:       cmd,
		Constraints: p.opts.Constraints,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run %q: %w", cmd, err)
	}
	if data.TimedOut {
		return "", fmt.Errorf("%q timed out", cmd)
	}
	return string(data.Stdout), nil
}

func (p *Prober) ToolVersion(ctx context.Context) (Version, error) {
	out, err := p.query(ctx, "--version")
	if err != nil {
		return Version{}, err
	}
	v := parseVersion(out)
	if v.Identity == "" {
		return Version{}, fmt.Errorf("%s --version printed nothing", p.opts.Toolchain.CC)
	}
	p.logger.Debug("compiler version", "version", v.String(), "identity", v.Identity)
	return v, nil
}

// ListFlags returns every -f flag the compiler advertises.
func (p *Prober) ListFlags(ctx context.Context) ([]string, error) {
	out, err := p.query(ctx, "--help=optimizers")
	if err != nil {
		return nil, err
	}
	return parseFlags(out), nil
}

func (p *Prober) ListParams(ctx context.Context) ([]string, error) {
	out, err := p.query(ctx, "--help=params")
	if err != nil {
		return nil, err
	}
	return parseParams(out), nil
}

// ParamDefaults reads the default and bounds of every --param from
// `cc -Q --help=params`.
func (p *Prober) ParamDefaults(ctx context.Context) (map[string]cache.ParamDefault, error) {
	out, err := p.query(ctx, "-Q", "--help=params")
	if err != nil {
		return nil, err
	}
	return parseParamDefaults(out), nil
}

// FlagWorks compiles the program with flag alone. With tryInverted set a
// -f flag is only accepted if its opposite polarity also compiles. The
// returned error is reserved for cancellation and scratch directory
// failures.
func (p *Prober) FlagWorks(ctx context.Context, flag string, tryInverted bool) (FlagRecord, error) {
	rec := FlagRecord{Flag: flag}

	verdict, err := p.compileAlone(ctx, flag)
	if err != nil {
		return rec, err
	}
	rec.Verdict = verdict
	if verdict != Works {
		p.logger.Warn("removing flag", "flag", flag, "reason", verdict.String())
		return rec, nil
	}

	if !tryInverted || !strings.HasPrefix(flag, "-f") {
		return rec, nil
	}

	inverse, err := space.InvertFlag(flag)
	if err != nil {
		return rec, err
	}
	inv, err := p.FlagWorks(ctx, inverse, false)
	if err != nil {
		return rec, err
	}
	rec.InverseChecked = true
	if !inv.Accepted() {
		p.logger.Warn("flag works but its inverse does not", "flag", flag, "inverse", inverse)
		rec.Verdict = InverseFails
	}
	return rec, nil
}

func (p *Prober) compileAlone(ctx context.Context, flag string) (Verdict, error) {
	dir, err := os.MkdirTemp(p.opts.ScratchRoot, "probe-")
	if err != nil {
		return ProbeFailed, fmt.Errorf("failed to create probe directory: %w", err)
	}
	defer os.RemoveAll(dir)

	data, err := p.runner.Run(ctx, invoke.Command{
		Shell:       p.opts.Toolchain.CompileCommand(filepath.Join(dir, "probe.bin"), []string{flag}),
		Dir:         dir,
		Constraints: p.opts.Constraints,
	})
	if ctx.Err() != nil {
		return ProbeFailed, ctx.Err()
	}
	if err != nil {
		p.logger.Warn("probe compile failed to run", "flag", flag, tint.Err(err))
		return ProbeFailed, nil
	}
	if data.TimedOut {
		return ProbeFailed, nil
	}
	if data.ExitCode != 0 {
		return CompileError, nil
	}
	stderr := data.StderrString()
	if strings.Contains(stderr, targetUnsupportedDiag) {
		return UnsupportedByTarget, nil
	}
	if strings.Contains(stderr, renamedDiag) {
		return Renamed, nil
	}
	return Works, nil
}

// WorkingFlags probes candidates in parallel and returns the accepted ones
// sorted by name.
func (p *Prober) WorkingFlags(ctx context.Context, candidates []string) ([]string, error) {
	p.logger.Info("determining which compiler flags work", "candidates", len(candidates))
	return p.filter(ctx, candidates, func(ctx context.Context, flag string) (FlagRecord, error) {
		return p.FlagWorks(ctx, flag, true)
	})
}

// WorkingParams keeps the params that have an advertised default and
// compile with --param=name=default.
func (p *Prober) WorkingParams(ctx context.Context, candidates []string, defaults map[string]cache.ParamDefault) ([]string, error) {
	known := mapset.NewThreadUnsafeSetFromMapKeys(defaults)
	usable := mapset.NewThreadUnsafeSet(candidates...).Intersect(known).ToSlice()
	slices.Sort(usable)

	p.logger.Info("determining which compiler params work", "candidates", len(usable))
	return p.filter(ctx, usable, func(ctx context.Context, param string) (FlagRecord, error) {
		rec, err := p.FlagWorks(ctx, fmt.Sprintf("--param=%s=%d", param, defaults[param].Default), false)
		rec.Flag = param
		return rec, err
	})
}

func (p *Prober) filter(ctx context.Context, candidates []string,
	check func(context.Context, string) (FlagRecord, error)) ([]string, error) {
	records := xsync.NewMapOf[string, FlagRecord]()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)
	for _, c := range candidates {
		g.Go(func() error {
			rec, err := check(gctx, c)
			if err != nil {
				return err
			}
			records.Store(c, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var accepted []string
	records.Range(func(name string, rec FlagRecord) bool {
		if rec.Accepted() {
			accepted = append(accepted, name)
		}
		return true
	})
	slices.Sort(accepted)
	return accepted, nil
}
