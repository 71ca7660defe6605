// Package harness turns configurations into measured run times: it
// compiles the program with the configuration's flags in a private
// workspace, runs the artifact and classifies what happened.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/programme-lv/cctuner/internal/deltadebug"
	"github.com/programme-lv/cctuner/internal/descriptor"
	"github.com/programme-lv/cctuner/internal/gatherer"
	"github.com/programme-lv/cctuner/internal/invoke"
	"github.com/programme-lv/cctuner/internal/space"
)

const DefaultOutputName = "tmp.bin"

// Killer is implemented by invoke.ShellRunner.
type Killer interface {
	KillAll(ctx context.Context, names ...string) error
}

type Options struct {
	Toolchain          descriptor.Toolchain
	CompileConstraints invoke.Constraints
	RunConstraints     invoke.Constraints

	// WorkRoot holds one directory per trial.
	WorkRoot   string
	OutputName string

	// A complete run faster than EarlyStopThreshold ends the search; its
	// configuration is written to EarlyStopPath. Zero disables it.
	EarlyStopThreshold time.Duration
	EarlyStopPath      string

	// ForceKillAll kills KillAllNames before every trial.
	ForceKillAll bool
	KillAllNames []string

	// Debug minimises the flag list of every failing compile.
	Debug     bool
	DebugSeed uint64
}

type Harness struct {
	runner   invoke.Runner
	killer   Killer
	space    *space.Space
	opts     Options
	stop     *StopToken
	work     *workspaces
	gatherer gatherer.TrialGatherer
	logger   *slog.Logger
}

func New(runner invoke.Runner, sp *space.Space, opts Options, stop *StopToken,
	g gatherer.TrialGatherer, logger *slog.Logger) *Harness {
	if opts.OutputName == "" {
		opts.OutputName = DefaultOutputName
	}
	if len(opts.KillAllNames) == 0 {
		opts.KillAllNames = []string{"cc1plus"}
	}
	if g == nil {
		g = gatherer.Nop{}
	}
	h := &Harness{
		runner:   runner,
		space:    sp,
		opts:     opts,
		stop:     stop,
		work:     newWorkspaces(opts.WorkRoot),
		gatherer: g,
		logger:   logger,
	}
	if k, ok := runner.(Killer); ok {
		h.killer = k
	}
	return h
}

func (h *Harness) Space() *space.Space { return h.space }

func (h *Harness) StopToken() *StopToken { return h.stop }

// LiveWorkspaces lists trials whose workspace currently exists.
func (h *Harness) LiveWorkspaces() []string { return h.work.ids() }

// CompileAndRun measures one configuration. Failures of the compiler or of
// the program are reported in the Result; the error is only set when the
// workspace cannot be created or ctx ends.
func (h *Harness) CompileAndRun(ctx context.Context, cfg space.Configuration, trialID string) (Result, error) {
	flags, err := h.space.Flags(cfg)
	if err != nil {
		h.logger.Error("configuration does not fit the space", "trial", trialID, tint.Err(err))
		return failed(Error), nil
	}

	res, elapsed, err := h.trial(ctx, trialID, flags)
	if err != nil || res.State != Complete {
		return res, err
	}

	if h.opts.EarlyStopThreshold > 0 && elapsed < h.opts.EarlyStopThreshold && h.earlyStop(cfg, trialID, elapsed) {
		res.State = EarlyStop
	}
	return res, nil
}

// KillStrayCompilers kills leftover compiler processes when ForceKillAll is
// set. It reports whether the kill was issued: while any workspace of this
// harness is live the compilers belong to running trials and are left alone.
func (h *Harness) KillStrayCompilers(ctx context.Context) bool {
	if !h.opts.ForceKillAll || h.killer == nil {
		return false
	}
	if live := h.work.ids(); len(live) > 0 {
		h.logger.Debug("not killing compilers, trials in flight", "trials", len(live))
		return false
	}
	if err := h.killer.KillAll(ctx, h.opts.KillAllNames...); err != nil {
		h.logger.Warn("failed to kill stray compilers", tint.Err(err))
	}
	return true
}

// RunFlags compiles and runs an explicit flag list once. It never triggers
// an early stop.
func (h *Harness) RunFlags(ctx context.Context, flags []string) (Result, error) {
	res, _, err := h.trial(ctx, "flags-"+uuid.NewString(), flags)
	return res, err
}

func (h *Harness) trial(ctx context.Context, trialID string, flags []string) (res Result, elapsed time.Duration, err error) {
	ws, err := h.work.open(trialID)
	if err != nil {
		return failed(Error), 0, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			h.logger.Error("failed to clean up trial", "trial", trialID, tint.Err(cerr))
		}
	}()

	h.gatherer.StartTrial(trialID, flags)
	defer func() {
		if err == nil {
			h.gatherer.FinishTrial(trialID, string(res.State), res.Time)
		}
	}()

	compiled, err := h.compile(ctx, ws, trialID, flags)
	if err != nil {
		return failed(Error), 0, err
	}
	if compiled.Kind != Ok {
		return failed(compiled.Kind.state()), 0, nil
	}

	run, err := h.run(ctx, ws, trialID, compiled.Artifact)
	if err != nil {
		return failed(Error), 0, err
	}
	if run.Kind != Ok {
		return failed(run.Kind.state()), 0, nil
	}
	return Result{State: Complete, Time: run.Elapsed.Seconds()}, run.Elapsed, nil
}

// MeanTime compiles flags once and averages the run time of trials runs.
// Any failing run makes the mean +Inf.
func (h *Harness) MeanTime(ctx context.Context, flags []string, trials int) (float64, error) {
	if trials < 1 {
		return 0, fmt.Errorf("need at least one trial, got %d", trials)
	}
	trialID := "mean-" + uuid.NewString()
	ws, err := h.work.open(trialID)
	if err != nil {
		return math.Inf(1), err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			h.logger.Error("failed to clean up trial", "trial", trialID, tint.Err(cerr))
		}
	}()

	compiled, err := h.compile(ctx, ws, trialID, flags)
	if err != nil {
		return math.Inf(1), err
	}
	if compiled.Kind != Ok {
		return math.Inf(1), nil
	}

	total := 0.0
	for range trials {
		run, err := h.run(ctx, ws, trialID, compiled.Artifact)
		if err != nil {
			return math.Inf(1), err
		}
		if run.Kind != Ok {
			return math.Inf(1), nil
		}
		total += run.Elapsed.Seconds()
	}
	return total / float64(trials), nil
}

func (h *Harness) compile(ctx context.Context, ws *workspace, trialID string, flags []string) (CompileOutcome, error) {
	out, err := h.CompileFlags(ctx, ws.Path(), ws.File(h.opts.OutputName), flags)
	if err != nil {
		return out, err
	}
	h.gatherer.FinishCompile(trialID, gatherer.RuntimeData(out.Data))

	switch out.Kind {
	case TimedOut:
		h.logger.Warn("compiler timeout", "trial", trialID)
	case Failed:
		h.logger.Warn("compiler error", "trial", trialID, "stderr", firstLines(out.Stderr(), 5))
		if h.opts.Debug {
			h.diagnose(ctx, ws, flags)
		}
	}
	return out, nil
}

func (h *Harness) run(ctx context.Context, ws *workspace, trialID string, artifact string) (RunOutcome, error) {
	out, err := h.RunArtifact(ctx, ws.Path(), artifact)
	if err != nil {
		return out, err
	}
	h.gatherer.FinishRun(trialID, gatherer.RuntimeData(out.Data))
	if out.Kind == Failed && out.Data != nil {
		h.logger.Error("program error", "trial", trialID, "exit", out.Data.ExitCode)
	}
	return out, nil
}

// diagnose looks for a small flag set that reproduces a compile failure and
// logs it. It uses its own scratch output so the trial artifact path stays
// untouched.
func (h *Harness) diagnose(ctx context.Context, ws *workspace, flags []string) {
	output := ws.File("diagnose.bin")
	fails := func(ctx context.Context, subset []string) (bool, error) {
		out, err := h.CompileFlags(ctx, ws.Path(), output, subset)
		if err != nil {
			return false, err
		}
		return out.Kind != Ok, nil
	}

	h.logger.Error("compile error, diagnosing", "flags", len(flags))
	minimal, err := deltadebug.Minimize(ctx, flags, fails, deltadebug.Options{Seed: h.opts.DebugSeed})
	if err != nil {
		h.logger.Warn("flag minimisation stopped", tint.Err(err))
		return
	}
	h.logger.Error("compiler crashes/hangs with flags", "flags", strings.Join(minimal, " "))
}

// earlyStop reports whether this trial is the one that stopped the search.
func (h *Harness) earlyStop(cfg space.Configuration, trialID string, elapsed time.Duration) bool {
	if !h.stop.Raise(trialID, elapsed) {
		return false
	}
	h.logger.Info("early stop", "trial", trialID, "elapsed", elapsed, "threshold", h.opts.EarlyStopThreshold)
	if h.opts.EarlyStopPath != "" {
		if err := space.SaveConfiguration(h.opts.EarlyStopPath, cfg); err != nil {
			h.logger.Error("failed to save early stop configuration", tint.Err(err))
		}
	}
	h.gatherer.EarlyStop(trialID, elapsed.Seconds())
	return true
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(strings.TrimSpace(s), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// IsCanceled reports whether err comes from ctx ending rather than from
// the environment.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
