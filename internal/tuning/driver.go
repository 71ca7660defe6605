// Package tuning runs the search: it asks an Engine for configurations,
// measures them with the harness in parallel and keeps the best one.
package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/programme-lv/cctuner/internal/gatherer"
	"github.com/programme-lv/cctuner/internal/harness"
	"github.com/programme-lv/cctuner/internal/history"
	"github.com/programme-lv/cctuner/internal/space"
)

// ErrEarlyStop is the cancellation cause once a trial has raised the stop
// token. It marks a successful end of the search.
var ErrEarlyStop = errors.New("early stop")

type Options struct {
	RunUuid     string
	Program     string
	ToolVersion string

	Parallelism int
	// MaxTrials and TimeLimit bound the search; zero means unbounded.
	MaxTrials int
	TimeLimit time.Duration

	// FinalConfigPath receives the best configuration.
	FinalConfigPath string
	Baselines       bool
}

type Best struct {
	TrialID string
	Config  space.Configuration
	Flags   []string
	Result  harness.Result
}

type Summary struct {
	RunUuid      string
	Trials       int
	Discarded    int
	EarlyStopped bool
	Best         *Best
	Baselines    []harness.Result
}

func (s *Summary) BestSeconds() float64 {
	if s.Best == nil {
		return math.Inf(1)
	}
	return s.Best.Result.Time
}

type Driver struct {
	h        *harness.Harness
	engine   Engine
	opts     Options
	gatherer gatherer.TrialGatherer
	history  *history.Store
	logger   *slog.Logger

	mu      sync.Mutex
	summary Summary

	// running counts trials between enterTrial and leaveTrial
	runningMu sync.Mutex
	running   int
}

// NewDriver wires a harness and an engine. store may be nil.
func NewDriver(h *harness.Harness, engine Engine, opts Options, g gatherer.TrialGatherer,
	store *history.Store, logger *slog.Logger) *Driver {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if g == nil {
		g = gatherer.Nop{}
	}
	return &Driver{
		h:        h,
		engine:   engine,
		opts:     opts,
		gatherer: g,
		history:  store,
		logger:   logger,
		summary:  Summary{RunUuid: opts.RunUuid},
	}
}

func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	d.gatherer.StartTuning(d.opts.Program, d.opts.ToolVersion, d.h.Space().Len())

	if d.opts.Baselines {
		if err := d.runBaselines(ctx); err != nil {
			return d.finish(started, err)
		}
	}

	err := d.search(ctx)
	return d.finish(started, err)
}

// runBaselines logs how the plain optimisation levels perform.
func (d *Driver) runBaselines(ctx context.Context) error {
	for level := range 4 {
		d.h.KillStrayCompilers(ctx)
		res, err := d.h.RunFlags(ctx, []string{fmt.Sprintf("-O%d", level)})
		if err != nil {
			return fmt.Errorf("failed to run baseline -O%d: %w", level, err)
		}
		d.summary.Baselines = append(d.summary.Baselines, res)
	}
	b := d.summary.Baselines
	d.logger.Info(fmt.Sprintf("baseline perfs -O0=%.4f -O1=%.4f -O2=%.4f -O3=%.4f",
		b[0].Time, b[1].Time, b[2].Time, b[3].Time))
	return nil
}

func (d *Driver) search(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	if d.opts.TimeLimit > 0 {
		var stopTimer context.CancelFunc
		ctx, stopTimer = context.WithTimeout(ctx, d.opts.TimeLimit)
		defer stopTimer()
	}

	stop := d.h.StopToken()
	go func() {
		select {
		case <-stop.Done():
			cancel(ErrEarlyStop)
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Parallelism)

	for i := 0; d.opts.MaxTrials == 0 || i < d.opts.MaxTrials; i++ {
		if stop.Raised() || gctx.Err() != nil {
			break
		}
		cfg, err := d.engine.Propose(gctx)
		if err != nil {
			if gctx.Err() != nil {
				break
			}
			cancel(err)
			_ = g.Wait()
			return fmt.Errorf("engine failed to propose: %w", err)
		}
		trialID := strconv.Itoa(i)
		g.Go(func() error {
			d.enterTrial(gctx)
			defer d.leaveTrial()
			return d.runTrial(gctx, cfg, trialID)
		})
	}

	err := g.Wait()
	if stop.Raised() {
		cancel(ErrEarlyStop)
	}
	switch {
	case errors.Is(context.Cause(ctx), ErrEarlyStop):
		d.summary.EarlyStopped = true
		return nil
	case err != nil:
		return err
	case parent.Err() != nil:
		return parent.Err()
	}
	return nil
}

// enterTrial kills stray compilers when no other trial is running. A trial
// that starts meanwhile waits until the kill is done.
func (d *Driver) enterTrial(ctx context.Context) {
	d.runningMu.Lock()
	defer d.runningMu.Unlock()
	if d.running == 0 {
		d.h.KillStrayCompilers(ctx)
	}
	d.running++
}

func (d *Driver) leaveTrial() {
	d.runningMu.Lock()
	defer d.runningMu.Unlock()
	d.running--
}

func (d *Driver) runTrial(ctx context.Context, cfg space.Configuration, trialID string) error {
	res, err := d.h.CompileAndRun(ctx, cfg, trialID)
	stopped := d.h.StopToken().Raised()
	if err != nil {
		if errors.Is(err, harness.ErrWorkspace) {
			return err
		}
		if harness.IsCanceled(err) || stopped {
			d.discard()
			return nil
		}
		return err
	}
	if stopped && res.State != harness.EarlyStop {
		d.discard()
		return nil
	}

	d.engine.Observe(cfg, res)
	d.observe(cfg, trialID, res)
	return nil
}

func (d *Driver) discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summary.Discarded++
}

func (d *Driver) observe(cfg space.Configuration, trialID string, res harness.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summary.Trials++
	if !res.Finished() {
		return
	}
	if d.summary.Best != nil && res.Time >= d.summary.Best.Result.Time {
		return
	}
	flags, err := d.h.Space().Flags(cfg)
	if err != nil {
		return
	}
	d.summary.Best = &Best{TrialID: trialID, Config: cfg.Clone(), Flags: flags, Result: res}
	d.logger.Info("new best", "trial", trialID, "time", res.Time, "state", res.State)
}

func (d *Driver) finish(started time.Time, runErr error) (*Summary, error) {
	d.mu.Lock()
	summary := d.summary
	d.mu.Unlock()

	if summary.Best != nil && d.opts.FinalConfigPath != "" {
		if err := space.SaveConfiguration(d.opts.FinalConfigPath, summary.Best.Config); err != nil {
			runErr = errors.Join(runErr, err)
		} else {
			d.logger.Info("best flags written", "path", d.opts.FinalConfigPath)
		}
	}

	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	var bestFlags []string
	if summary.Best != nil {
		bestFlags = summary.Best.Flags
	}
	d.gatherer.FinishTuning(bestFlags, summary.BestSeconds(), errMsg)

	if d.history != nil {
		if err := d.history.Append(d.record(started, summary, runErr)); err != nil {
			d.logger.Error("failed to record run in history", tint.Err(err))
		}
	}

	return &summary, runErr
}

func (d *Driver) record(started time.Time, s Summary, runErr error) history.Record {
	rec := history.Record{
		RunUuid:     s.RunUuid,
		Program:     d.opts.Program,
		ToolVersion: d.opts.ToolVersion,
		StartedAt:   started.UTC(),
		FinishedAt:  time.Now().UTC(),
		Trials:      s.Trials,
	}
	switch {
	case s.EarlyStopped:
		rec.State = history.RunEarlyStop
	case runErr == nil && s.Best != nil:
		rec.State = history.RunComplete
	default:
		rec.State = history.RunFailed
	}
	if s.Best != nil {
		t := s.Best.Result.Time
		rec.BestSeconds = &t
		rec.Flags = s.Best.Flags
		rec.Config = s.Best.Config
	}
	return rec
}
