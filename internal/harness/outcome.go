package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/lmittmann/tint"

	"github.com/programme-lv/cctuner/internal/invoke"
)

type OutcomeKind int

const (
	Ok OutcomeKind = iota
	TimedOut
	Failed
)

func (k OutcomeKind) state() State {
	switch k {
	case Ok:
		return Complete
	case TimedOut:
		return Timeout
	}
	return Error
}

func (k OutcomeKind) String() string {
	switch k {
	case Ok:
		return "ok"
	case TimedOut:
		return "timeout"
	}
	return "error"
}

type CompileOutcome struct {
	Kind     OutcomeKind
	Artifact string
	// Data is nil when the compiler could not be started.
	Data *invoke.RunData
}

func (o CompileOutcome) Stderr() string {
	if o.Data == nil {
		return ""
	}
	return o.Data.StderrString()
}

type RunOutcome struct {
	Kind    OutcomeKind
	Elapsed time.Duration
	Data    *invoke.RunData
}

func classify(data *invoke.RunData) OutcomeKind {
	switch {
	case data == nil:
		return Failed
	case data.TimedOut:
		return TimedOut
	case data.ExitCode != 0:
		return Failed
	}
	return Ok
}

// CompileFlags compiles the program into output with the extra flags.
// Only cancellation of ctx is returned as an error; everything else is an
// outcome.
func (h *Harness) CompileFlags(ctx context.Context, dir string, output string, flags []string) (CompileOutcome, error) {
	data, err := h.runner.Run(ctx, invoke.Command{
		Shell:       h.opts.Toolchain.CompileCommand(output, flags),
		Dir:         dir,
		Constraints: h.opts.CompileConstraints,
	})
	if ctx.Err() != nil {
		return CompileOutcome{Kind: Failed}, fmt.Errorf("compile interrupted: %w", ctx.Err())
	}
	if err != nil {
		h.logger.Error("failed to invoke compiler", tint.Err(err))
		return CompileOutcome{Kind: Failed}, nil
	}
	out := CompileOutcome{Kind: classify(data), Data: data}
	if out.Kind == Ok {
		out.Artifact = output
	}
	return out, nil
}

// RunArtifact executes a compiled program without arguments.
func (h *Harness) RunArtifact(ctx context.Context, dir string, artifact string) (RunOutcome, error) {
	data, err := h.runner.Run(ctx, invoke.Command{
		Shell:       invoke.Quote(artifact),
		Dir:         dir,
		Constraints: h.opts.RunConstraints,
	})
	if ctx.Err() != nil {
		return RunOutcome{Kind: Failed}, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	if err != nil {
		h.logger.Error("failed to run program", "artifact", artifact, tint.Err(err))
		return RunOutcome{Kind: Failed}, nil
	}
	out := RunOutcome{Kind: classify(data), Data: data}
	if out.Kind == Ok {
		out.Elapsed = data.WallTime
	}
	return out, nil
}
