package invoke

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var ErrToolNotFound = errors.New("tool not found")

// killGrace bounds how long Wait keeps draining pipes after the process
// group has been killed.
const killGrace = 2 * time.Second

const defaultMaxOutputKiB = 4 * 1024

type Command struct {
	// Shell is passed verbatim to `sh -c`.
	Shell       string
	Dir         string
	Constraints Constraints
}

type Runner interface {
	Run(ctx context.Context, command Command) (*RunData, error)
}

type ShellRunner struct {
	shellPath    string
	maxOutputKiB int
	logger       *slog.Logger
}

func NewShellRunner(logger *slog.Logger) (*ShellRunner, error) {
	shellPath, err := LookTool("sh")
	if err != nil {
		return nil, err
	}
	return &ShellRunner{
		shellPath:    shellPath,
		maxOutputKiB: defaultMaxOutputKiB,
		logger:       logger,
	}, nil
}

// LookTool resolves an executable on PATH. A missing tool is fatal for
// startup, so the error wraps ErrToolNotFound.
func LookTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, name, err)
	}
	return path, nil
}

func (r *ShellRunner) Run(ctx context.Context, command Command) (*RunData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx := ctx
	if command.Constraints.hasWallTimeLimit() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, command.Constraints.WallTimeLimit)
		defer cancel()
	}

	script := command.Constraints.ShellPrefix() + command.Shell
	cmd := exec.CommandContext(runCtx, r.shellPath, "-c", script)
	cmd.Dir = command.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}
	cmd.WaitDelay = killGrace

	stdout := newBoundedBuffer(r.maxOutputKiB)
	stderr := newBoundedBuffer(r.maxOutputKiB)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("starting command", "cmd", command.Shell, "dir", command.Dir)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolNotFound, r.shellPath, err)
		}
		return nil, fmt.Errorf("failed to start command %q: %w", command.Shell, err)
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("command %q interrupted: %w", command.Shell, ctx.Err())
	}

	state := cmd.ProcessState
	if state == nil {
		return nil, fmt.Errorf("failed to wait for command %q: %w", command.Shell, waitErr)
	}

	data := &RunData{
		Stdout:          stdout.Bytes(),
		Stderr:          stderr.Bytes(),
		ExitCode:        int64(state.ExitCode()),
		WallTime:        elapsed,
		OutputTruncated: stdout.Truncated() || stderr.Truncated(),
	}
	if usage, ok := state.SysUsage().(*syscall.Rusage); ok && usage != nil {
		data.MaxRssKiB = int64(usage.Maxrss)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		data.TimedOut = true
		data.ExitCode = -1
		r.logger.Debug("command timed out", "cmd", command.Shell,
			"limit", command.Constraints.WallTimeLimit)
		return data, nil
	}

	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		sig := int64(status.Signal())
		data.ExitSignal = &sig
		data.ExitCode = 128 + sig
	} else if sig := data.ExitCode - 128; ceilingSignals[syscall.Signal(sig)] {
		// the shell reports a child killed by a signal as 128+n
		data.ExitSignal = &sig
	}

	if data.ExitSignal != nil {
		r.logger.Debug("command killed by signal", "cmd", command.Shell,
			"signal", unix.SignalName(syscall.Signal(*data.ExitSignal)))
	}

	return data, nil
}

// ceilingSignals are how a child dies after hitting the memory ceiling or
// being killed from outside. Other 128+n exit codes are taken as plain exit
// codes.
var ceilingSignals = map[syscall.Signal]bool{
	syscall.SIGKILL: true,
	syscall.SIGSEGV: true,
	syscall.SIGABRT: true,
	syscall.SIGBUS:  true,
}

func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
