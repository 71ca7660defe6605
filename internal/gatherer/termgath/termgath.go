package termgath

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/programme-lv/cctuner/api"
)

// TerminalGatherer prints one line per finished trial. Verbose adds the
// per-stage events and compiler diagnostics.
type TerminalGatherer struct {
	StartedAt time.Time
	Verbose   bool

	mu   sync.Mutex
	out  io.Writer
	best float64
}

func New(out io.Writer, verbose bool) *TerminalGatherer {
	return &TerminalGatherer{
		StartedAt: time.Now(),
		Verbose:   verbose,
		out:       out,
		best:      math.Inf(1),
	}
}

func (t *TerminalGatherer) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *TerminalGatherer) StartTuning(program string, toolVersion string, dimensions int) {
	t.printf("== Tuning %s with %s (%d dimensions) ==\n", program, toolVersion, dimensions)
}

func (t *TerminalGatherer) StartTrial(trialId string, flags []string) {
	if t.Verbose {
		t.printf("-> Trial %s started with %d flags\n", trialId, len(flags))
	}
}

func (t *TerminalGatherer) FinishCompile(trialId string, data *api.RuntimeData) {
	if !t.Verbose || data == nil {
		return
	}
	t.printf("   Trial %s compiled: exit=%d wall=%dms mem=%dKiB\n", trialId, data.ExitCode, data.WallMillis, data.RamKiBytes)
	if data.ExitCode != 0 && len(data.Stderr) > 0 {
		t.printf("%s\n", indent(data.Stderr))
	}
}

func (t *TerminalGatherer) FinishRun(trialId string, data *api.RuntimeData) {
	if !t.Verbose || data == nil {
		return
	}
	t.printf("   Trial %s ran: exit=%d wall=%dms mem=%dKiB\n", trialId, data.ExitCode, data.WallMillis, data.RamKiBytes)
}

func (t *TerminalGatherer) FinishTrial(trialId string, state string, seconds float64) {
	t.mu.Lock()
	improved := seconds < t.best
	if improved {
		t.best = seconds
	}
	t.mu.Unlock()

	var line string
	switch {
	case improved:
		line = color.GreenString("<- Trial %s %s %.4fs (new best)", trialId, state, seconds)
	case math.IsInf(seconds, 1):
		line = color.RedString("<- Trial %s %s", trialId, state)
	default:
		line = fmt.Sprintf("<- Trial %s %s %.4fs", trialId, state, seconds)
	}
	t.printf("%s\n", line)
}

func (t *TerminalGatherer) EarlyStop(trialId string, seconds float64) {
	t.printf("%s\n", color.YellowString("== Early stop: trial %s ran in %.6fs ==", trialId, seconds))
}

func (t *TerminalGatherer) FinishTuning(bestFlags []string, bestSeconds float64, errMsg *string) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if errMsg != nil {
		t.printf("%s\n", color.RedString("== Tuning failed after %s: %s ==", dur, *errMsg))
		return
	}
	if math.IsInf(bestSeconds, 1) {
		t.printf("== Tuning finished in %s without a working configuration ==\n", dur)
		return
	}
	t.printf("== Tuning finished in %s, best %.4fs ==\n%s\n", dur, bestSeconds, strings.Join(bestFlags, " "))
}

func indent(s string) string {
	return "     " + strings.ReplaceAll(s, "\n", "\n     ")
}
