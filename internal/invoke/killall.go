package invoke

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// KillAll SIGKILLs every process whose name matches one of names. It is the
// last resort for compiler processes left behind by earlier runs.
func (r *ShellRunner) KillAll(ctx context.Context, names ...string) error {
	for _, name := range names {
		data, err := r.Run(ctx, Command{
			Shell:       "pkill -9 -x " + Quote(name),
			Constraints: Constraints{WallTimeLimit: 10 * time.Second},
		})
		if err != nil {
			return fmt.Errorf("failed to kill %s processes: %w", name, err)
		}
		// pkill exits with 1 when nothing matched
		if data.TimedOut || data.ExitCode > 1 {
			r.logger.Warn("pkill did not finish cleanly", "name", name,
				"exit", data.ExitCode, "stderr", strings.TrimSpace(data.StderrString()))
		}
	}
	return nil
}

// Quote makes s a single shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
