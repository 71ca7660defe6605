package invoke

import (
	"time"
)

// RunData is what one invocation of an external tool left behind.
type RunData struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int64

	// ExitSignal is set when the process (or the shell running it) died
	// from a signal, e.g. after hitting the memory ceiling.
	ExitSignal *int64

	WallTime  time.Duration
	MaxRssKiB int64

	// TimedOut reports that the wall-clock limit expired and the process
	// group was killed. ExitCode is meaningless in that case.
	TimedOut bool

	OutputTruncated bool
}

func (d *RunData) Ok() bool {
	return d != nil && !d.TimedOut && d.ExitCode == 0
}

func (d *RunData) StderrString() string {
	if d == nil {
		return ""
	}
	return string(d.Stderr)
}
