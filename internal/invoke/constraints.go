package invoke

import (
	"fmt"
	"time"
)

type Constraints struct {
	WallTimeLimit   time.Duration
	MemoryLimitInKB int64
}

func DefaultConstraints() Constraints {
	return Constraints{
		WallTimeLimit:   30 * time.Second,
		MemoryLimitInKB: 1024 * 1024,
	}
}

// ShellPrefix returns the part of the constraints that the shell enforces
// on itself before starting the command. The wall-clock limit is enforced
// by the runner, not by the shell.
func (constraints *Constraints) ShellPrefix() string {
	if constraints.MemoryLimitInKB <= 0 {
		return ""
	}
	return constraints.MemLimArg() + "; "
}

func (constraints *Constraints) MemLimArg() string {
	return fmt.Sprintf("ulimit -v %d", constraints.MemoryLimitInKB)
}

func (constraints *Constraints) hasWallTimeLimit() bool {
	return constraints.WallTimeLimit > 0
}
