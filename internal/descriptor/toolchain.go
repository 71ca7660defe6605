package descriptor

import (
	"strings"

	"github.com/programme-lv/cctuner/internal/invoke"
)

// Toolchain binds a compiler and a template to a resolved build.
type Toolchain struct {
	CC       string
	Template Template
	Build    Build
}

// CompileCommand renders the shell command that compiles the build into
// output with the given extra flags.
func (tc Toolchain) CompileCommand(output string, flags []string) string {
	return tc.Template.Render(tc.Build, Vars{
		CC:     tc.CC,
		Output: invoke.Quote(output),
		Flags:  flags,
	})
}

// QueryCommand runs the compiler alone, e.g. for --version.
func (tc Toolchain) QueryCommand(args ...string) string {
	return strings.Join(append([]string{tc.CC}, args...), " ")
}
