package space

import (
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// InvertFlag toggles -f<name> and -fno-<name>.
func InvertFlag(flag string) (string, error) {
	if !strings.HasPrefix(flag, "-f") {
		return "", fmt.Errorf("cannot invert %q: not a -f flag", flag)
	}
	if rest, ok := strings.CutPrefix(flag, "-fno-"); ok {
		return "-f" + rest, nil
	}
	return "-fno-" + flag[2:], nil
}

// Flags turns a configuration into the compiler flags it stands for. The
// result depends only on cfg: -O<level> first, then tunable flags in space
// order, then --param=name=value for every numeric parameter.
func (s *Space) Flags(cfg Configuration) ([]string, error) {
	if err := s.Validate(cfg); err != nil {
		return nil, err
	}

	level, _ := cfg[OptLevel].Int()
	flags := make([]string, 0, len(s.params))
	flags = append(flags, fmt.Sprintf("-O%d", level))

	for _, name := range s.flags {
		state, _ := cfg[name].Tri()
		switch state {
		case On:
			flags = append(flags, string(name))
		case Off:
			inverted, err := InvertFlag(string(name))
			if err != nil {
				return nil, err
			}
			flags = append(flags, inverted)
		}
	}

	for _, name := range s.numeric {
		n, _ := cfg[name].Int()
		flags = append(flags, fmt.Sprintf("--param=%s=%d", name, n))
	}

	return s.dropIncompatible(flags), nil
}

func (s *Space) dropIncompatible(flags []string) []string {
	if len(s.incompatible) == 0 {
		return flags
	}
	present := mapset.NewThreadUnsafeSet(flags...)
	for _, combo := range s.incompatible {
		if !present.Contains(combo...) {
			continue
		}
		last := combo[len(combo)-1]
		i := slices.Index(flags, last)
		flags = slices.Delete(flags, i, i+1)
		if !slices.Contains(flags, last) {
			present.Remove(last)
		}
	}
	return flags
}
