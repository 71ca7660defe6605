package space

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/programme-lv/cctuner/internal/cache"
)

var ErrUnknownParam = errors.New("unknown parameter")

// Space is immutable after Build and safe to share between trials.
type Space struct {
	params       []Param
	byName       map[ParamName]int
	flags        []ParamName
	numeric      []ParamName
	incompatible [][]string
}

type BuildInput struct {
	// Flags are probed -f flags; each becomes a tri-state.
	Flags []string
	// Params are probed --param names; each needs an entry in Defaults.
	Params   []string
	Defaults map[string]cache.ParamDefault
	// Scaler bounds how far from its default a parameter may move.
	Scaler int64
	// Incompatible lists flag combinations the compiler rejects together.
	// When all members are present the last one is dropped.
	Incompatible [][]string
}

func Build(in BuildInput) (*Space, error) {
	if in.Scaler < 1 {
		return nil, fmt.Errorf("scaler must be at least 1, got %d", in.Scaler)
	}

	s := &Space{byName: make(map[ParamName]int)}

	err := s.add(OptLevel, IntegerRange{Min: 0, Max: 3})
	if err != nil {
		return nil, err
	}

	for _, flag := range in.Flags {
		if !strings.HasPrefix(flag, "-f") {
			return nil, fmt.Errorf("flag %q does not start with -f", flag)
		}
		if err := s.add(ParamName(flag), TriState{}); err != nil {
			return nil, err
		}
		s.flags = append(s.flags, ParamName(flag))
	}

	for _, param := range in.Params {
		def, ok := in.Defaults[param]
		if !ok {
			return nil, fmt.Errorf("parameter %q has no advertised default", param)
		}
		if err := s.add(ParamName(param), NumericSpec(param, def, in.Scaler)); err != nil {
			return nil, err
		}
		s.numeric = append(s.numeric, ParamName(param))
	}

	for _, combo := range in.Incompatible {
		if len(combo) == 0 {
			return nil, fmt.Errorf("empty incompatible flag combination")
		}
		s.incompatible = append(s.incompatible, slices.Clone(combo))
	}

	return s, nil
}

func (s *Space) add(name ParamName, spec ParameterSpec) error {
	if name == "" {
		return fmt.Errorf("empty parameter name")
	}
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("duplicate parameter %q", name)
	}
	s.byName[name] = len(s.params)
	s.params = append(s.params, Param{Name: name, Spec: spec})
	return nil
}

// NumericSpec picks the range type for a --param from its scaled bounds.
func NumericSpec(name string, def cache.ParamDefault, scaler int64) ParameterSpec {
	if name == CacheLineSizeParam {
		return PowerOfTwoRange{Min: 4, Max: 256}
	}
	lo, hi := ScaleRange(def, scaler)
	if hi > 128 {
		return LogIntegerRange{Min: lo, Max: hi}
	}
	return IntegerRange{Min: lo, Max: hi}
}

// ScaleRange narrows the advertised bounds of a parameter to within a
// factor of scaler around its default. A reported max that is not above
// the reported min means the compiler advertised no upper bound. The
// result always satisfies lo <= hi, and lo <= default <= hi when the
// default is positive.
func ScaleRange(def cache.ParamDefault, scaler int64) (lo, hi int64) {
	hi = def.Max
	if hi <= def.Min {
		hi = math.MaxInt64
	}
	base := max(1, def.Default)
	if base <= math.MaxInt64/scaler {
		hi = min(hi, base*scaler)
	}
	lo = max(def.Min, base/scaler)

	if def.Default > 0 {
		lo = min(lo, def.Default)
		hi = max(hi, def.Default)
	}
	hi = max(hi, lo)
	return lo, hi
}

func (s *Space) Params() []Param {
	return slices.Clone(s.params)
}

// TunableFlags are the tri-state dimensions, in space order.
func (s *Space) TunableFlags() []ParamName {
	return slices.Clone(s.flags)
}

func (s *Space) NumericParams() []ParamName {
	return slices.Clone(s.numeric)
}

func (s *Space) Len() int { return len(s.params) }

// Lookup validates a raw name against the space.
func (s *Space) Lookup(name string) (ParamName, error) {
	if _, ok := s.byName[ParamName(name)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return ParamName(name), nil
}

func (s *Space) Spec(name ParamName) (ParameterSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.params[i].Spec, true
}

// Validate checks that cfg assigns a legal value to every parameter and
// to nothing else.
func (s *Space) Validate(cfg Configuration) error {
	for name, v := range cfg {
		spec, ok := s.Spec(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
		if !spec.Contains(v) {
			return fmt.Errorf("value %s is outside %s for %q", v, spec, name)
		}
	}
	for _, p := range s.params {
		if _, ok := cfg[p.Name]; !ok {
			return fmt.Errorf("configuration has no value for %q", p.Name)
		}
	}
	return nil
}
