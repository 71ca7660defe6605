// Package config holds the settings of a tuning run. Defaults come from
// Default, a TOML file may override them and command line flags override
// both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/programme-lv/cctuner/internal/descriptor"
	"github.com/programme-lv/cctuner/internal/invoke"
)

type Limits struct {
	// CompileSeconds kills the compiler after this many seconds.
	CompileSeconds float64 `toml:"compile_seconds"`
	// RunSeconds kills the program; zero leaves runs unbounded.
	RunSeconds float64 `toml:"run_seconds"`
	MemoryKiB  int64   `toml:"memory_kib"`
}

type Search struct {
	Parallelism int `toml:"parallelism"`
	// MaxTrials and StopAfterSeconds of zero mean no bound.
	MaxTrials        int     `toml:"max_trials"`
	StopAfterSeconds float64 `toml:"stop_after_seconds"`
	Seed             uint64  `toml:"seed"`
	Baselines        bool    `toml:"baselines"`
}

type Gatherers struct {
	Terminal bool `toml:"terminal"`
	Verbose  bool `toml:"verbose"`
	Nats     bool `toml:"nats"`
	Sqs      bool `toml:"sqs"`
}

type Config struct {
	CC              string `toml:"cc"`
	CompileTemplate string `toml:"compile_template"`
	// RunDir is the build root linking files are resolved against.
	RunDir string `toml:"run_dir"`
	// SavedName is where the best configuration goes; derived from the
	// descriptor name when empty.
	SavedName string `toml:"saved_name"`

	Scaler int64 `toml:"scaler"`
	// EarlyTime in seconds; a faster complete run stops the search.
	EarlyTime float64 `toml:"early_time"`

	Limits    Limits    `toml:"limits"`
	Search    Search    `toml:"search"`
	Gatherers Gatherers `toml:"gatherers"`

	Debug         bool     `toml:"debug"`
	ForceKillAll  bool     `toml:"force_killall"`
	KillAllNames  []string `toml:"killall_names"`
	NoCachedFlags bool     `toml:"no_cached_flags"`
	// IncompatibleFlags lists combinations the compiler rejects together;
	// the last flag of a fully present combination is dropped.
	IncompatibleFlags [][]string `toml:"incompatible_flags"`

	CacheDir string `toml:"cache_dir"`
	StateDir string `toml:"state_dir"`
	WorkDir  string `toml:"work_dir"`

	LogLevel string `toml:"log_level"`
}

func Default() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Config{
		CC:              "/usr/bin/mpicxx",
		CompileTemplate: descriptor.DefaultCompileTemplate,
		RunDir:          wd,
		Scaler:          4,
		EarlyTime:       0.00001,
		Limits: Limits{
			CompileSeconds: 30,
			MemoryKiB:      1024 * 1024,
		},
		Search: Search{
			Parallelism: 1,
			Baselines:   true,
		},
		Gatherers: Gatherers{
			Terminal: true,
		},
		KillAllNames: []string{"cc1plus"},
		WorkDir:      "./tmp",
		LogLevel:     "info",
	}
}

// Load applies the TOML file at path on top of Default. Unknown keys are
// an error so that typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("unknown keys in %s:\n%s", path, strict.String())
		}
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.CC == "" {
		errs = append(errs, errors.New("cc is empty"))
	}
	if err := descriptor.Template(c.CompileTemplate).Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Scaler < 1 {
		errs = append(errs, fmt.Errorf("scaler must be at least 1, got %d", c.Scaler))
	}
	if c.EarlyTime < 0 {
		errs = append(errs, fmt.Errorf("early_time must not be negative"))
	}
	if c.Limits.CompileSeconds < 0 || c.Limits.RunSeconds < 0 || c.Limits.MemoryKiB < 0 {
		errs = append(errs, fmt.Errorf("limits must not be negative"))
	}
	if c.Search.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Search.Parallelism))
	}
	for _, combo := range c.IncompatibleFlags {
		if len(combo) == 0 {
			errs = append(errs, errors.New("incompatible_flags has an empty combination"))
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Debug {
		return slog.LevelDebug, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("bad log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) CompileConstraints() invoke.Constraints {
	return invoke.Constraints{
		WallTimeLimit:   seconds(c.Limits.CompileSeconds),
		MemoryLimitInKB: c.Limits.MemoryKiB,
	}
}

func (c Config) RunConstraints() invoke.Constraints {
	return invoke.Constraints{
		WallTimeLimit:   seconds(c.Limits.RunSeconds),
		MemoryLimitInKB: c.Limits.MemoryKiB,
	}
}

func (c Config) EarlyStopThreshold() time.Duration { return seconds(c.EarlyTime) }

func (c Config) StopAfter() time.Duration { return seconds(c.Search.StopAfterSeconds) }

// SavedPaths returns where the final and the early stop configurations
// are written for a descriptor file.
func (c Config) SavedPaths(descriptorPath string) (final string, earlyStop string) {
	final = c.SavedName
	if final == "" {
		base := strings.TrimSuffix(descriptorPath, ".json")
		base = strings.TrimSuffix(base, "_tunebase")
		final = base + "_final_config.json"
	}
	stem := strings.TrimSuffix(filepath.Base(final), ".json")
	stem = strings.TrimSuffix(stem, "_final_config")
	return final, filepath.Join(filepath.Dir(final), "earlystop_"+stem+"_full.json")
}
