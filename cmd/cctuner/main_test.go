package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/programme-lv/cctuner/internal/config"
)

func parseFlags(t *testing.T, args ...string) config.Config {
	t.Helper()
	var cfg config.Config
	cmd := &cli.Command{
		Name:  "cctuner",
		Flags: globalFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var err error
			cfg, err = config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"cctuner"}, args...)))
	return cfg
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg := parseFlags(t, "--scaler", "8", "-j", "3", "--no-baselines", "--early-time", "0.5", "--seed", "42")
	require.Equal(t, int64(8), cfg.Scaler)
	require.Equal(t, 3, cfg.Search.Parallelism)
	require.False(t, cfg.Search.Baselines)
	require.Equal(t, 0.5, cfg.EarlyTime)
	require.Equal(t, uint64(42), cfg.Search.Seed)
}

func TestUnsetFlagsKeepConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cctuner.toml")
	require.NoError(t, os.WriteFile(path, []byte("cc = \"g++\"\nscaler = 2\n[search]\nparallelism = 4\n"), 0o644))

	cfg := parseFlags(t, "--config", path, "--scaler", "6")
	require.Equal(t, "g++", cfg.CC)
	require.Equal(t, int64(6), cfg.Scaler)
	require.Equal(t, 4, cfg.Search.Parallelism)
	require.True(t, cfg.Search.Baselines)
}

func TestCommandTree(t *testing.T) {
	cmd := newCommand()
	names := []string{}
	for _, c := range cmd.Commands {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"tune", "probe", "histogram", "importance"}, names)
}

func TestRunWorkDirIsRemoved(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.WorkDir = root
	a := &app{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	dir, cleanup, err := a.runWorkDir("run-1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "run-1"), dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "7"), 0o755))

	cleanup()
	require.NoDirExists(t, dir)
	require.DirExists(t, root)
}
