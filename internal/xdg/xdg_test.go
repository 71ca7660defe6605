package xdg_test

import (
	"path/filepath"
	"testing"

	"github.com/programme-lv/cctuner/internal/xdg"
	"github.com/stretchr/testify/require"
)

func TestDirsHonourEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))

	d := xdg.NewDirs()
	require.Equal(t, filepath.Join(root, "cache", "cctuner"), d.AppCacheDir("cctuner"))
	require.Equal(t, filepath.Join(root, "state", "cctuner"), d.AppStateDir("cctuner"))
}

func TestDirsFallBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")

	d := xdg.NewDirs()
	require.Equal(t, filepath.Join(home, ".cache", "cctuner"), d.AppCacheDir("cctuner"))
	require.Equal(t, filepath.Join(home, ".local", "state", "cctuner"), d.AppStateDir("cctuner"))
}
