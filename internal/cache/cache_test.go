package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/programme-lv/cctuner/internal/cache"
	"github.com/stretchr/testify/require"
)

const gcc13 = "gcc (GCC) 13.2.1 20231011"

func TestOpenEmptyCache(t *testing.T) {
	c, err := cache.Open(t.TempDir(), gcc13, false)
	require.NoError(t, err)

	_, ok := c.Flags()
	require.False(t, ok)
	_, ok = c.ParamDefaults()
	require.False(t, ok)
	_, ok = c.Params()
	require.False(t, ok)
}

func TestSavedRecordsAreLoadedForSameToolVersion(t *testing.T) {
	root := t.TempDir()

	c, err := cache.Open(root, gcc13, false)
	require.NoError(t, err)
	c.SetFlags([]string{"-finline", "-funroll-loops"})
	c.SetParamDefaults(map[string]cache.ParamDefault{
		"max-unrolled-insns": {Default: 200, Min: 0, Max: 0},
	})
	c.SetParams([]string{})
	require.NoError(t, c.Save())

	again, err := cache.Open(root, gcc13, false)
	require.NoError(t, err)

	flags, ok := again.Flags()
	require.True(t, ok)
	require.Equal(t, []string{"-finline", "-funroll-loops"}, flags)

	defaults, ok := again.ParamDefaults()
	require.True(t, ok)
	require.Equal(t, int64(200), defaults["max-unrolled-insns"].Default)

	params, ok := again.Params()
	require.True(t, ok, "an empty probe result is still a cached result")
	require.Empty(t, params)
}

func TestOtherToolVersionStartsEmpty(t *testing.T) {
	root := t.TempDir()

	c, err := cache.Open(root, gcc13, false)
	require.NoError(t, err)
	c.SetFlags([]string{"-finline"})
	require.NoError(t, c.Save())

	other, err := cache.Open(root, "gcc (GCC) 14.1.0", false)
	require.NoError(t, err)
	require.NotEqual(t, c.Dir(), other.Dir())
	_, ok := other.Flags()
	require.False(t, ok)
}

func TestIgnoreReadsStillWrites(t *testing.T) {
	root := t.TempDir()

	c, err := cache.Open(root, gcc13, false)
	require.NoError(t, err)
	c.SetFlags([]string{"-finline"})
	require.NoError(t, c.Save())

	fresh, err := cache.Open(root, gcc13, true)
	require.NoError(t, err)
	_, ok := fresh.Flags()
	require.False(t, ok)

	fresh.SetFlags([]string{"-fgcse"})
	require.NoError(t, fresh.Save())

	reloaded, err := cache.Open(root, gcc13, false)
	require.NoError(t, err)
	flags, ok := reloaded.Flags()
	require.True(t, ok)
	require.Equal(t, []string{"-fgcse"}, flags)
}

func TestCorruptRecordIsReported(t *testing.T) {
	root := t.TempDir()

	c, err := cache.Open(root, gcc13, false)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(c.Dir(), cache.FlagsFile), []byte("{not json"), 0644)
	require.NoError(t, err)

	_, err = cache.Open(root, gcc13, false)
	require.Error(t, err)
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	c, err := cache.Open(t.TempDir(), gcc13, false)
	require.NoError(t, err)
	c.SetFlags([]string{"-finline"})

	flags, _ := c.Flags()
	flags[0] = "-fchanged"

	again, _ := c.Flags()
	require.Equal(t, []string{"-finline"}, again)
}
