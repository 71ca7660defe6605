package gatherer

import (
	"strings"
	"testing"
	"time"

	"github.com/programme-lv/cctuner/internal/invoke"
	"github.com/stretchr/testify/require"
)

func TestTrimStrToRect(t *testing.T) {
	require.Equal(t, "", trimStrToRect("", 2, 3))
	require.Equal(t, "ab\ncd", trimStrToRect("ab\ncd", 2, 3))
	require.Equal(t, "abc[...]\nd\n[...]", trimStrToRect("abcdef\nd\ne", 2, 3))
	require.Equal(t, "abc", trimStrToRect("abc", 1, 3))
	require.Equal(t, "[...]", trimStrToRect("a\nb", 0, 3))
}

func TestTrimStrToRectKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "āēī[...]", trimStrToRect("āēīōū", 1, 3))
	require.Equal(t, "ā", trimStrToRect("ā", 1, 1))
}

func TestRuntimeData(t *testing.T) {
	require.Nil(t, RuntimeData(nil))

	sig := int64(9)
	data := RuntimeData(&invoke.RunData{
		Stdout:     []byte(strings.Repeat("x", 100)),
		Stderr:     []byte("boom"),
		ExitCode:   137,
		ExitSignal: &sig,
		WallTime:   1500 * time.Millisecond,
		MaxRssKiB:  2048,
	})
	require.Equal(t, int64(1500), data.WallMillis)
	require.Equal(t, int64(2048), data.RamKiBytes)
	require.Equal(t, "boom", data.Stderr)
	require.True(t, strings.HasSuffix(data.Stdout, "[...]"))
	require.Equal(t, &sig, data.ExitSignal)
}

type counting struct {
	Nop
	trials int
}

func (c *counting) FinishTrial(string, string, float64) { c.trials++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &counting{}, &counting{}
	Multi{a, b, Nop{}}.FinishTrial("1", "COMPLETE", 0.5)
	require.Equal(t, 1, a.trials)
	require.Equal(t, 1, b.trials)
}
