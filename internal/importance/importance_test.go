package importance_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/programme-lv/cctuner/internal/importance"
)

// tableTimer returns a fixed mean per flag list.
type tableTimer struct {
	means map[string]float64
	calls []int
}

func (tt *tableTimer) MeanTime(ctx context.Context, flags []string, trials int) (float64, error) {
	tt.calls = append(tt.calls, trials)
	mean, ok := tt.means[strings.Join(flags, " ")]
	if !ok {
		return 0, errors.New("unexpected flags " + strings.Join(flags, " "))
	}
	return mean, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAnalyzeClampsNegativeImpact(t *testing.T) {
	tt := &tableTimer{means: map[string]float64{
		"-O2 -funroll-loops -finline": 1.0,
		"-O2 -finline":                1.3,
		"-O2 -funroll-loops":          0.9,
	}}

	report, err := importance.Analyze(context.Background(), tt,
		[]string{"-O2", "-funroll-loops", "-finline"}, 10, discard())
	require.NoError(t, err)
	require.Equal(t, 1.0, report.Baseline)
	require.Len(t, report.Impacts, 2)
	require.Equal(t, "-funroll-loops", report.Impacts[0].Flag)
	require.InDelta(t, 0.3, report.Impacts[0].Seconds, 1e-9)
	require.Equal(t, "-finline", report.Impacts[1].Flag)
	require.Equal(t, 0.0, report.Impacts[1].Seconds)
	require.Equal(t, []int{10, 10, 10}, tt.calls)

	rows, rest := report.Top(20)
	require.Len(t, rows, 2)
	require.InDelta(t, 100.0, rows[0].Percent, 1e-9)
	require.Equal(t, 0, rest.Count)
}

func TestAnalyzeLoadBearingFlag(t *testing.T) {
	tt := &tableTimer{means: map[string]float64{
		"-O3 -fopenmp -fa": 2.0,
		"-O3 -fa":          math.Inf(1),
		"-O3 -fopenmp":     2.5,
	}}
	report, err := importance.Analyze(context.Background(), tt, []string{"-O3", "-fopenmp", "-fa"}, 3, discard())
	require.NoError(t, err)
	require.Equal(t, []string{"-fopenmp"}, report.LoadBearing())
	require.Equal(t, "-fa", report.Impacts[0].Flag)
}

func TestAnalyzeRejectsBrokenBaseline(t *testing.T) {
	tt := &tableTimer{means: map[string]float64{"-O2 -fa": math.Inf(1)}}
	_, err := importance.Analyze(context.Background(), tt, []string{"-O2", "-fa"}, 1, discard())
	require.Error(t, err)
}

func TestTopWithRemainingBucket(t *testing.T) {
	report := &importance.Report{Baseline: 1}
	for i := range 25 {
		report.Impacts = append(report.Impacts, importance.Impact{Flag: "-f" + string(rune('a'+i)), Seconds: float64(25 - i)})
	}
	rows, rest := report.Top(20)
	require.Len(t, rows, 20)
	require.Equal(t, 5, rest.Count)
	// 1+2+3+4+5 out of 325
	require.InDelta(t, 15.0, rest.Seconds, 1e-9)
	require.InDelta(t, 100*15.0/325, rest.Percent, 1e-9)

	total := rest.Percent
	for _, r := range rows {
		total += r.Percent
	}
	require.InDelta(t, 100.0, total, 1e-9)
}

func TestTopWithoutImpact(t *testing.T) {
	report := &importance.Report{Impacts: []importance.Impact{{Flag: "-fa"}, {Flag: "-fb"}}}
	rows, rest := report.Top(1)
	require.Equal(t, 0.0, rows[0].Percent)
	require.Equal(t, 1, rest.Count)
	require.Equal(t, 0.0, rest.Percent)
}

func TestRender(t *testing.T) {
	report := &importance.Report{Impacts: []importance.Impact{{Flag: "-funroll-loops", Seconds: 0.3}, {Flag: "-finline"}}}

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, 20, importance.FormatTable))
	require.Contains(t, buf.String(), "-funroll-loops")
	require.Contains(t, buf.String(), "100.0%")

	buf.Reset()
	require.NoError(t, report.Render(&buf, 1, importance.FormatCSV))
	require.Contains(t, buf.String(), "-funroll-loops,0.3000,100.0%")
	require.NotContains(t, buf.String(), "-finline,")

	require.Error(t, report.Render(&buf, 1, "latex"))
}
