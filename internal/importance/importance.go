// Package importance estimates how much each flag of a configuration
// contributes to its run time by removing flags one at a time.
package importance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
)

const DefaultTrials = 10

// MeanTimer is implemented by harness.Harness.
type MeanTimer interface {
	MeanTime(ctx context.Context, flags []string, trials int) (float64, error)
}

type Impact struct {
	Flag string
	// Seconds is how much slower the program gets without Flag, never
	// negative.
	Seconds float64
	// LoadBearing marks flags whose removal broke the build or the run.
	LoadBearing bool
}

type Report struct {
	Baseline float64
	// Impacts is sorted by decreasing Seconds.
	Impacts []Impact
}

// Analyze measures flags as given and then with each flag removed. The
// optimisation level flag is never ablated.
func Analyze(ctx context.Context, mt MeanTimer, flags []string, trials int, logger *slog.Logger) (*Report, error) {
	if trials < 1 {
		trials = DefaultTrials
	}

	baseline, err := mt.MeanTime(ctx, flags, trials)
	if err != nil {
		return nil, fmt.Errorf("failed to measure baseline: %w", err)
	}
	if math.IsInf(baseline, 0) || math.IsNaN(baseline) {
		return nil, fmt.Errorf("configuration does not compile and run (mean %v)", baseline)
	}
	logger.Info("baseline", "mean", baseline, "flags", len(flags))

	report := &Report{Baseline: baseline}
	for _, flag := range flags {
		if strings.HasPrefix(flag, "-O") {
			continue
		}
		without := slices.DeleteFunc(slices.Clone(flags), func(f string) bool { return f == flag })
		t, err := mt.MeanTime(ctx, without, trials)
		if err != nil {
			return nil, fmt.Errorf("failed to measure without %s: %w", flag, err)
		}

		imp := Impact{Flag: flag, Seconds: max(0, t-baseline)}
		if math.IsInf(imp.Seconds, 0) || math.IsNaN(imp.Seconds) {
			imp.Seconds = 0
			imp.LoadBearing = true
		}
		logger.Info("flag impact", "flag", flag, "impact", fmt.Sprintf("%.4f", imp.Seconds), "load_bearing", imp.LoadBearing)
		report.Impacts = append(report.Impacts, imp)
	}

	slices.SortStableFunc(report.Impacts, func(a, b Impact) int {
		switch {
		case a.Seconds > b.Seconds:
			return -1
		case a.Seconds < b.Seconds:
			return 1
		}
		return 0
	})
	return report, nil
}

func (r *Report) Total() float64 {
	total := 0.0
	for _, imp := range r.Impacts {
		total += imp.Seconds
	}
	return total
}

type Row struct {
	Flag    string
	Seconds float64
	Percent float64
}

// Remaining aggregates the flags that did not make the top.
type Remaining struct {
	Count   int
	Seconds float64
	Percent float64
}

// Top returns the n most important flags with their share of the total
// impact. Shares are zero when no flag has any impact.
func (r *Report) Top(n int) ([]Row, Remaining) {
	total := r.Total()
	share := func(s float64) float64 {
		if total == 0 {
			return 0
		}
		return 100 * s / total
	}

	n = min(max(n, 0), len(r.Impacts))
	rows := make([]Row, 0, n)
	rest := Remaining{Count: len(r.Impacts) - n, Seconds: total}
	for _, imp := range r.Impacts[:n] {
		rows = append(rows, Row{Flag: imp.Flag, Seconds: imp.Seconds, Percent: share(imp.Seconds)})
		rest.Seconds -= imp.Seconds
	}
	rest.Seconds = max(0, rest.Seconds)
	rest.Percent = share(rest.Seconds)
	return rows, rest
}

func (r *Report) LoadBearing() []string {
	var res []string
	for _, imp := range r.Impacts {
		if imp.LoadBearing {
			res = append(res, imp.Flag)
		}
	}
	return res
}
