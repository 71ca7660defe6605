package history

import (
	"cmp"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type FlagShare struct {
	Flag string
	// Share is the fraction of successful runs whose best configuration
	// used Flag.
	Share float64
}

// Histogram counts how often each flag appears in the best configuration
// of successful runs and returns the top most common, at most top entries.
// program filters by program name when not empty.
func Histogram(records []Record, program string, top int) []FlagShare {
	counts := make(map[string]int)
	total := 0
	for _, rec := range records {
		if !rec.Successful() || (program != "" && rec.Program != program) {
			continue
		}
		total++
		for flag := range mapset.NewThreadUnsafeSet(rec.Flags...).Iter() {
			counts[flag]++
		}
	}
	if total == 0 {
		return nil
	}

	res := make([]FlagShare, 0, len(counts))
	for flag, n := range counts {
		res = append(res, FlagShare{Flag: flag, Share: float64(n) / float64(total)})
	}
	slices.SortFunc(res, func(a, b FlagShare) int {
		if c := cmp.Compare(b.Share, a.Share); c != 0 {
			return c
		}
		return cmp.Compare(a.Flag, b.Flag)
	})
	if top > 0 && len(res) > top {
		res = res[:top]
	}
	return res
}
