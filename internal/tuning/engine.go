package tuning

import (
	"context"
	"math"
	"math/bits"
	"math/rand/v2"
	"sync"

	"github.com/programme-lv/cctuner/internal/harness"
	"github.com/programme-lv/cctuner/internal/space"
)

// Engine decides which configuration to try next. Implementations must be
// safe for concurrent use; Observe is called from trial goroutines.
type Engine interface {
	Propose(ctx context.Context) (space.Configuration, error)
	Observe(cfg space.Configuration, res harness.Result)
}

// RandomSearch samples configurations uniformly from the space and, once
// something has completed, spends part of its proposals mutating the best
// configuration seen so far.
type RandomSearch struct {
	space *space.Space
	// MutateRate is the probability of mutating the best configuration
	// instead of sampling a fresh one.
	MutateRate float64
	// Mutations is how many parameters a mutation resamples.
	Mutations int

	mu   sync.Mutex
	rng  *rand.Rand
	best space.Configuration
	time float64
}

func NewRandomSearch(sp *space.Space, seed uint64) *RandomSearch {
	return &RandomSearch{
		space:      sp,
		MutateRate: 0.5,
		Mutations:  3,
		rng:        rand.New(rand.NewPCG(seed, seed+1)),
		time:       math.Inf(1),
	}
}

func (rs *RandomSearch) Propose(ctx context.Context) (space.Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	params := rs.space.Params()
	if rs.best != nil && rs.rng.Float64() < rs.MutateRate {
		cfg := rs.best.Clone()
		for range rs.Mutations {
			p := params[rs.rng.IntN(len(params))]
			cfg[p.Name] = rs.sample(p.Spec)
		}
		return cfg, nil
	}

	cfg := make(space.Configuration, len(params))
	for _, p := range params {
		cfg[p.Name] = rs.sample(p.Spec)
	}
	return cfg, nil
}

func (rs *RandomSearch) Observe(cfg space.Configuration, res harness.Result) {
	if !res.Finished() {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if res.Time < rs.time {
		rs.time = res.Time
		rs.best = cfg.Clone()
	}
}

func (rs *RandomSearch) sample(spec space.ParameterSpec) space.Value {
	switch s := spec.(type) {
	case space.IntegerRange:
		return space.Int(s.Min + rs.rng.Int64N(s.Max-s.Min+1))
	case space.LogIntegerRange:
		return space.Int(rs.sampleLog(s.Min, s.Max))
	case space.PowerOfTwoRange:
		lo := bits.Len64(uint64(max(s.Min, 1) - 1))
		hi := bits.Len64(uint64(s.Max)) - 1
		return space.Int(int64(1) << (lo + rs.rng.IntN(hi-lo+1)))
	case space.TriState:
		return space.TriValue(space.TriStates[rs.rng.IntN(len(space.TriStates))])
	}
	panic("unknown parameter spec")
}

// sampleLog draws from [lo, hi] with log(x - lo + 1) uniform.
func (rs *RandomSearch) sampleLog(lo, hi int64) int64 {
	span := float64(hi-lo) + 1
	x := math.Exp(rs.rng.Float64()*math.Log(span+1)) - 1
	return lo + min(int64(x), hi-lo)
}
