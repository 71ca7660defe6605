// Package deltadebug shrinks a failing compiler flag list to a small set
// that still reproduces the failure.
package deltadebug

import (
	"context"
	"math/rand/v2"
	"slices"
)

const DefaultThreshold = 8

// FailFunc reports whether compiling with flags still fails.
type FailFunc func(ctx context.Context, flags []string) (bool, error)

type Options struct {
	Seed uint64
	// Threshold is the size below which random halving stops.
	Threshold int
	// MaxRounds bounds the random phase; a failure that depends on many
	// flags at once would otherwise never shrink below Threshold.
	MaxRounds int
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = 200
	}
	return o
}

// Minimize first keeps random subsets of flags that still fail while more
// than Threshold flags remain, then drops every flag whose removal keeps
// the failure. flags itself is never modified.
func Minimize(ctx context.Context, flags []string, fails FailFunc, opts Options) ([]string, error) {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	current := slices.Clone(flags)
	for round := 0; len(current) > opts.Threshold && round < opts.MaxRounds; round++ {
		subset := make([]string, 0, len(current))
		for _, f := range current {
			if rng.IntN(2) == 0 {
				subset = append(subset, f)
			}
		}
		failed, err := fails(ctx, subset)
		if err != nil {
			return nil, err
		}
		if failed {
			current = subset
		}
	}

	var minimal []string
	for i := range current {
		candidate := append(slices.Clone(minimal), current[i+1:]...)
		failed, err := fails(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !failed {
			minimal = append(minimal, current[i])
		}
	}
	return minimal, nil
}
