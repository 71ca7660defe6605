package probe

import (
	"context"
	"fmt"

	"github.com/programme-lv/cctuner/internal/cache"
)

// Discovery is everything the configuration space is built from.
type Discovery struct {
	Flags    []string
	Params   []string
	Defaults map[string]cache.ParamDefault
}

// Discover fills each record from c when present and probes the compiler
// otherwise. Newly probed records are written back before returning.
func (p *Prober) Discover(ctx context.Context, c *cache.Cache) (Discovery, error) {
	var d Discovery
	dirty := false

	flags, ok := c.Flags()
	if !ok {
		candidates, err := p.ListFlags(ctx)
		if err != nil {
			return d, fmt.Errorf("failed to list flags: %w", err)
		}
		flags, err = p.WorkingFlags(ctx, candidates)
		if err != nil {
			return d, fmt.Errorf("failed to probe flags: %w", err)
		}
		c.SetFlags(flags)
		dirty = true
	}
	d.Flags = flags

	defaults, ok := c.ParamDefaults()
	if !ok {
		var err error
		defaults, err = p.ParamDefaults(ctx)
		if err != nil {
			return d, fmt.Errorf("failed to read param defaults: %w", err)
		}
		c.SetParamDefaults(defaults)
		dirty = true
	}
	d.Defaults = defaults

	params, ok := c.Params()
	if !ok {
		candidates, err := p.ListParams(ctx)
		if err != nil {
			return d, fmt.Errorf("failed to list params: %w", err)
		}
		params, err = p.WorkingParams(ctx, candidates, defaults)
		if err != nil {
			return d, fmt.Errorf("failed to probe params: %w", err)
		}
		c.SetParams(params)
		dirty = true
	}
	d.Params = params

	if dirty {
		if err := c.Save(); err != nil {
			return d, err
		}
	}

	p.logger.Info("compiler capabilities",
		"flags", len(d.Flags), "params", len(d.Params), "cache", c.Dir())
	return d, nil
}
