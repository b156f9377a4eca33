// Package batch implements the parameter-sweep runner (§4.4): it enumerates
// the cartesian product of a parameterRanges mapping and dispatches each
// combination as an independent single-symbol run with bounded parallelism.
package batch

import (
	"time"

	"github.com/aristath/dca-simulator/internal/params"
	"github.com/aristath/dca-simulator/internal/simerrors"
)

// Range is one parameter's swept values. A single-value range degenerates
// to a fixed parameter; Values must be non-empty.
type Range struct {
	Key    string
	Values []any
}

// Config configures one RunBatch invocation.
type Config struct {
	Symbols         []string
	BaseParams      params.Set
	ParameterRanges []Range

	// Start and End bound the price history fetched per symbol before any
	// combination runs (§5: the provider round-trip happens once up front,
	// not per combination).
	Start time.Time
	End   time.Time

	// Workers bounds worker-pool size; 0 selects a default derived from
	// logical CPU count and available memory headroom (§11 gopsutil).
	Workers int

	// CachePath, if non-empty, memoizes completed combinations in a
	// msgpack-encoded sqlite cache so a resumed run skips them (§12
	// supplement 6). Empty disables caching.
	CachePath string

	// TopK bounds the per-symbol top-result summaries in BatchResult.
	TopK int
}

// Validate checks the batch-level configuration before any combination runs.
func (c Config) Validate() error {
	var errs simerrors.ValidationErrors
	if len(c.Symbols) == 0 {
		errs = append(errs, simerrors.ValidationError{Field: "symbols", Message: "must include at least one symbol"})
	}
	for _, r := range c.ParameterRanges {
		if len(r.Values) == 0 {
			errs = append(errs, simerrors.ValidationError{Field: r.Key, Message: "parameter range must have at least one value"})
		}
	}
	if c.Workers < 0 {
		errs = append(errs, simerrors.ValidationError{Field: "workers", Message: "must be >= 0"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Combination is one element of the cartesian product of ParameterRanges,
// paired with the symbol it will run against.
type Combination struct {
	Symbol          string
	Overrides       params.Overrides
	EffectiveParams params.Set
}

// Expand enumerates the cartesian product C of the ranged keys, dispatched
// once per symbol (§4.4). Order is deterministic: symbols in the order
// given, then combinations in the order ParameterRanges were declared, most
// significant (first-declared) key varying slowest.
func Expand(cfg Config) []Combination {
	combos := cartesianProduct(cfg.ParameterRanges)

	out := make([]Combination, 0, len(cfg.Symbols)*len(combos))
	for _, sym := range cfg.Symbols {
		for _, ov := range combos {
			out = append(out, Combination{
				Symbol:          sym,
				Overrides:       ov,
				EffectiveParams: params.Merge(cfg.BaseParams, nil, ov, nil),
			})
		}
	}
	return out
}

func cartesianProduct(ranges []Range) []params.Overrides {
	if len(ranges) == 0 {
		return []params.Overrides{{}}
	}

	result := []params.Overrides{{}}
	for _, r := range ranges {
		next := make([]params.Overrides, 0, len(result)*len(r.Values))
		for _, base := range result {
			for _, v := range r.Values {
				combo := make(params.Overrides, len(base)+1)
				for k, bv := range base {
					combo[k] = bv
				}
				combo[r.Key] = v
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}
