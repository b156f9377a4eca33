package batch

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/engine"
	"github.com/aristath/dca-simulator/internal/priceprovider"
	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/aristath/dca-simulator/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// RunBatch enumerates the cartesian product of Config's parameter ranges,
// dispatches each (symbol, combination) pair as an independent RunSingle
// call with bounded parallelism, and returns results sorted by total return
// descending (§4.4). Prices are pre-fetched per symbol before any worker
// starts, so the day loop inside each run is pure CPU (§5 suspension
// points).
func RunBatch(ctx context.Context, log zerolog.Logger, cfg Config, provider priceprovider.Provider, progress ProgressFunc, cache *ResultCache) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	combos := Expand(cfg)
	if len(combos) == 0 {
		return Result{}, nil
	}

	if cache == nil && cfg.CachePath != "" {
		opened, err := OpenResultCache(cfg.CachePath)
		if err != nil {
			return Result{}, err
		}
		defer opened.Close()
		cache = opened
	}

	batchID := uuid.NewString()
	log = log.With().Str("batchId", batchID).Logger()
	defer utils.OperationTimer("batch_run", log)()

	pricesBySymbol, err := prefetch(ctx, log, provider, cfg.Symbols, cfg.Start, cfg.End)
	if err != nil {
		return Result{}, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkerCount(log)
	}

	reporter := newProgressReporter(progress, len(combos))

	results := make([]CombinationResult, len(combos))
	var cancelled, deadlineExceeded bool
	var cancelledMu sync.Mutex

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, combo := range combos {
		select {
		case <-ctx.Done():
			cancelledMu.Lock()
			if ctx.Err() == context.DeadlineExceeded {
				deadlineExceeded = true
			} else {
				cancelled = true
			}
			cancelledMu.Unlock()
		default:
		}

		cancelledMu.Lock()
		isCancelled := cancelled || deadlineExceeded
		cancelledMu.Unlock()
		if isCancelled {
			results[i] = CombinationResult{Symbol: combo.Symbol, Params: combo.EffectiveParams, Error: "cancelled"}
			reporter.Report(combo.Symbol, combo.Overrides)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, combo Combination) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runCombination(ctx, log, batchID, combo, pricesBySymbol, cache)
			reporter.Report(combo.Symbol, combo.Overrides)
		}(i, combo)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Summary.TotalReturn > results[j].Summary.TotalReturn
	})

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return Result{
		Combinations:     results,
		TopKBySymbol:     topKBySymbol(results, topK),
		Cancelled:        cancelled,
		DeadlineExceeded: deadlineExceeded,
	}, nil
}

func runCombination(ctx context.Context, log zerolog.Logger, batchID string, combo Combination, pricesBySymbol map[string]bars.Series, cache *ResultCache) CombinationResult {
	series, ok := pricesBySymbol[combo.Symbol]
	if !ok {
		return CombinationResult{Symbol: combo.Symbol, Params: combo.EffectiveParams, Error: simerrors.MissingPriceData{Symbol: combo.Symbol}.Error()}
	}

	var cacheKey string
	if cache != nil {
		key, err := CacheKey(combo.Symbol, combo.EffectiveParams, series)
		if err == nil {
			cacheKey = key
			if summary, hit, err := cache.Get(ctx, cacheKey); err == nil && hit {
				return CombinationResult{Symbol: combo.Symbol, Params: combo.EffectiveParams, Summary: summary, Cached: true}
			}
		}
	}

	result, err := engine.RunSingle(ctx, log, combo.EffectiveParams, series)
	if err != nil {
		return CombinationResult{Symbol: combo.Symbol, Params: combo.EffectiveParams, Error: err.Error()}
	}

	if cache != nil && cacheKey != "" && !result.Cancelled {
		if err := cache.Put(ctx, cacheKey, batchID, result.Summary); err != nil {
			log.Warn().Err(err).Str("symbol", combo.Symbol).Msg("failed to persist batch cache entry")
		}
	}

	return CombinationResult{Symbol: combo.Symbol, Params: combo.EffectiveParams, Summary: result.Summary}
}

// prefetch fetches every symbol's price series before any worker starts
// (§5 suspension points: the per-day loop inside each run is pure CPU once
// this returns). Timed so a slow PriceProvider round-trip is visible
// separately from per-combination simulation time.
func prefetch(ctx context.Context, log zerolog.Logger, provider priceprovider.Provider, symbols []string, start, end time.Time) (map[string]bars.Series, error) {
	defer utils.NewTimer("batch_prefetch", log).Stop()

	out := make(map[string]bars.Series, len(symbols))
	for _, sym := range symbols {
		series, err := provider.Bars(ctx, sym, start, end)
		if mpd, ok := err.(simerrors.MissingPriceData); ok && mpd.Partial {
			out[sym] = series // usable partial range; combinations still run against it
			continue
		}
		if err != nil {
			continue // no data at all; recorded per-combination when the symbol lookup misses
		}
		out[sym] = series
	}
	return out, nil
}

// defaultWorkerCount derives the worker-pool size from logical CPU count
// and available memory headroom rather than runtime.NumCPU() alone (§11):
// a machine under memory pressure gets fewer concurrent combinations even
// if it has cores to spare.
func defaultWorkerCount(log zerolog.Logger) int {
	n := runtime.NumCPU()

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 && pct[0] > 90 {
		log.Debug().Float64("cpuPercent", pct[0]).Msg("batch runner: CPU busy, halving worker count")
		n = max(1, n/2)
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm.UsedPercent > 85 {
		log.Debug().Float64("memPercent", vm.UsedPercent).Msg("batch runner: memory pressure, halving worker count")
		n = max(1, n/2)
	}

	return n
}

func topKBySymbol(results []CombinationResult, k int) map[string][]CombinationResult {
	bySymbol := make(map[string][]CombinationResult)
	for _, r := range results {
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}
	out := make(map[string][]CombinationResult, len(bySymbol))
	for sym, rs := range bySymbol {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Summary.TotalReturn > rs[j].Summary.TotalReturn })
		if len(rs) > k {
			rs = rs[:k]
		}
		out[sym] = rs
	}
	return out
}
