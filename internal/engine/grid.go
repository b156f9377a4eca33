package engine

import (
	"math"

	"github.com/aristath/dca-simulator/internal/indicators"
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/shopspring/decimal"
)

// EffectiveGrid implements §4.2.2's price-adaptive grid spacing: a base
// gridIntervalPercent, optionally scaled by sqrt(price/ref) when dynamic
// grid is enabled, optionally widened per consecutive entry.
func EffectiveGrid(p params.Set, closePrice decimal.Decimal, state *SymbolRunState) float64 {
	base := p.GridIntervalPercent

	if p.EnableDynamicGrid {
		base = base * dynamicScaleFactor(p, closePrice, state) * p.DynamicGridMultiplier
	}
	if p.EnableConsecutiveIncrementalBuyGrid {
		base += p.GridConsecutiveIncrement * float64(state.ConsecutiveEntriesSinceLastExit)
	}
	return clamp01(base)
}

// EffectiveProfitRequirement is the sell-side mirror: the base
// profitRequirement, optionally widened per entry since the last exit.
func EffectiveProfitRequirement(p params.Set, state *SymbolRunState) float64 {
	base := p.ProfitRequirement
	if p.EnableConsecutiveIncrementalSellProfit {
		base += p.GridConsecutiveIncrement * float64(state.ConsecutiveEntriesSinceLastExit)
	}
	return clamp01(base)
}

func dynamicScaleFactor(p params.Set, closePrice decimal.Decimal, state *SymbolRunState) float64 {
	ref := 100.0
	if !p.NormalizeToReference {
		switch {
		case state.HasTraded:
			ref, _ = state.FirstTradePrice.Float64()
		default:
			ref, _ = closePrice.Float64()
		}
		if ref <= 0 {
			ref = 1
		}
	}

	price, _ := closePrice.Float64()
	return indicators.ClampScaleFactor(math.Sqrt(price / ref))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
