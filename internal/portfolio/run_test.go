package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/params"
)

func bar(dayOffset int, close float64) bars.Bar {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, dayOffset)
	c := decimal.NewFromFloat(close)
	return bars.Bar{Date: date, Open: c, High: c, Low: c, Close: c, AdjustedClose: c, Volume: 1000}
}

func series(symbol string, closes []float64) bars.Series {
	out := make([]bars.Bar, len(closes))
	for i, c := range closes {
		out[i] = bar(i, c)
	}
	return bars.Series{Symbol: symbol, Bars: out}
}

func baseParams() params.Set {
	p := params.NewDefault()
	p.LotSizeUsd = 1000
	p.MaxLots = 5
	p.GridIntervalPercent = 0.05
	p.TrailingBuyActivationPercent = 0.03
	p.TrailingBuyReboundPercent = 0.03
	p.TrailingSellActivationPercent = 0.03
	p.TrailingSellPullbackPercent = 0.03
	return p
}

func TestRunPortfolio_EnforcesCapitalInvariant(t *testing.T) {
	cfg := Config{
		Symbols:      []string{"AAA", "BBB"},
		TotalCapital: 5000,
		BaseParams:   baseParams(),
	}
	prices := map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 96, 92, 88, 95, 102}),
		"BBB": series("BBB", []float64{50, 48, 46, 44, 47, 51}),
	}

	result, err := RunPortfolio(context.Background(), zerolog.Nop(), cfg, prices)
	require.NoError(t, err)
	assert.False(t, result.Cancelled)
	assert.Contains(t, result.SymbolResults, "AAA")
	assert.Contains(t, result.SymbolResults, "BBB")
}

func TestRunPortfolio_RejectsOrdersBeyondAdmissionCap(t *testing.T) {
	// Zero activation/rebound lets a falling series fire; with a 3% rebound
	// it never would.
	p := baseParams()
	p.TrailingBuyActivationPercent = 0
	p.TrailingBuyReboundPercent = 0
	cfg := Config{
		Symbols:      []string{"AAA", "BBB"},
		TotalCapital: 1200, // enough for ~1 lot, both symbols want to buy on day 3
		BaseParams:   p,
	}
	prices := map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 96, 92, 88}),
		"BBB": series("BBB", []float64{50, 48, 46, 44}),
	}

	result, err := RunPortfolio(context.Background(), zerolog.Nop(), cfg, prices)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RejectedOrders, "limited capital across two competing symbols should reject at least one candidate")
}

func TestRunPortfolio_SkipsSymbolWithNoPriceData(t *testing.T) {
	cfg := Config{
		Symbols:      []string{"AAA", "MISSING"},
		TotalCapital: 5000,
		BaseParams:   baseParams(),
	}
	prices := map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 101, 102}),
	}

	result, err := RunPortfolio(context.Background(), zerolog.Nop(), cfg, prices)
	require.NoError(t, err)
	assert.Contains(t, result.SkippedStocks, "MISSING")
}

func TestRunPortfolio_ValidationErrorOnNonPositiveCapital(t *testing.T) {
	cfg := Config{
		Symbols:      []string{"AAA"},
		TotalCapital: 0,
		BaseParams:   baseParams(),
	}
	_, err := RunPortfolio(context.Background(), zerolog.Nop(), cfg, map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 101}),
	})
	require.Error(t, err)
}

func TestRunPortfolio_DeadlineExceededDistinctFromCancelled(t *testing.T) {
	cfg := Config{
		Symbols:      []string{"AAA"},
		TotalCapital: 5000,
		BaseParams:   baseParams(),
	}
	prices := map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 101, 102, 103, 104}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	result, err := RunPortfolio(ctx, zerolog.Nop(), cfg, prices)
	require.NoError(t, err)
	assert.True(t, result.DeadlineExceeded)
	assert.False(t, result.Cancelled)
}
