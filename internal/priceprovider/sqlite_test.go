package priceprovider

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *SQLiteProvider {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "pricecache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func day(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestSQLiteProvider_BarsReturnsMissingPriceDataWhenSymbolIsAbsent(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Bars(context.Background(), "AAA", day(0), day(2))
	require.Error(t, err)

	var missing simerrors.MissingPriceData
	require.ErrorAs(t, err, &missing)
	assert.False(t, missing.Partial)
}

func TestSQLiteProvider_PutThenBarsRoundTrips(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	rows := []bars.Bar{
		{Date: day(0), Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101), Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100), AdjustedClose: decimal.NewFromInt(100), Volume: 1000},
		{Date: day(1), Open: decimal.NewFromInt(101), High: decimal.NewFromInt(102), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(101), AdjustedClose: decimal.NewFromInt(101), Volume: 1200},
	}
	require.NoError(t, p.Put(ctx, "AAA", rows))

	series, err := p.Bars(ctx, "AAA", day(0), day(1))
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)
	assert.True(t, series.Bars[1].Close.Equal(decimal.NewFromInt(101)))
}

func TestSQLiteProvider_BarsReturnsPartialWhenRangeIsNotFullyCovered(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Put(ctx, "AAA", []bars.Bar{
		{Date: day(1), Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(100), AdjustedClose: decimal.NewFromInt(100)},
	}))

	series, err := p.Bars(ctx, "AAA", day(0), day(2))
	require.Error(t, err)

	var missing simerrors.MissingPriceData
	require.ErrorAs(t, err, &missing)
	assert.True(t, missing.Partial)
	assert.Len(t, series.Bars, 1, "a partial range still returns the bars that were found")
}

func TestSQLiteProvider_PutUpsertsOnConflict(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Put(ctx, "AAA", []bars.Bar{
		{Date: day(0), Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(100), AdjustedClose: decimal.NewFromInt(100)},
	}))
	require.NoError(t, p.Put(ctx, "AAA", []bars.Bar{
		{Date: day(0), Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(105), AdjustedClose: decimal.NewFromInt(105)},
	}))

	series, err := p.Bars(ctx, "AAA", day(0), day(0))
	require.NoError(t, err)
	require.Len(t, series.Bars, 1)
	assert.True(t, series.Bars[0].Close.Equal(decimal.NewFromInt(105)), "a second Put for the same symbol/date must overwrite, not duplicate")
}

var _ Provider = (*SQLiteProvider)(nil)
