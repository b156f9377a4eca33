// Package priceprovider defines the PriceProvider boundary the core
// consumes (§6) and a reference SQLite-backed implementation. The core
// itself caches nothing; it trusts the provider to be pure over a run.
package priceprovider

import (
	"context"
	"time"

	"github.com/aristath/dca-simulator/internal/bars"
)

// Provider supplies ordered daily bars for a symbol over a date range.
// Implementations fail with a simerrors.MissingPriceData (NotFound or
// PartialRange), never a silent empty slice with nil error.
type Provider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) (bars.Series, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, symbol string, start, end time.Time) (bars.Series, error)

func (f Func) Bars(ctx context.Context, symbol string, start, end time.Time) (bars.Series, error) {
	return f(ctx, symbol, start, end)
}
