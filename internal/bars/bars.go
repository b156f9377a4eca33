// Package bars defines the daily price series consumed by the engine,
// portfolio coordinator, and batch runner.
package bars

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily OHLC observation for a symbol.
type Bar struct {
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	AdjustedClose decimal.Decimal `json:"adjustedClose"`
	Volume        int64           `json:"volume"`
}

// Validate checks the bar invariants from the data model: low <= open,close
// <= high, and a strictly positive adjusted close.
func (b Bar) Validate() error {
	if b.Low.GreaterThan(b.Open) || b.Open.GreaterThan(b.High) {
		return fmt.Errorf("bar %s: open %s outside [low %s, high %s]", b.Date.Format("2006-01-02"), b.Open, b.Low, b.High)
	}
	if b.Low.GreaterThan(b.Close) || b.Close.GreaterThan(b.High) {
		return fmt.Errorf("bar %s: close %s outside [low %s, high %s]", b.Date.Format("2006-01-02"), b.Close, b.Low, b.High)
	}
	if !b.AdjustedClose.IsPositive() {
		return fmt.Errorf("bar %s: adjustedClose must be positive, got %s", b.Date.Format("2006-01-02"), b.AdjustedClose)
	}
	return nil
}

// DecisionPrice returns the close or adjusted close, per useAdjustedClose.
func (b Bar) DecisionPrice(useAdjustedClose bool) decimal.Decimal {
	if useAdjustedClose {
		return b.AdjustedClose
	}
	return b.Close
}

// Series is an ordered, ascending-by-date sequence of bars for one symbol.
type Series struct {
	Symbol string
	Bars   []Bar
}

// Validate checks every bar's invariant and that dates are strictly
// ascending (no duplicate or out-of-order days); a violated ordering here
// is an InternalInvariant upstream, not a recoverable condition.
func (s Series) Validate() error {
	var prev time.Time
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("series %s: %w", s.Symbol, err)
		}
		if i > 0 && !b.Date.After(prev) {
			return fmt.Errorf("series %s: date %s is not strictly after %s", s.Symbol, b.Date.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
		prev = b.Date
	}
	return nil
}

// Dates returns the ordered trading dates covered by the series.
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}
