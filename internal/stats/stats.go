// Package stats computes the summary-block risk metrics (§4.2.3) shared by
// the single-symbol engine and the buy-and-hold baseline.
package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DailyReturns converts a mark-to-market value series into simple daily
// returns, one element shorter than the input.
func DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			out[i-1] = 0
			continue
		}
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out
}

// CAGR computes the compound annual growth rate between startValue and
// endValue over the elapsed calendar period.
func CAGR(startValue, endValue float64, start, end time.Time) float64 {
	if startValue <= 0 || endValue <= 0 {
		return 0
	}
	years := end.Sub(start).Hours() / (24 * 365.25)
	if years <= 0 {
		return 0
	}
	return math.Pow(endValue/startValue, 1/years) - 1
}

// MaxDrawdown returns the largest peak-to-trough decline in a mark-to-market
// value series, as a positive fraction (0.25 = 25% drawdown).
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// MeanStdDev wraps gonum's stat.MeanStdDev for the summary block's return
// distribution, weighting every observation equally.
func MeanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(values, nil)
}

// SharpeRatio is the annualized Sharpe ratio of a daily-return series
// against a (typically zero) daily risk-free rate, using gonum for the
// underlying mean/stddev.
func SharpeRatio(dailyReturns []float64, dailyRiskFree float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	excess := make([]float64, len(dailyReturns))
	for i, r := range dailyReturns {
		excess[i] = r - dailyRiskFree
	}
	mean, stddev := stat.MeanStdDev(excess, nil)
	if stddev == 0 {
		return 0
	}
	const tradingDaysPerYear = 252
	return (mean / stddev) * math.Sqrt(tradingDaysPerYear)
}
