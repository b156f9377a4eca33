// Package indicators wraps go-talib's rolling-window helpers and holds the
// fixed clamp applied to the dynamic grid's scale factor.
package indicators

import (
	"github.com/markcheno/go-talib"
)

// RollingMax returns, for each index i >= period-1, the maximum close over
// the trailing window [i-period+1, i]. Indexes before the window fills are
// zero, matching talib's warm-up convention. The engine does not call it:
// its recentPeak/recentTrough are running extremes since the run started.
func RollingMax(closes []float64, period int) []float64 {
	if period <= 1 || len(closes) == 0 {
		return append([]float64(nil), closes...)
	}
	return talib.Max(closes, period)
}

// RollingMin is RollingMax's mirror for the sell side's trough tracking.
func RollingMin(closes []float64, period int) []float64 {
	if period <= 1 || len(closes) == 0 {
		return append([]float64(nil), closes...)
	}
	return talib.Min(closes, period)
}

// ClampScaleFactor bounds the dynamic grid's scale factor to the fixed
// range [0, 10]. The effective grid itself is clamped to [0, 1] separately
// by the engine.
func ClampScaleFactor(scale float64) float64 {
	switch {
	case scale < 0:
		return 0
	case scale > 10:
		return 10
	default:
		return scale
	}
}
