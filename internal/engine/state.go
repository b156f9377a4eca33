// Package engine implements the single-symbol DCA execution engine: the
// day-by-day driver that consults the trailing-stop machines, applies
// gating, and emits transactions (§4.2).
package engine

import (
	"github.com/aristath/dca-simulator/internal/ledger"
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/aristath/dca-simulator/internal/trailingstop"
	"github.com/aristath/dca-simulator/internal/txlog"
	"github.com/shopspring/decimal"
)

// GateReason names why a candidate buy or sell was blocked. Using a map
// keyed by GateReason rather than a fixed set of named counters means a new
// gate can be added without a schema change (§12 supplement 3).
type GateReason string

const (
	GateMaxLots          GateReason = "max_lots_reached"
	GateGrid             GateReason = "grid_gate"
	GateMomentum         GateReason = "momentum_gate"
	GateDirectional      GateReason = "traditional_downtrend_only"
	GateDirectionalSell  GateReason = "traditional_uptrend_only"
	GateProfit           GateReason = "profit_gate"
	GateDivisionByZero   GateReason = "division_by_zero"
	GateNonPositivePrice GateReason = "nonpositive_price"
)

// SymbolRunState is the full mutable state the per-day pipeline threads
// through one symbol's run (§3.5). It owns its ledger and trailing-stop
// machines directly; it never holds a back-pointer to a parent portfolio
// (§9 design note on cyclic references).
type SymbolRunState struct {
	Symbol string
	Params params.Set

	Lots   ledger.Ledger
	Entry  *trailingstop.Machine // opens a position: buy shape (long) or sell shape (short)
	Exit   *trailingstop.Machine // closes a position: sell shape (long) or buy shape (short)

	RecentPeak   decimal.Decimal
	RecentTrough decimal.Decimal

	Log txlog.Log

	BuyCount  int
	SellCount int
	Counters  map[GateReason]int

	// ConsecutiveEntriesSinceLastExit widens the grid/profit requirement
	// for enableConsecutiveIncrementalBuyGrid/SellProfit (§4.2.2).
	ConsecutiveEntriesSinceLastExit int

	// FirstTradePrice anchors the dynamic-grid reference when
	// normalizeToReference is false (§4.2.2).
	FirstTradePrice decimal.Decimal
	HasTraded       bool
}

// NewSymbolRunState constructs a fresh state for one symbol run, with the
// entry/exit machine roles assigned by direction (§12 supplement 2): long
// enters on a dip/rebound (buy shape) and exits on a rise/pullback (sell
// shape); short is the literal mirror.
func NewSymbolRunState(symbol string, p params.Set) *SymbolRunState {
	s := &SymbolRunState{
		Symbol:   symbol,
		Params:   p,
		Counters: make(map[GateReason]int),
	}
	if p.StrategyMode == params.DirectionShort {
		s.Entry = trailingstop.NewSellShape()
		s.Exit = trailingstop.NewBuyShape()
	} else {
		s.Entry = trailingstop.NewBuyShape()
		s.Exit = trailingstop.NewSellShape()
	}
	return s
}

func (s *SymbolRunState) recordGate(reason GateReason) {
	s.Counters[reason]++
}
