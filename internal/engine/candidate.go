package engine

import (
	"time"

	"github.com/aristath/dca-simulator/internal/txlog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BuyCandidate is a deferred entry the portfolio coordinator must admit
// before it commits (§4.3.1 step 2-3).
type BuyCandidate struct {
	Symbol       string
	Date         time.Time
	Price        decimal.Decimal
	RequiredCash float64
}

// StepObserveAndExit runs §4.2.1 steps 1-2 (observe, protect/exit) for one
// symbol on one day. It is exported for the portfolio coordinator, which
// drives every symbol through this step before the serial admission phase.
// On first call for a state, it seeds RecentPeak/RecentTrough from price.
// The returned proceeds/costBasis are non-zero exactly when a sell
// executed, so the coordinator can credit shared cash (§4.3.1 step 4).
func StepObserveAndExit(log zerolog.Logger, state *SymbolRunState, date time.Time, price, prevClose decimal.Decimal) (proceeds, costBasis decimal.Decimal) {
	if state.RecentPeak.IsZero() && state.RecentTrough.IsZero() {
		state.RecentPeak = price
		state.RecentTrough = price
	}
	if price.GreaterThan(state.RecentPeak) {
		state.RecentPeak = price
	}
	if price.LessThan(state.RecentTrough) {
		state.RecentTrough = price
	}
	state.Exit.UpdateOppositeExtreme(price)
	state.Entry.UpdateOppositeExtreme(price)

	return evaluateExit(log, state, date, price, prevClose)
}

// StepEntryCandidate runs §4.2.1 step 3's gates but stops short of
// committing: it returns a BuyCandidate when the entry fired and every
// non-cash gate passed, leaving the cash-admission decision to the
// coordinator.
func StepEntryCandidate(state *SymbolRunState, date time.Time, price, prevClose decimal.Decimal) (BuyCandidate, bool) {
	if !entryFired(state, price) {
		return BuyCandidate{}, false
	}
	if !checkEntryGates(state, price, prevClose) {
		return BuyCandidate{}, false
	}
	return BuyCandidate{Symbol: state.Symbol, Date: date, Price: price, RequiredCash: state.Params.LotSizeUsd}, true
}

// CommitBuy opens the admitted lot and emits a BUY transaction (distinct
// from the single-run TRAILING_BUY kind, since the portfolio's admission
// step is what actually authorized the trade).
func CommitBuy(log zerolog.Logger, state *SymbolRunState, candidate BuyCandidate) {
	commitEntry(log, state, candidate.Date, candidate.Price, txlog.KindBuy)
}

// StepRearm runs §4.2.1 step 4 for one symbol on one day.
func StepRearm(state *SymbolRunState, price decimal.Decimal) {
	rearm(state, price)
}

// Liquidate closes every open lot at price and emits a LIQUIDATION
// transaction (§4.3.1 membership removal). It returns the realized P&L and
// the total proceeds so the coordinator can credit cash and reduce
// deployed capital.
func Liquidate(log zerolog.Logger, state *SymbolRunState, date time.Time, price decimal.Decimal) (proceeds, costBasis, realizedPnL decimal.Decimal) {
	closed := state.Lots.CloseAll()
	if len(closed) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	shares := sumShares(closed)
	proceeds = price.Mul(shares)
	realizedPnL = signedRealizedPnL(state.Params.StrategyMode, closed, price)
	for _, lot := range closed {
		costBasis = costBasis.Add(lot.CostBasis)
	}

	tx := txlog.Transaction{
		Date:         date,
		Symbol:       state.Symbol,
		Kind:         txlog.KindLiquidation,
		Price:        price,
		Shares:       shares,
		Value:        proceeds,
		LotsAffected: len(closed),
		RealizedPnL:  &realizedPnL,
		Reason:       "index_removal",
	}
	state.Log.Append(tx)
	txlog.Console(log, tx)
	return proceeds, costBasis, realizedPnL
}
