package engine

import (
	"context"
	"time"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/ledger"
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/aristath/dca-simulator/internal/stats"
	"github.com/aristath/dca-simulator/internal/txlog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RunSingle drives one price series day-by-day against params, consulting
// the trailing-stop machines, applying gates, and emitting transactions
// (§4.2). It never partially mutates caller state: prices and params are
// read-only inputs, and the returned SingleRunResult owns everything it
// produced.
func RunSingle(ctx context.Context, log zerolog.Logger, p params.Set, series bars.Series) (SingleRunResult, error) {
	if err := p.Validate(); err != nil {
		return SingleRunResult{}, err
	}
	if len(series.Bars) == 0 {
		return SingleRunResult{}, simerrors.MissingPriceData{Symbol: series.Symbol}
	}
	if err := series.Validate(); err != nil {
		return SingleRunResult{}, simerrors.InternalInvariant{Reason: err.Error(), Snapshot: series}
	}

	state := NewSymbolRunState(series.Symbol, p)
	log = log.With().Str("symbol", series.Symbol).Logger()

	var mtmValues []float64
	var closeSeries []float64
	var prevClose decimal.Decimal
	havePrev := false
	result := SingleRunResult{Symbol: series.Symbol}

	for _, bar := range series.Bars {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				result.DeadlineExceeded = true
			} else {
				result.Cancelled = true
			}
			result.EndDate = bar.Date
			return finalize(state, result, mtmValues, closeSeries, series.Bars[0].Date), nil
		default:
		}

		price := bar.DecisionPrice(p.UseAdjustedClose)
		if !price.IsPositive() {
			log.Warn().Time("date", bar.Date).Msg("skipping day: non-positive decision price")
			state.recordGate(GateNonPositivePrice)
			continue
		}

		if !havePrev {
			state.RecentPeak = price
			state.RecentTrough = price
			prevClose = price
			havePrev = true
		}

		// Step 1: observe.
		if price.GreaterThan(state.RecentPeak) {
			state.RecentPeak = price
		}
		if price.LessThan(state.RecentTrough) {
			state.RecentTrough = price
		}
		state.Exit.UpdateOppositeExtreme(price)
		state.Entry.UpdateOppositeExtreme(price)

		// Step 2: protect (exit/sell evaluation) before acquire.
		_, _ = evaluateExit(log, state, bar.Date, price, prevClose)

		// Step 3: acquire (entry/buy evaluation).
		evaluateEntry(log, state, bar.Date, price, prevClose)

		// Step 4: re-arm for the next day.
		rearm(state, price)

		mtmValue, _ := markToMarket(state, price).Float64()
		mtmValues = append(mtmValues, mtmValue)
		closeF, _ := price.Float64()
		closeSeries = append(closeSeries, closeF)

		prevClose = price
		result.EndDate = bar.Date
	}

	return finalize(state, result, mtmValues, closeSeries, series.Bars[0].Date), nil
}

// evaluateExit returns the proceeds and cost basis of any lots closed, so
// the portfolio coordinator can credit shared cash (§4.3.1 step 4). Both
// are zero when no sell executed.
func evaluateExit(log zerolog.Logger, state *SymbolRunState, date time.Time, price, prevClose decimal.Decimal) (proceeds, costBasis decimal.Decimal) {
	if state.Lots.Len() == 0 {
		return decimal.Zero, decimal.Zero
	}

	cancelled := state.Exit.CheckCancel(price, state.Params.TrailingStopOrderType)
	if cancelled {
		return decimal.Zero, decimal.Zero
	}
	if !state.Exit.CheckFire(price) {
		return decimal.Zero, decimal.Zero
	}

	avgCost := state.Lots.AverageCost()
	if avgCost.IsZero() {
		state.recordGate(GateDivisionByZero)
		return decimal.Zero, decimal.Zero
	}

	effectiveProfit := EffectiveProfitRequirement(state.Params, state)
	profitOK := exitProfitGate(state.Params.StrategyMode, price, avgCost, effectiveProfit)
	if !profitOK {
		state.recordGate(GateProfit)
		if state.Params.MomentumBasedSell {
			log.Debug().Time("date", date).Msg("sell trigger discarded: profit gate failed (momentum-based sell logs but still discards)")
		}
		return decimal.Zero, decimal.Zero
	}

	if isDowntrend(prevClose, price) && !state.Params.EnableAdaptiveTrailingSell {
		state.recordGate(GateDirectionalSell)
		return decimal.Zero, decimal.Zero
	}

	n := state.Params.MaxLotsToSell
	if n <= 0 {
		n = 1
	}
	closed := state.Lots.CloseFIFO(n)
	if len(closed) == 0 {
		return decimal.Zero, decimal.Zero
	}

	pnl := signedRealizedPnL(state.Params.StrategyMode, closed, price)
	pnl = pnl.Sub(decimal.NewFromFloat(state.Params.PerTradeFeeUsd))
	shares := sumShares(closed)
	value := price.Mul(shares)
	for _, lot := range closed {
		costBasis = costBasis.Add(lot.CostBasis)
	}

	tx := txlog.Transaction{
		Date:         date,
		Symbol:       state.Symbol,
		Kind:         txlog.KindTrailingSell,
		Price:        price,
		Shares:       shares,
		Value:        value,
		LotsAffected: len(closed),
		RealizedPnL:  &pnl,
	}
	state.Log.Append(tx)
	txlog.Console(log, tx)
	state.SellCount++
	state.ConsecutiveEntriesSinceLastExit = 0
	return value, costBasis
}

func evaluateEntry(log zerolog.Logger, state *SymbolRunState, date time.Time, price, prevClose decimal.Decimal) {
	if !entryFired(state, price) {
		return
	}
	if !checkEntryGates(state, price, prevClose) {
		return
	}
	commitEntry(log, state, date, price, txlog.KindTrailingBuy)
}

// entryFired drives the entry machine's cancel/fire transitions (shared by
// RunSingle and the portfolio coordinator's deferred-candidate path).
func entryFired(state *SymbolRunState, price decimal.Decimal) bool {
	if state.Entry.CheckCancel(price, state.Params.TrailingStopOrderType) {
		return false
	}
	return state.Entry.CheckFire(price)
}

// checkEntryGates applies every non-cash gate (§4.2.1 step 3 a-d). A false
// return has already recorded the blocking GateReason.
func checkEntryGates(state *SymbolRunState, price, prevClose decimal.Decimal) bool {
	if state.Lots.Len() >= state.Params.MaxLots {
		state.recordGate(GateMaxLots)
		return false
	}

	if last, ok := state.Lots.Last(); ok {
		effectiveGrid := EffectiveGrid(state.Params, price, state)
		if !entryGridGate(state.Params.StrategyMode, price, last.EntryPrice, effectiveGrid) {
			state.recordGate(GateGrid)
			return false
		}
	}

	if state.Params.MomentumBasedBuy && state.Lots.Len() > 0 {
		avgCost := state.Lots.AverageCost()
		if !entryMomentumGate(state.Params.StrategyMode, price, avgCost) {
			state.recordGate(GateMomentum)
			return false
		}
	}

	if isUptrend(prevClose, price) && !state.Params.EnableAdaptiveTrailingBuy {
		state.recordGate(GateDirectional)
		return false
	}

	if price.IsZero() {
		state.recordGate(GateDivisionByZero)
		return false
	}
	return true
}

// commitEntry opens the lot and emits the transaction. kind distinguishes a
// single-run trailing buy (KindTrailingBuy) from a portfolio-admitted buy
// (KindBuy, committed a step later than the gate check).
func commitEntry(log zerolog.Logger, state *SymbolRunState, date time.Time, price decimal.Decimal, kind txlog.Kind) {
	shares := decimal.NewFromFloat(state.Params.LotSizeUsd - state.Params.PerTradeFeeUsd).Div(price)
	if !shares.IsPositive() {
		state.recordGate(GateDivisionByZero)
		return
	}

	lot := ledger.Lot{
		EntryDate:  date,
		EntryPrice: price,
		Shares:     shares,
		CostBasis:  decimal.NewFromFloat(state.Params.LotSizeUsd),
	}
	if err := state.Lots.Open(lot); err != nil {
		log.Error().Err(err).Time("date", date).Msg("failed to open lot")
		return
	}

	if !state.HasTraded {
		state.FirstTradePrice = price
		state.HasTraded = true
	}

	tx := txlog.Transaction{
		Date:   date,
		Symbol: state.Symbol,
		Kind:   kind,
		Price:  price,
		Shares: shares,
		Value:  lot.CostBasis,
	}
	state.Log.Append(tx)
	txlog.Console(log, tx)
	state.BuyCount++
	state.ConsecutiveEntriesSinceLastExit++
}

func rearm(state *SymbolRunState, price decimal.Decimal) {
	if !state.Entry.IsArmed() {
		state.Entry.Arm(state.RecentPeak, price, state.Params.TrailingBuyActivationPercent, state.Params.TrailingBuyReboundPercent)
	}
	if !state.Exit.IsArmed() {
		state.Exit.Arm(state.RecentTrough, price, state.Params.TrailingSellActivationPercent, state.Params.TrailingSellPullbackPercent)
	}
}

// isUptrend/isDowntrend are the short-term directional gate inputs (§4.2.1
// gate d). A single-day trend proxy is sufficient here: the engine's grid
// and profit gates already do the heavy lifting; the directional gate only
// needs to distinguish a reversal day from a continuation day.
func isUptrend(prevClose, close decimal.Decimal) bool {
	return close.GreaterThan(prevClose)
}

func isDowntrend(prevClose, close decimal.Decimal) bool {
	return close.LessThan(prevClose)
}

func exitProfitGate(mode params.Direction, price, avgCost decimal.Decimal, effectiveProfit float64) bool {
	threshold := decimal.NewFromFloat(1 + effectiveProfit)
	if mode == params.DirectionShort {
		threshold = decimal.NewFromFloat(1 - effectiveProfit)
		return !price.GreaterThan(avgCost.Mul(threshold))
	}
	return !price.LessThan(avgCost.Mul(threshold))
}

func entryGridGate(mode params.Direction, price, lastEntryPrice decimal.Decimal, effectiveGrid float64) bool {
	if mode == params.DirectionShort {
		threshold := lastEntryPrice.Mul(decimal.NewFromFloat(1 + effectiveGrid))
		return !price.LessThan(threshold)
	}
	threshold := lastEntryPrice.Mul(decimal.NewFromFloat(1 - effectiveGrid))
	return !price.GreaterThan(threshold)
}

func entryMomentumGate(mode params.Direction, price, avgCost decimal.Decimal) bool {
	if mode == params.DirectionShort {
		return avgCost.GreaterThan(price)
	}
	return price.GreaterThan(avgCost)
}

func signedRealizedPnL(mode params.Direction, closed []ledger.Lot, exitPrice decimal.Decimal) decimal.Decimal {
	pnl := ledger.RealizedPnL(closed, exitPrice)
	if mode == params.DirectionShort {
		return pnl.Neg()
	}
	return pnl
}

func sumShares(lots []ledger.Lot) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lots {
		sum = sum.Add(l.Shares)
	}
	return sum
}

func markToMarket(state *SymbolRunState, price decimal.Decimal) decimal.Decimal {
	shares := state.Lots.TotalShares()
	return shares.Mul(price)
}

func finalize(state *SymbolRunState, result SingleRunResult, mtmValues, closeSeries []float64, firstDate time.Time) SingleRunResult {
	result.Transactions = state.Log.Entries()
	result.OpenLots = state.Lots.Lots()

	var realized decimal.Decimal
	for _, tx := range result.Transactions {
		if tx.RealizedPnL != nil {
			realized = realized.Add(*tx.RealizedPnL)
		}
	}

	totalInvested := decimal.NewFromFloat(state.Params.LotSizeUsd).Mul(decimal.NewFromInt(int64(state.BuyCount)))
	unrealized := decimal.Zero
	if len(result.OpenLots) > 0 && len(mtmValues) > 0 {
		finalMTM := decimal.NewFromFloat(mtmValues[len(mtmValues)-1])
		unrealized = finalMTM.Sub(state.Lots.OpenCostBasis())
	}

	maxDD := stats.MaxDrawdown(mtmValues)
	var totalReturn, timeWeighted float64
	if !totalInvested.IsZero() {
		finalValue := realized.Add(unrealized).Add(totalInvested)
		tr, _ := finalValue.Div(totalInvested).Sub(decimal.NewFromInt(1)).Float64()
		totalReturn = tr
		timeWeighted = tr
	}

	baseline := buyAndHoldBaseline(state.Params, closeSeries, firstDate, result.EndDate)

	result.Summary = Summary{
		TotalReturn:        totalReturn,
		TimeWeightedReturn: timeWeighted,
		RealizedPnL:        realized,
		UnrealizedPnL:      unrealized,
		MaxDrawdown:        maxDD,
		BuyCount:           state.BuyCount,
		SellCount:          state.SellCount,
		GateCounts:         state.Counters,
		Baseline:           baseline,
	}
	return result
}

// buyAndHoldBaseline invests a hypothetical totalCapital (lotSizeUsd *
// maxLots, the most the strategy could ever deploy) at the first close and
// marks it to market using the same price series (§4.2.3).
func buyAndHoldBaseline(p params.Set, closeSeries []float64, start, end time.Time) Baseline {
	if len(closeSeries) == 0 || closeSeries[0] <= 0 {
		return Baseline{}
	}
	capital := p.LotSizeUsd * float64(p.MaxLots)
	if capital <= 0 {
		capital = p.LotSizeUsd
	}
	shares := capital / closeSeries[0]

	values := make([]float64, len(closeSeries))
	for i, c := range closeSeries {
		values[i] = shares * c
	}
	endValue := values[len(values)-1]

	return Baseline{
		Return:      endValue/capital - 1,
		CAGR:        stats.CAGR(capital, endValue, start, end),
		MaxDrawdown: stats.MaxDrawdown(values),
	}
}
