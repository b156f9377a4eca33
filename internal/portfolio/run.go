package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/engine"
	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/aristath/dca-simulator/internal/txlog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RunPortfolio drives N symbols in lockstep by trading date, arbitrating a
// shared cash ledger under the capital invariant (§4.3).
func RunPortfolio(ctx context.Context, log zerolog.Logger, cfg Config, pricesBySymbol map[string]bars.Series) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	rule := cfg.Rule
	if rule == nil {
		rule = AscendingSymbolRule{}
	}

	state := &State{
		TotalCapital:          cfg.TotalCapital,
		CashReserve:           cfg.TotalCapital,
		MarginFraction:        cfg.MarginFraction,
		SymbolStates:          make(map[string]*engine.SymbolRunState),
		enableDeferredSelling: cfg.EnableDeferredSelling,
	}
	epsilon := cfg.EpsilonUsd
	if epsilon <= 0 {
		epsilon = 0.01
	}

	barsBySymbol := make(map[string]map[string]bars.Bar)
	for _, sym := range cfg.Symbols {
		series, ok := pricesBySymbol[sym]
		if !ok || len(series.Bars) == 0 {
			state.SkippedStocks = append(state.SkippedStocks, sym)
			continue
		}
		barsBySymbol[sym] = indexByDate(series)
	}

	membershipByDate := groupMembership(cfg.Membership)
	dates := unionDates(barsBySymbol)
	result := Result{SymbolResults: make(map[string]engine.SingleRunResult)}

	active := make(map[string]bool)
	for _, sym := range cfg.Symbols {
		if _, ok := barsBySymbol[sym]; ok && !hasAddEvent(cfg.Membership, sym) {
			active[sym] = true
			state.SymbolStates[sym] = engine.NewSymbolRunState(sym, cfg.paramsFor(sym))
		}
	}

	lastClose := make(map[string]decimal.Decimal)

	for _, day := range dates {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				result.DeadlineExceeded = true
			} else {
				result.Cancelled = true
			}
			return finalizeResult(state, result), nil
		default:
		}

		key := day.Format("2006-01-02")

		ageDeferredSells(state)

		for _, ev := range membershipByDate[key] {
			switch ev.Action {
			case MembershipAdd:
				if _, exists := state.SymbolStates[ev.Symbol]; !exists {
					state.SymbolStates[ev.Symbol] = engine.NewSymbolRunState(ev.Symbol, cfg.paramsFor(ev.Symbol))
				}
				active[ev.Symbol] = true
			case MembershipRemove:
				if st, exists := state.SymbolStates[ev.Symbol]; exists {
					if bar, ok := barsBySymbol[ev.Symbol][key]; ok {
						price := bar.DecisionPrice(cfg.paramsFor(ev.Symbol).UseAdjustedClose)
						proceeds, costBasis, _ := engine.Liquidate(log, st, day, price)
						pf, _ := proceeds.Float64()
						cf, _ := costBasis.Float64()
						state.CashReserve += pf
						state.DeployedCapital -= cf
						state.RealizedPnL += pf - cf
					}
				}
				delete(active, ev.Symbol)
			}
		}

		var candidates []engine.BuyCandidate
		candidatesBySymbol := make(map[string]engine.BuyCandidate)

		for sym := range active {
			bar, ok := barsBySymbol[sym][key]
			if !ok {
				continue
			}
			st := state.SymbolStates[sym]
			price := bar.DecisionPrice(st.Params.UseAdjustedClose)
			prevClose, havePrev := lastClose[sym]
			if !havePrev {
				prevClose = price
			}

			proceeds, costBasis := engine.StepObserveAndExit(log, st, day, price, prevClose)
			if !proceeds.IsZero() || !costBasis.IsZero() {
				pf, _ := proceeds.Float64()
				cf, _ := costBasis.Float64()
				state.CashReserve += pf
				state.DeployedCapital -= cf
				state.RealizedPnL += pf - cf
			}

			if cand, ok := engine.StepEntryCandidate(st, day, price, prevClose); ok {
				candidates = append(candidates, cand)
				candidatesBySymbol[sym] = cand
			}
		}

		ordered := rule.Order(toAdmissionCandidates(candidates))
		admissionCap := cfg.admissionCap()
		for _, c := range ordered {
			cand := candidatesBySymbol[c.Symbol]
			st := state.SymbolStates[c.Symbol]
			if state.DeployedCapital+cand.RequiredCash <= admissionCap && state.CashReserve >= cand.RequiredCash {
				state.CashReserve -= cand.RequiredCash
				state.DeployedCapital += cand.RequiredCash
				engine.CommitBuy(log, st, cand)
			} else {
				state.RejectedOrders = append(state.RejectedOrders, Rejection{Date: day, Symbol: c.Symbol, Reason: "insufficient_cash"})
				st.Log.Append(txlog.Transaction{
					Date:   day,
					Symbol: c.Symbol,
					Kind:   txlog.KindRejected,
					Price:  cand.Price,
					Reason: "insufficient_cash",
				})
			}
		}

		for sym := range active {
			bar, ok := barsBySymbol[sym][key]
			if !ok {
				continue
			}
			st := state.SymbolStates[sym]
			price := bar.DecisionPrice(st.Params.UseAdjustedClose)
			engine.StepRearm(st, price)
			lastClose[sym] = price
		}

		// The invariant's RHS grows with cumulative realized P&L: a sell
		// credits CashReserve by full proceeds while only relieving
		// DeployedCapital by cost basis, so a profitable (or lossy) exit
		// is expected to move deployed+cash by exactly RealizedPnL, not
		// leave it pinned to the starting TotalCapital (§4.3.1 step 4-5;
		// §8 scenario 6).
		expected := state.TotalCapital + state.RealizedPnL
		if delta := math.Abs(state.DeployedCapital + state.CashReserve - expected); delta > epsilon {
			return finalizeResult(state, result), simerrors.CapitalLeak{
				Delta:    state.DeployedCapital + state.CashReserve - expected,
				Symbols:  activeSymbols(active),
				Day:      day,
				Snapshot: state.snapshot(day),
			}
		}

		result.CapitalTimeSeries = append(result.CapitalTimeSeries, CapitalPoint{
			Day:             day,
			CashReserve:     state.CashReserve,
			DeployedCapital: state.DeployedCapital,
			RealizedPnL:     state.RealizedPnL,
		})
	}

	return finalizeResult(state, result), nil
}

func finalizeResult(state *State, result Result) Result {
	for sym, st := range state.SymbolStates {
		result.SymbolResults[sym] = engine.SingleRunResult{
			Symbol:       sym,
			Transactions: st.Log.Entries(),
			OpenLots:     st.Lots.Lots(),
			Summary: engine.Summary{
				BuyCount:   st.BuyCount,
				SellCount:  st.SellCount,
				GateCounts: st.Counters,
			},
		}
	}
	result.RejectedOrders = state.RejectedOrders
	result.SkippedStocks = state.SkippedStocks
	return result
}

func toAdmissionCandidates(bc []engine.BuyCandidate) []Candidate {
	out := make([]Candidate, len(bc))
	for i, c := range bc {
		out[i] = Candidate{Symbol: c.Symbol, RequiredCash: c.RequiredCash}
	}
	return out
}

func activeSymbols(active map[string]bool) []string {
	out := make([]string, 0, len(active))
	for s := range active {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func hasAddEvent(events []MembershipEvent, symbol string) bool {
	for _, e := range events {
		if e.Symbol == symbol && e.Action == MembershipAdd {
			return true
		}
	}
	return false
}

func groupMembership(events []MembershipEvent) map[string][]MembershipEvent {
	out := make(map[string][]MembershipEvent)
	for _, e := range events {
		key := e.Date.Format("2006-01-02")
		out[key] = append(out[key], e)
	}
	return out
}

func indexByDate(series bars.Series) map[string]bars.Bar {
	out := make(map[string]bars.Bar, len(series.Bars))
	for _, b := range series.Bars {
		out[b.Date.Format("2006-01-02")] = b
	}
	return out
}

func unionDates(barsBySymbol map[string]map[string]bars.Bar) []time.Time {
	seen := make(map[string]time.Time)
	for _, byDate := range barsBySymbol {
		for key, bar := range byDate {
			seen[key] = bar.Date
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
