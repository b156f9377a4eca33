package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/txlog"
)

// TestScenario_CashExhaustionRejectsCompetingCandidates seeds the cash
// exhaustion scenario: three symbols each demand a 10000 buy on the same
// day against a 30000 total, so all three admit; the next day, the same
// three demand another buy against zero remaining cash, and all three must
// be rejected with reason insufficient_cash rather than partially mutating
// any ledger.
func TestScenario_CashExhaustionRejectsCompetingCandidates(t *testing.T) {
	p := baseParams()
	p.LotSizeUsd = 10000
	p.MaxLots = 5
	p.GridIntervalPercent = 0.01
	p.TrailingBuyActivationPercent = 0
	p.TrailingBuyReboundPercent = 0

	cfg := Config{
		Symbols:      []string{"AAA", "BBB", "CCC"},
		TotalCapital: 30000,
		BaseParams:   p,
	}
	// All three open at 100 on day 1 (arms at zero activation) and fire
	// together on day 2's dip, each wanting another 10000 lot on day 3's
	// further dip once the grid gate (1%) has cleared.
	prices := map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 95, 90}),
		"BBB": series("BBB", []float64{100, 95, 90}),
		"CCC": series("CCC", []float64{100, 95, 90}),
	}

	result, err := RunPortfolio(context.Background(), zerolog.Nop(), cfg, prices)
	require.NoError(t, err)

	var rejectedDay3 int
	for _, r := range result.RejectedOrders {
		if r.Reason == "insufficient_cash" {
			rejectedDay3++
		}
	}
	assert.GreaterOrEqual(t, rejectedDay3, 1, "once all 30000 is deployed, further candidates on the same day must be rejected for insufficient cash")

	for _, rej := range result.RejectedOrders {
		assert.Equal(t, "insufficient_cash", rej.Reason)
	}

	var rejectedTx int
	for _, sym := range cfg.Symbols {
		for _, tx := range result.SymbolResults[sym].Transactions {
			if tx.Kind == txlog.KindRejected {
				rejectedTx++
				assert.Equal(t, "insufficient_cash", tx.Reason)
			}
		}
	}
	assert.Equal(t, len(result.RejectedOrders), rejectedTx, "every rejection recorded on the portfolio must also appear in its symbol's transaction log")
}

// TestScenario_IndexRemovalLiquidatesAndKeepsTheInvariant seeds the
// membership-removal scenario: a symbol with open lots is removed from the
// index mid-run, liquidated at that day's close, and the realized proceeds
// must land in cash while deployed capital drops by the closed lots' cost
// basis, with the capital invariant holding immediately after.
func TestScenario_IndexRemovalLiquidatesAndKeepsTheInvariant(t *testing.T) {
	p := baseParams()
	p.LotSizeUsd = 10000
	p.MaxLots = 5
	p.GridIntervalPercent = 0.01
	p.TrailingBuyActivationPercent = 0
	p.TrailingBuyReboundPercent = 0

	removalDay := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 4)

	cfg := Config{
		Symbols:      []string{"AAA"},
		TotalCapital: 50000,
		BaseParams:   p,
		Membership: []MembershipEvent{
			{Symbol: "AAA", Date: removalDay, Action: MembershipRemove},
		},
	}
	// Day1 arms at 100 (zero activation); day2's dip fires the first lot
	// at 95; day3's 94 clears the 1% grid and opens a second; day4's 96 is
	// blocked by the grid; the symbol is removed on day 5 at close 120,
	// liquidating both lots.
	prices := map[string]bars.Series{
		"AAA": series("AAA", []float64{100, 95, 94, 96, 120}),
	}

	result, err := RunPortfolio(context.Background(), zerolog.Nop(), cfg, prices)
	require.NoError(t, err)

	var liquidation *txlog.Transaction
	for _, tx := range result.SymbolResults["AAA"].Transactions {
		if tx.Kind == txlog.KindLiquidation {
			tx := tx
			liquidation = &tx
		}
	}
	require.NotNil(t, liquidation, "index removal must emit a LIQUIDATION transaction")
	assert.True(t, liquidation.RealizedPnL.IsPositive(), "liquidating at 120 against entries at 95 and 94 must realize a gain")

	assert.Empty(t, result.SymbolResults["AAA"].OpenLots, "liquidation must close every open lot for the removed symbol")
}
