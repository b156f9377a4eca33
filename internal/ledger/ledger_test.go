package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func mustOpen(t *testing.T, l *Ledger, price, shares float64) {
	t.Helper()
	require.NoError(t, l.Open(Lot{
		EntryDate:  time.Now(),
		EntryPrice: dec(price),
		Shares:     dec(shares),
		CostBasis:  dec(price).Mul(dec(shares)),
	}))
}

func TestLedger_OpenRejectsNonPositiveShares(t *testing.T) {
	var l Ledger
	err := l.Open(Lot{Shares: decimal.Zero})
	require.Error(t, err)
	assert.Equal(t, 0, l.Len())

	err = l.Open(Lot{Shares: dec(-1)})
	require.Error(t, err)
}

func TestLedger_FIFOOrderAndTotals(t *testing.T) {
	var l Ledger
	mustOpen(t, &l, 10, 5)
	mustOpen(t, &l, 12, 5)
	mustOpen(t, &l, 14, 5)

	require.Equal(t, 3, l.Len())
	assert.True(t, l.TotalShares().Equal(dec(15)))
	assert.True(t, l.OpenCostBasis().Equal(dec(50+60+70)))

	closed := l.CloseFIFO(2)
	require.Len(t, closed, 2)
	assert.True(t, closed[0].EntryPrice.Equal(dec(10)), "FIFO closes the oldest lot first")
	assert.True(t, closed[1].EntryPrice.Equal(dec(12)))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_CloseFIFOClampsToOpenCount(t *testing.T) {
	var l Ledger
	mustOpen(t, &l, 10, 1)

	closed := l.CloseFIFO(5)
	assert.Len(t, closed, 1)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_CloseFIFOZeroOrNegativeIsNoOp(t *testing.T) {
	var l Ledger
	mustOpen(t, &l, 10, 1)

	assert.Nil(t, l.CloseFIFO(0))
	assert.Nil(t, l.CloseFIFO(-1))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_CloseAllLiquidatesEverything(t *testing.T) {
	var l Ledger
	mustOpen(t, &l, 10, 1)
	mustOpen(t, &l, 20, 1)

	closed := l.CloseAll()
	assert.Len(t, closed, 2)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_AverageCostWithNoOpenLotsIsZero(t *testing.T) {
	var l Ledger
	assert.True(t, l.AverageCost().IsZero())
}

func TestLedger_AverageCostWeightsBySize(t *testing.T) {
	var l Ledger
	mustOpen(t, &l, 10, 1) // cost basis 10
	mustOpen(t, &l, 20, 3) // cost basis 60

	// (10 + 60) / (1 + 3) = 17.5
	assert.True(t, l.AverageCost().Equal(dec(17.5)))
}

func TestLedger_LotsReturnsDefensiveCopy(t *testing.T) {
	var l Ledger
	mustOpen(t, &l, 10, 1)

	lots := l.Lots()
	lots[0].Shares = dec(999)

	assert.True(t, l.TotalShares().Equal(dec(1)), "mutating the returned slice must not affect ledger state")
}

func TestLedger_Last(t *testing.T) {
	var l Ledger
	_, ok := l.Last()
	assert.False(t, ok)

	mustOpen(t, &l, 10, 1)
	mustOpen(t, &l, 20, 1)

	last, ok := l.Last()
	require.True(t, ok)
	assert.True(t, last.EntryPrice.Equal(dec(20)))
}

func TestRealizedPnL(t *testing.T) {
	closed := []Lot{
		{EntryPrice: dec(10), Shares: dec(2)},
		{EntryPrice: dec(15), Shares: dec(1)},
	}

	// (20-10)*2 + (20-15)*1 = 20 + 5 = 25
	pnl := RealizedPnL(closed, dec(20))
	assert.True(t, pnl.Equal(dec(25)))
}

func TestRealizedPnL_EmptyClosedSetIsZero(t *testing.T) {
	assert.True(t, RealizedPnL(nil, dec(100)).IsZero())
}
