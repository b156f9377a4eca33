// Package ledger tracks the open lots for one symbol, closed FIFO.
package ledger

import (
	"time"

	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/shopspring/decimal"
)

// Lot is a single purchased position (§3.2). For short mode the same shape
// represents a short cover: Shares and CostBasis carry the same sign
// convention the engine's Direction applies consistently.
type Lot struct {
	EntryDate  time.Time       `json:"entryDate"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Shares     decimal.Decimal `json:"shares"`
	CostBasis  decimal.Decimal `json:"costBasis"`
}

// Ledger is the chronologically-ordered, FIFO-closed open-lot list for one
// symbol.
type Ledger struct {
	lots []Lot
}

// Open appends a new lot. Entry order is append order; Close always removes
// from the front.
func (l *Ledger) Open(lot Lot) error {
	if !lot.Shares.IsPositive() {
		return simerrors.InternalInvariant{Reason: "opened lot with non-positive shares", Snapshot: lot}
	}
	l.lots = append(l.lots, lot)
	return nil
}

// Len returns the number of open lots.
func (l *Ledger) Len() int { return len(l.lots) }

// Lots returns the open lots in FIFO order. The returned slice is a copy;
// callers must not mutate engine state through it.
func (l *Ledger) Lots() []Lot {
	out := make([]Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Last returns the most recently opened lot, if any.
func (l *Ledger) Last() (Lot, bool) {
	if len(l.lots) == 0 {
		return Lot{}, false
	}
	return l.lots[len(l.lots)-1], true
}

// TotalShares sums shares across all open lots.
func (l *Ledger) TotalShares() decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range l.lots {
		sum = sum.Add(lot.Shares)
	}
	return sum
}

// OpenCostBasis sums cost basis across all open lots.
func (l *Ledger) OpenCostBasis() decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range l.lots {
		sum = sum.Add(lot.CostBasis)
	}
	return sum
}

// AverageCost returns Σ costBasis / Σ shares, or zero if there are no open
// lots (callers must treat a zero-shares denominator as "no transaction",
// per §4.2.4's division-by-zero failure semantics).
func (l *Ledger) AverageCost() decimal.Decimal {
	shares := l.TotalShares()
	if shares.IsZero() {
		return decimal.Zero
	}
	return l.OpenCostBasis().Div(shares)
}

// CloseFIFO closes up to n lots from the front of the ledger and returns
// them. If n exceeds the open-lot count, all lots are closed.
func (l *Ledger) CloseFIFO(n int) []Lot {
	if n <= 0 {
		return nil
	}
	if n > len(l.lots) {
		n = len(l.lots)
	}
	closed := make([]Lot, n)
	copy(closed, l.lots[:n])
	l.lots = l.lots[n:]
	return closed
}

// CloseAll liquidates every open lot (used by portfolio index removal,
// §4.3.1).
func (l *Ledger) CloseAll() []Lot {
	return l.CloseFIFO(len(l.lots))
}

// RealizedPnL computes Σ (exitPrice - lot.entryPrice) * lot.shares for a set
// of closed lots, on the long side. Direction inversion for short mode is
// the caller's responsibility (engine.Direction).
func RealizedPnL(closed []Lot, exitPrice decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, lot := range closed {
		sum = sum.Add(exitPrice.Sub(lot.EntryPrice).Mul(lot.Shares))
	}
	return sum
}
