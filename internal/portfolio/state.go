// Package portfolio implements the multi-symbol, day-synchronized
// coordinator with a shared cash ledger, admission control, and rejection
// accounting (§4.3).
package portfolio

import (
	"time"

	"github.com/aristath/dca-simulator/internal/engine"
)

// Rejection is a denied candidate order (§3.6, §7 — first-class data, not
// an error).
type Rejection struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Reason string    `json:"reason"`
}

// DeferredSell is the reserved (not implemented) deferred-selling queue
// entry (§4.3.3, §12 supplement 7).
type DeferredSell struct {
	Symbol    string    `json:"symbol"`
	QueuedAt  time.Time `json:"queuedAt"`
	AgeDays   int       `json:"ageDays"`
}

// State is the full mutable portfolio state (§3.6).
type State struct {
	TotalCapital    float64
	CashReserve     float64
	DeployedCapital float64

	// RealizedPnL is the running sum of every sell's and liquidation's
	// (proceeds − costBasis): the invariant's RHS must absorb it, since a
	// sell credits CashReserve by full proceeds but only relieves
	// DeployedCapital by cost basis (§4.3.1 step 4-5; §8 scenario 6).
	RealizedPnL float64

	MarginFraction float64 // §4.3.2; 0 disables margin

	SymbolStates map[string]*engine.SymbolRunState

	RejectedOrders []Rejection
	DeferredSells  []DeferredSell

	SkippedStocks []string // §7 MissingPriceData on portfolio: recorded, not fatal

	// enableDeferredSelling is never set true by any caller in this
	// codebase; §4.3.3 and §9 require the hook to exist without the
	// mechanism.
	enableDeferredSelling bool
}

// Snapshot is the serializable diagnostic payload attached to CapitalLeak
// errors (§12 supplement 5).
type Snapshot struct {
	Day             time.Time      `json:"day"`
	TotalCapital    float64        `json:"totalCapital"`
	CashReserve     float64        `json:"cashReserve"`
	DeployedCapital float64        `json:"deployedCapital"`
	RealizedPnL     float64        `json:"realizedPnL"`
	OpenLotCounts   map[string]int `json:"openLotCounts"`
	RejectedOrders  []Rejection    `json:"rejectedOrders"`
}

func (s *State) snapshot(day time.Time) Snapshot {
	counts := make(map[string]int, len(s.SymbolStates))
	for sym, st := range s.SymbolStates {
		counts[sym] = st.Lots.Len()
	}
	return Snapshot{
		Day:             day,
		TotalCapital:    s.TotalCapital,
		CashReserve:     s.CashReserve,
		DeployedCapital: s.DeployedCapital,
		RealizedPnL:     s.RealizedPnL,
		OpenLotCounts:   counts,
		RejectedOrders:  append([]Rejection(nil), s.RejectedOrders...),
	}
}

// Result is RunPortfolio's return value (§6).
type Result struct {
	CapitalTimeSeries []CapitalPoint                       `json:"capitalTimeSeries"`
	SymbolResults     map[string]engine.SingleRunResult    `json:"symbolResults"`
	RejectedOrders    []Rejection                          `json:"rejectedOrders"`
	SkippedStocks     []string                             `json:"skippedStocks"`
	Cancelled         bool                                 `json:"cancelled,omitempty"`
	DeadlineExceeded  bool                                 `json:"deadlineExceeded,omitempty"`
}

// CapitalPoint is one day's cash/deployed snapshot for the result's
// per-day capital time series.
type CapitalPoint struct {
	Day             time.Time `json:"day"`
	CashReserve     float64   `json:"cashReserve"`
	DeployedCapital float64   `json:"deployedCapital"`
	RealizedPnL     float64   `json:"realizedPnL"`
}
