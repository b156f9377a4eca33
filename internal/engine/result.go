package engine

import (
	"time"

	"github.com/aristath/dca-simulator/internal/ledger"
	"github.com/aristath/dca-simulator/internal/txlog"
	"github.com/shopspring/decimal"
)

// Baseline is the parallel buy-and-hold comparison (§4.2.3): invest
// totalCapital at the first close, value at endDate.
type Baseline struct {
	Return       float64 `json:"return"`
	CAGR         float64 `json:"cagr"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
}

// Summary is the per-symbol run summary (§4.2.3).
type Summary struct {
	TotalReturn        float64            `json:"totalReturn"`
	TimeWeightedReturn float64            `json:"timeWeightedReturn"`
	RealizedPnL        decimal.Decimal    `json:"realizedPnL"`
	UnrealizedPnL      decimal.Decimal    `json:"unrealizedPnL"`
	MaxDrawdown        float64            `json:"maxDrawdown"`
	BuyCount           int                `json:"buyCount"`
	SellCount          int                `json:"sellCount"`
	GateCounts         map[GateReason]int `json:"gateCounts"`
	Baseline           Baseline           `json:"baseline"`
}

// SingleRunResult is RunSingle's return value (§6).
type SingleRunResult struct {
	Symbol       string            `json:"symbol"`
	Transactions []txlog.Transaction `json:"transactions"`
	OpenLots     []ledger.Lot      `json:"openLots"`
	EndDate      time.Time         `json:"endDate"`
	Summary      Summary           `json:"summary"`
	Cancelled    bool              `json:"cancelled,omitempty"`
	DeadlineExceeded bool          `json:"deadlineExceeded,omitempty"`
}
