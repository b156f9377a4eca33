package batch

import (
	"github.com/aristath/dca-simulator/internal/engine"
	"github.com/aristath/dca-simulator/internal/params"
)

// CombinationResult is one dispatched combination's outcome (§4.4).
type CombinationResult struct {
	Symbol  string          `json:"symbol"`
	Params  params.Set      `json:"params"`
	Summary engine.Summary  `json:"summary"`
	Cached  bool            `json:"cached,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Result is RunBatch's return value (§6): a list of combination results
// sorted by total return descending, plus per-symbol top-K summaries.
type Result struct {
	Combinations     []CombinationResult            `json:"combinations"`
	TopKBySymbol     map[string][]CombinationResult `json:"topKBySymbol"`
	Cancelled        bool                            `json:"cancelled,omitempty"`
	DeadlineExceeded bool                            `json:"deadlineExceeded,omitempty"`
}
