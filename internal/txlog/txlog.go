// Package txlog implements the append-only transaction record and log used
// by the engine and portfolio coordinator. Consumers rely on stable
// chronological ordering, so Log never reorders or mutates past entries.
package txlog

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Kind is the transaction sum type (§3.8). Consumers pattern-match on Kind
// rather than inspecting a bag of optional fields.
type Kind string

const (
	KindBuy           Kind = "BUY"
	KindSell          Kind = "SELL"
	KindTrailingBuy   Kind = "TRAILING_BUY"
	KindTrailingSell  Kind = "TRAILING_SELL"
	KindRejected      Kind = "REJECTED"
	KindLiquidation   Kind = "LIQUIDATION"
)

// Transaction is one append-only record.
type Transaction struct {
	Date         time.Time       `json:"date"`
	Symbol       string          `json:"symbol"`
	Kind         Kind            `json:"kind"`
	Price        decimal.Decimal `json:"price"`
	Shares       decimal.Decimal `json:"shares"`
	Value        decimal.Decimal `json:"value"` // price * shares
	LotsAffected int             `json:"lotsAffected,omitempty"`
	RealizedPnL  *decimal.Decimal `json:"realizedPnL,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// Log is the append-only, per-symbol transaction trace (§2's "colored,
// human-readable trace plus structured records" — the structured half; see
// Console for the human-readable half).
type Log struct {
	entries []Transaction
}

// Append adds a transaction. Callers are responsible for chronological
// ordering (P2); a non-decreasing check belongs to the engine, not here,
// since the engine alone knows the current trading day.
func (l *Log) Append(tx Transaction) {
	l.entries = append(l.entries, tx)
}

// Entries returns the transactions in append order.
func (l *Log) Entries() []Transaction {
	out := make([]Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of recorded transactions.
func (l *Log) Len() int { return len(l.entries) }

// Console mirrors an append to a zerolog sink with colored, human-readable
// fields, matching the teacher's component logging idiom: structured
// fields on a per-component logger, never fmt.Printf.
func Console(log zerolog.Logger, tx Transaction) {
	ev := log.Info()
	switch tx.Kind {
	case KindRejected:
		ev = log.Warn()
	case KindLiquidation:
		ev = log.Warn()
	}

	ev = ev.
		Str("symbol", tx.Symbol).
		Str("kind", string(tx.Kind)).
		Str("date", tx.Date.Format("2006-01-02")).
		Str("price", tx.Price.String()).
		Str("shares", tx.Shares.String()).
		Str("value", tx.Value.String())

	if tx.RealizedPnL != nil {
		ev = ev.Str("realizedPnL", tx.RealizedPnL.String())
	}
	if tx.Reason != "" {
		ev = ev.Str("reason", tx.Reason)
	}
	ev.Msg("transaction")
}
