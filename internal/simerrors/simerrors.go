// Package simerrors defines the error taxonomy shared by the engine,
// portfolio coordinator, and batch runner.
package simerrors

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents one invalid parameter or configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates one or more ValidationError, surfaced before a
// run is ever started (day 1 never executes if this is non-empty).
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, len(e))
	for i, err := range e {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// MissingPriceData reports that a PriceProvider returned no bars for a
// requested symbol and range.
type MissingPriceData struct {
	Symbol    string
	Start     time.Time
	End       time.Time
	Partial   bool // true if PartialRange rather than NotFound
}

func (e MissingPriceData) Error() string {
	if e.Partial {
		return fmt.Sprintf("partial price range for %s [%s, %s]", e.Symbol, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
	}
	return fmt.Sprintf("no price data for %s in [%s, %s]", e.Symbol, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// CapitalLeak is a fatal portfolio-invariant violation: deployed + cash no
// longer equals totalCapital plus realized P&L within epsilon. It is never
// silently corrected.
type CapitalLeak struct {
	Delta    float64 // deployed + cash - (totalCapital + realized P&L)
	Symbols  []string
	Day      time.Time
	Snapshot any // a serializable portfolio.Snapshot, opaque here to avoid an import cycle
}

func (e CapitalLeak) Error() string {
	return fmt.Sprintf("capital leak on %s: delta=%.4f symbols=%v", e.Day.Format("2006-01-02"), e.Delta, e.Symbols)
}

// InternalInvariant is a fatal defect in engine state: negative shares,
// non-monotonic dates, or a corrupt state machine. It always carries the
// offending snapshot for offline diagnosis.
type InternalInvariant struct {
	Reason   string
	Snapshot any
}

func (e InternalInvariant) Error() string {
	return fmt.Sprintf("internal invariant violated: %s", e.Reason)
}

// Cancelled indicates a run stopped early because its cancellation token
// fired. Callers receive a partial result with Cancelled=true rather than
// this error propagating past the run boundary.
type Cancelled struct {
	Day time.Time
}

func (e Cancelled) Error() string {
	return fmt.Sprintf("run cancelled as of %s", e.Day.Format("2006-01-02"))
}

// DeadlineExceeded indicates a run's deadline passed before completion.
type DeadlineExceeded struct {
	Day time.Time
}

func (e DeadlineExceeded) Error() string {
	return fmt.Sprintf("run deadline exceeded as of %s", e.Day.Format("2006-01-02"))
}
