package portfolio

import (
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/aristath/dca-simulator/internal/simerrors"
)

// Config configures one RunPortfolio invocation.
type Config struct {
	Symbols      []string
	TotalCapital float64

	// MarginFraction > 0 raises the admission cap per §4.3.2.
	MarginFraction float64

	// EpsilonUsd bounds the capital invariant check (§3.6).
	EpsilonUsd float64

	BaseParams     params.Set
	ParamsBySymbol map[string]params.Set // optional per-symbol set, used in place of BaseParams for that symbol

	Membership []MembershipEvent

	// Rule orders admission candidates; AscendingSymbolRule{} if nil.
	Rule AdmissionRule

	// EnableDeferredSelling would let a blocked sell queue for retry on a
	// later day instead of being dropped (§4.3.3). No caller in this
	// codebase sets it; Validate rejects true until the mechanism behind
	// the queue in deferred.go is built out.
	EnableDeferredSelling bool
}

func (c Config) paramsFor(symbol string) params.Set {
	if override, ok := c.ParamsBySymbol[symbol]; ok {
		return override
	}
	return c.BaseParams
}

func (c Config) admissionCap() float64 {
	return c.TotalCapital * (1 + c.MarginFraction)
}

// Validate checks the portfolio-level configuration before day 1.
func (c Config) Validate() error {
	var errs simerrors.ValidationErrors
	if c.TotalCapital <= 0 {
		errs = append(errs, simerrors.ValidationError{Field: "totalCapital", Message: "must be greater than 0"})
	}
	if c.MarginFraction < 0 {
		errs = append(errs, simerrors.ValidationError{Field: "marginFraction", Message: "must be >= 0"})
	}
	if c.EpsilonUsd < 0 {
		errs = append(errs, simerrors.ValidationError{Field: "epsilonUsd", Message: "must be >= 0"})
	}
	if err := c.BaseParams.Validate(); err != nil {
		if ve, ok := err.(simerrors.ValidationErrors); ok {
			errs = append(errs, ve...)
		}
	}
	if c.EnableDeferredSelling {
		errs = append(errs, simerrors.ValidationError{Field: "enableDeferredSelling", Message: "deferred-selling queue is reserved, not implemented"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
