// Package params defines the immutable per-run parameter set consumed by
// the trailing-stop machines and the DCA engine.
package params

import (
	"fmt"

	"github.com/aristath/dca-simulator/internal/simerrors"
)

// OrderType controls trailing-stop cancellation semantics.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Direction selects long or short strategy semantics.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Set is the full recognized parameter table (spec data model §3.7). It is
// constructed once per run via Merge and is immutable thereafter.
type Set struct {
	LotSizeUsd    float64 `json:"lotSizeUsd"`
	MaxLots       int     `json:"maxLots"`
	MaxLotsToSell int     `json:"maxLotsToSell"`

	GridIntervalPercent float64 `json:"gridIntervalPercent"`
	ProfitRequirement   float64 `json:"profitRequirement"`

	TrailingBuyActivationPercent float64 `json:"trailingBuyActivationPercent"`
	TrailingBuyReboundPercent    float64 `json:"trailingBuyReboundPercent"`

	TrailingSellActivationPercent float64 `json:"trailingSellActivationPercent"`
	TrailingSellPullbackPercent   float64 `json:"trailingSellPullbackPercent"`

	TrailingStopOrderType OrderType `json:"trailingStopOrderType"`

	EnableDynamicGrid     bool    `json:"enableDynamicGrid"`
	NormalizeToReference  bool    `json:"normalizeToReference"`
	DynamicGridMultiplier float64 `json:"dynamicGridMultiplier"`

	EnableConsecutiveIncrementalBuyGrid bool    `json:"enableConsecutiveIncrementalBuyGrid"`
	GridConsecutiveIncrement            float64 `json:"gridConsecutiveIncrement"`

	EnableConsecutiveIncrementalSellProfit bool `json:"enableConsecutiveIncrementalSellProfit"`

	EnableAdaptiveTrailingBuy  bool `json:"enableAdaptiveTrailingBuy"`
	EnableAdaptiveTrailingSell bool `json:"enableAdaptiveTrailingSell"`

	MomentumBasedBuy  bool `json:"momentumBasedBuy"`
	MomentumBasedSell bool `json:"momentumBasedSell"`

	StrategyMode Direction `json:"strategyMode"`

	UseAdjustedClose bool `json:"useAdjustedClose"`

	// TrailingLookbackDays is validated (>= 0) and merged like any other
	// field, but the engine does not read it: recentPeak/recentTrough are
	// running extremes over every day since the run started, with no
	// window and no reset on activity.
	TrailingLookbackDays int `json:"trailingLookbackDays"`

	// PerTradeFeeUsd is the one commission-modeling knob the Non-goals
	// leave in scope ("tax/commission modeling beyond a configurable
	// per-trade fee if supplied").
	PerTradeFeeUsd float64 `json:"perTradeFeeUsd"`
}

// NewDefault returns the hardcoded base of the merge chain
// (tickerOverride > requestBody > globalDefault > hardcoded).
func NewDefault() Set {
	return Set{
		LotSizeUsd:                    1000,
		MaxLots:                       10,
		MaxLotsToSell:                 1,
		GridIntervalPercent:           0.10,
		ProfitRequirement:             0.05,
		TrailingBuyActivationPercent:  0.05,
		TrailingBuyReboundPercent:     0.05,
		TrailingSellActivationPercent: 0.05,
		TrailingSellPullbackPercent:   0.05,
		TrailingStopOrderType:         OrderTypeLimit,
		DynamicGridMultiplier:         1.0,
		StrategyMode:                  DirectionLong,
	}
}

// Merge layers tickerOverride over requestBody over globalDefault over
// hardcoded, per §9's documented priority, and returns the effective,
// immutable parameter set for one run. Each layer is applied field-by-field
// using its Overrides map so an unset field falls through to the layer below.
func Merge(hardcoded Set, globalDefault, requestBody, tickerOverride Overrides) Set {
	out := hardcoded
	globalDefault.applyTo(&out)
	requestBody.applyTo(&out)
	tickerOverride.applyTo(&out)
	return out
}

// Overrides is a sparse, partial parameter set: only fields present in the
// map participate in a Merge layer. Using a map (rather than pointer
// fields on Set) keeps the override layers composable without reflection.
type Overrides map[string]any

func (o Overrides) applyTo(s *Set) {
	for k, v := range o {
		switch k {
		case "lotSizeUsd":
			s.LotSizeUsd = v.(float64)
		case "maxLots":
			s.MaxLots = v.(int)
		case "maxLotsToSell":
			s.MaxLotsToSell = v.(int)
		case "gridIntervalPercent":
			s.GridIntervalPercent = v.(float64)
		case "profitRequirement":
			s.ProfitRequirement = v.(float64)
		case "trailingBuyActivationPercent":
			s.TrailingBuyActivationPercent = v.(float64)
		case "trailingBuyReboundPercent":
			s.TrailingBuyReboundPercent = v.(float64)
		case "trailingSellActivationPercent":
			s.TrailingSellActivationPercent = v.(float64)
		case "trailingSellPullbackPercent":
			s.TrailingSellPullbackPercent = v.(float64)
		case "trailingStopOrderType":
			s.TrailingStopOrderType = v.(OrderType)
		case "enableDynamicGrid":
			s.EnableDynamicGrid = v.(bool)
		case "normalizeToReference":
			s.NormalizeToReference = v.(bool)
		case "dynamicGridMultiplier":
			s.DynamicGridMultiplier = v.(float64)
		case "enableConsecutiveIncrementalBuyGrid":
			s.EnableConsecutiveIncrementalBuyGrid = v.(bool)
		case "gridConsecutiveIncrement":
			s.GridConsecutiveIncrement = v.(float64)
		case "enableConsecutiveIncrementalSellProfit":
			s.EnableConsecutiveIncrementalSellProfit = v.(bool)
		case "enableAdaptiveTrailingBuy":
			s.EnableAdaptiveTrailingBuy = v.(bool)
		case "enableAdaptiveTrailingSell":
			s.EnableAdaptiveTrailingSell = v.(bool)
		case "momentumBasedBuy":
			s.MomentumBasedBuy = v.(bool)
		case "momentumBasedSell":
			s.MomentumBasedSell = v.(bool)
		case "strategyMode":
			s.StrategyMode = v.(Direction)
		case "useAdjustedClose":
			s.UseAdjustedClose = v.(bool)
		case "trailingLookbackDays":
			s.TrailingLookbackDays = v.(int)
		case "perTradeFeeUsd":
			s.PerTradeFeeUsd = v.(float64)
		}
	}
}

// Validate checks the parameter set's range and enum invariants before any
// bar is processed (ValidationError, surfaced before day 1 per §7).
func (s Set) Validate() error {
	var errs simerrors.ValidationErrors

	if s.LotSizeUsd <= 0 {
		errs = append(errs, simerrors.ValidationError{Field: "lotSizeUsd", Message: "must be greater than 0"})
	}
	if s.MaxLots <= 0 {
		errs = append(errs, simerrors.ValidationError{Field: "maxLots", Message: "must be greater than 0"})
	}
	if s.MaxLotsToSell <= 0 {
		errs = append(errs, simerrors.ValidationError{Field: "maxLotsToSell", Message: "must be greater than 0"})
	}
	errs = append(errs, fractionErrors(
		field{"gridIntervalPercent", s.GridIntervalPercent},
		field{"profitRequirement", s.ProfitRequirement},
		field{"trailingBuyActivationPercent", s.TrailingBuyActivationPercent},
		field{"trailingBuyReboundPercent", s.TrailingBuyReboundPercent},
		field{"trailingSellActivationPercent", s.TrailingSellActivationPercent},
		field{"trailingSellPullbackPercent", s.TrailingSellPullbackPercent},
	)...)

	switch s.TrailingStopOrderType {
	case OrderTypeLimit, OrderTypeMarket:
	default:
		errs = append(errs, simerrors.ValidationError{Field: "trailingStopOrderType", Message: fmt.Sprintf("unknown order type %q", s.TrailingStopOrderType)})
	}

	switch s.StrategyMode {
	case DirectionLong, DirectionShort:
	default:
		errs = append(errs, simerrors.ValidationError{Field: "strategyMode", Message: fmt.Sprintf("unknown strategy mode %q", s.StrategyMode)})
	}

	if s.EnableDynamicGrid && s.DynamicGridMultiplier <= 0 {
		errs = append(errs, simerrors.ValidationError{Field: "dynamicGridMultiplier", Message: "must be greater than 0 when enableDynamicGrid is set"})
	}
	if s.PerTradeFeeUsd < 0 {
		errs = append(errs, simerrors.ValidationError{Field: "perTradeFeeUsd", Message: "must be >= 0"})
	}
	if s.TrailingLookbackDays < 0 {
		errs = append(errs, simerrors.ValidationError{Field: "trailingLookbackDays", Message: "must be >= 0"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type field struct {
	name  string
	value float64
}

func fractionErrors(fields ...field) simerrors.ValidationErrors {
	var errs simerrors.ValidationErrors
	for _, f := range fields {
		if f.value < 0 || f.value > 1 {
			errs = append(errs, simerrors.ValidationError{Field: f.name, Message: "must be a decimal fraction between 0 and 1"})
		}
	}
	return errs
}
