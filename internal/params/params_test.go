package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-simulator/internal/simerrors"
)

func TestNewDefault_Valid(t *testing.T) {
	d := NewDefault()
	assert.NoError(t, d.Validate())
}

func TestMerge_PriorityOrder(t *testing.T) {
	hardcoded := NewDefault()

	globalDefault := Overrides{"lotSizeUsd": 2000.0}
	requestBody := Overrides{"lotSizeUsd": 3000.0, "maxLots": 5}
	tickerOverride := Overrides{"maxLots": 7}

	out := Merge(hardcoded, globalDefault, requestBody, tickerOverride)

	assert.Equal(t, 3000.0, out.LotSizeUsd, "requestBody should win over globalDefault")
	assert.Equal(t, 7, out.MaxLots, "tickerOverride should win over requestBody")
	assert.Equal(t, hardcoded.GridIntervalPercent, out.GridIntervalPercent, "unset fields fall through to hardcoded")
}

func TestMerge_NilLayersLeaveHardcodedUnchanged(t *testing.T) {
	hardcoded := NewDefault()
	out := Merge(hardcoded, nil, nil, nil)
	assert.Equal(t, hardcoded, out)
}

func TestValidate_RejectsNonPositiveLotSize(t *testing.T) {
	s := NewDefault()
	s.LotSizeUsd = 0

	err := s.Validate()
	require.Error(t, err)

	ve, ok := err.(simerrors.ValidationErrors)
	require.True(t, ok)
	assert.Contains(t, fieldNames(ve), "lotSizeUsd")
}

func TestValidate_RejectsOutOfRangeFractions(t *testing.T) {
	s := NewDefault()
	s.GridIntervalPercent = 1.5
	s.ProfitRequirement = -0.1

	err := s.Validate()
	require.Error(t, err)

	ve := err.(simerrors.ValidationErrors)
	names := fieldNames(ve)
	assert.Contains(t, names, "gridIntervalPercent")
	assert.Contains(t, names, "profitRequirement")
}

func TestValidate_RejectsUnknownEnums(t *testing.T) {
	s := NewDefault()
	s.TrailingStopOrderType = OrderType("bogus")
	s.StrategyMode = Direction("sideways")

	err := s.Validate()
	require.Error(t, err)

	names := fieldNames(err.(simerrors.ValidationErrors))
	assert.Contains(t, names, "trailingStopOrderType")
	assert.Contains(t, names, "strategyMode")
}

func TestValidate_DynamicGridRequiresPositiveMultiplier(t *testing.T) {
	s := NewDefault()
	s.EnableDynamicGrid = true
	s.DynamicGridMultiplier = 0

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, fieldNames(err.(simerrors.ValidationErrors)), "dynamicGridMultiplier")
}

func TestOverrides_ApplyToCoversEveryField(t *testing.T) {
	ov := Overrides{
		"lotSizeUsd":                             500.0,
		"maxLots":                                3,
		"maxLotsToSell":                          2,
		"gridIntervalPercent":                    0.2,
		"profitRequirement":                      0.1,
		"trailingBuyActivationPercent":           0.03,
		"trailingBuyReboundPercent":              0.04,
		"trailingSellActivationPercent":          0.06,
		"trailingSellPullbackPercent":            0.07,
		"trailingStopOrderType":                  OrderTypeMarket,
		"enableDynamicGrid":                      true,
		"normalizeToReference":                   true,
		"dynamicGridMultiplier":                  2.5,
		"enableConsecutiveIncrementalBuyGrid":    true,
		"gridConsecutiveIncrement":               0.01,
		"enableConsecutiveIncrementalSellProfit": true,
		"enableAdaptiveTrailingBuy":              true,
		"enableAdaptiveTrailingSell":             true,
		"momentumBasedBuy":                       true,
		"momentumBasedSell":                      true,
		"strategyMode":                           DirectionShort,
		"useAdjustedClose":                       true,
		"trailingLookbackDays":                   30,
		"perTradeFeeUsd":                         1.5,
	}

	out := Merge(NewDefault(), nil, ov, nil)

	assert.Equal(t, 500.0, out.LotSizeUsd)
	assert.Equal(t, 3, out.MaxLots)
	assert.Equal(t, OrderTypeMarket, out.TrailingStopOrderType)
	assert.Equal(t, DirectionShort, out.StrategyMode)
	assert.True(t, out.EnableConsecutiveIncrementalSellProfit)
	assert.Equal(t, 30, out.TrailingLookbackDays)
	assert.Equal(t, 1.5, out.PerTradeFeeUsd)
}

func fieldNames(errs simerrors.ValidationErrors) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}
