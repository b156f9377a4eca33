package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/batch"
	"github.com/aristath/dca-simulator/internal/config"
	"github.com/aristath/dca-simulator/internal/priceprovider"
	"github.com/shopspring/decimal"
)

func testSeries(symbol string, closes []float64) bars.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]bars.Bar, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = bars.Bar{Date: start.AddDate(0, 0, i), Open: price, High: price, Low: price, Close: price, AdjustedClose: price}
	}
	return bars.Series{Symbol: symbol, Bars: out}
}

func newTestServer(t *testing.T) *Server {
	cfg := &config.Config{Port: 0, DefaultWorkers: 2, CapitalEpsilonUsd: 0.01}
	provider := priceprovider.Func(func(ctx context.Context, symbol string, start, end time.Time) (bars.Series, error) {
		return testSeries(symbol, []float64{100, 101, 99, 98, 97}), nil
	})
	return New(Config{Log: zerolog.Nop(), Config: cfg, Provider: provider})
}

func TestHandleHealth_ReportsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleRun_RejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRun_RejectsInvalidDateRange(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"symbol": "AAA", "start": "not-a-date", "end": "2024-01-05"})
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRun_RejectsInvalidParams(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"symbol": "AAA",
		"start":  "2024-01-01",
		"end":    "2024-01-05",
		"params": map[string]any{"maxLots": 0},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "an invalid params.Set must surface as a 400, not a 422")
}

func TestHandleBatchStart_ThenStatusReportsProgress(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"symbols": []string{"AAA"},
		"start":   "2024-01-01",
		"end":     "2024-01-05",
		"baseParams": map[string]any{
			"lotSizeUsd":                    1000,
			"maxLots":                       10,
			"maxLotsToSell":                 1,
			"gridIntervalPercent":           0.1,
			"profitRequirement":             0.05,
			"trailingBuyActivationPercent":  0.05,
			"trailingBuyReboundPercent":     0.05,
			"trailingSellActivationPercent": 0.05,
			"trailingSellPullbackPercent":   0.05,
			"trailingStopOrderType":         "limit",
			"dynamicGridMultiplier":         1.0,
			"strategyMode":                  "long",
		},
		"parameterRanges": []batch.Range{
			{Key: "gridIntervalPercent", Values: []any{0.05, 0.1}},
		},
		"workers": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	batchID := started["batchId"]
	require.NotEmpty(t, batchID)

	require.Eventually(t, func() bool {
		statusReq := httptest.NewRequest(http.MethodGet, "/api/batch/"+batchID, nil)
		statusRec := httptest.NewRecorder()
		s.router.ServeHTTP(statusRec, statusReq)
		if statusRec.Code != http.StatusOK {
			return false
		}
		var status batchJobStatus
		if err := json.Unmarshal(statusRec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Done
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleBatchStatus_RespondsNotFoundForUnknownID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/batch/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBatchCancel_RespondsNotFoundForUnknownID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/batch/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
