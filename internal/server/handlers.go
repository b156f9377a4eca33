package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/dca-simulator/internal/archive"
	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/batch"
	"github.com/aristath/dca-simulator/internal/engine"
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/aristath/dca-simulator/internal/portfolio"
	"github.com/aristath/dca-simulator/internal/simerrors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start date %q: %w", startStr, err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end date %q: %w", endStr, err)
	}
	return start, end, nil
}

func statusFor(err error) int {
	switch err.(type) {
	case simerrors.ValidationErrors, simerrors.ValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// runRequest is the POST /api/run body.
type runRequest struct {
	Symbol string     `json:"symbol"`
	Start  string     `json:"start"`
	End    string     `json:"end"`
	Params params.Set `json:"params"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	series, err := s.provider.Bars(r.Context(), req.Symbol, start, end)
	if err != nil {
		if mpd, ok := err.(simerrors.MissingPriceData); !ok || !mpd.Partial {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	result, err := engine.RunSingle(r.Context(), s.log, req.Params, series)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.archiveAsync("run/"+req.Symbol, result)
	writeJSON(w, http.StatusOK, result)
}

// portfolioRequest is the POST /api/portfolio body.
type portfolioRequest struct {
	Symbols        []string                    `json:"symbols"`
	Start          string                      `json:"start"`
	End            string                      `json:"end"`
	TotalCapital   float64                     `json:"totalCapital"`
	MarginFraction float64                     `json:"marginFraction"`
	EpsilonUsd     float64                     `json:"epsilonUsd"`
	BaseParams     params.Set                  `json:"baseParams"`
	ParamsBySymbol map[string]params.Set       `json:"paramsBySymbol"`
	Membership     []portfolio.MembershipEvent `json:"membership"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pricesBySymbol := make(map[string]bars.Series, len(req.Symbols))
	for _, sym := range req.Symbols {
		series, err := s.provider.Bars(r.Context(), sym, start, end)
		if err != nil {
			if mpd, ok := err.(simerrors.MissingPriceData); !ok || !mpd.Partial {
				continue
			}
		}
		pricesBySymbol[sym] = series
	}

	epsilon := req.EpsilonUsd
	if epsilon == 0 {
		epsilon = s.cfg.CapitalEpsilonUsd
	}
	portCfg := portfolio.Config{
		Symbols:        req.Symbols,
		TotalCapital:   req.TotalCapital,
		MarginFraction: req.MarginFraction,
		EpsilonUsd:     epsilon,
		BaseParams:     req.BaseParams,
		ParamsBySymbol: req.ParamsBySymbol,
		Membership:     req.Membership,
	}

	result, err := portfolio.RunPortfolio(r.Context(), s.log, portCfg, pricesBySymbol)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.archiveAsync("portfolio/run", result)
	writeJSON(w, http.StatusOK, result)
}

// batchRequest is the POST /api/batch body.
type batchRequest struct {
	Symbols         []string      `json:"symbols"`
	Start           string        `json:"start"`
	End             string        `json:"end"`
	BaseParams      params.Set    `json:"baseParams"`
	ParameterRanges []batch.Range `json:"parameterRanges"`
	Workers         int           `json:"workers"`
	TopK            int           `json:"topK"`
}

// handleBatchStart validates and launches a sweep in the background,
// returning a batch ID the caller polls or streams progress for (§5:
// a sweep is not expected to complete within one HTTP request's lifetime).
func (s *Server) handleBatchStart(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	workers := req.Workers
	if workers == 0 {
		workers = s.cfg.DefaultWorkers
	}
	batchCfg := batch.Config{
		Symbols:         req.Symbols,
		BaseParams:      req.BaseParams,
		ParameterRanges: req.ParameterRanges,
		Start:           start,
		End:             end,
		Workers:         workers,
		TopK:            req.TopK,
	}
	if err := batchCfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	batchID := s.jobs.start(batchCfg, s.provider, s.cache, func(result batch.Result) {
		s.archiveAsync("batch/run", result)
	}, s.log)

	writeJSON(w, http.StatusAccepted, map[string]string{"batchId": batchID})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")
	status, ok := s.jobs.status(batchID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown batch id %q", batchID))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBatchCancel(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")
	if !s.jobs.cancelJob(batchID) {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown batch id %q", batchID))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"batchId": batchID, "status": "cancelling"})
}

func (s *Server) archiveAsync(keyPrefix string, payload any) {
	if s.archiver == nil {
		return
	}
	go func() {
		key := archive.ResultKey(keyPrefix, "server", time.Now())
		if err := s.archiver.PutResult(context.Background(), key, payload); err != nil {
			s.log.Warn().Err(err).Msg("archive upload failed")
		}
	}()
}
