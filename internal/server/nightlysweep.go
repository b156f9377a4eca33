package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aristath/dca-simulator/internal/archive"
	"github.com/aristath/dca-simulator/internal/batch"
)

// nightlySweepJob re-runs a fixed parameter sweep on a cron schedule,
// implementing scheduler.Job (§11: robfig/cron). Its
// configuration is a batchRequest JSON file read fresh on every tick, so an
// operator can widen a symbol list or parameter range without restarting
// the server.
type nightlySweepJob struct {
	server  *Server
	cfgPath string
}

func newNightlySweepJob(s *Server, cfgPath string) *nightlySweepJob {
	return &nightlySweepJob{server: s, cfgPath: cfgPath}
}

func (j *nightlySweepJob) Name() string { return "nightly-batch-sweep" }

func (j *nightlySweepJob) Run() error {
	data, err := os.ReadFile(j.cfgPath)
	if err != nil {
		return fmt.Errorf("read sweep config %s: %w", j.cfgPath, err)
	}

	var req batchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse sweep config %s: %w", j.cfgPath, err)
	}

	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		return err
	}

	workers := req.Workers
	if workers == 0 {
		workers = j.server.cfg.DefaultWorkers
	}
	cfg := batch.Config{
		Symbols:         req.Symbols,
		BaseParams:      req.BaseParams,
		ParameterRanges: req.ParameterRanges,
		Start:           start,
		End:             end,
		Workers:         workers,
		TopK:            req.TopK,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	progress := func(completed, total int, symbol string, _ map[string]any) {
		j.server.log.Debug().Int("completed", completed).Int("total", total).Str("symbol", symbol).Msg("nightly sweep progress")
	}

	result, err := batch.RunBatch(context.Background(), j.server.log, cfg, j.server.provider, progress, j.server.cache)
	if err != nil {
		return err
	}

	if j.server.archiver != nil {
		key := archive.ResultKey("batch/nightly", "scheduled", time.Now())
		if err := j.server.archiver.PutResult(context.Background(), key, result); err != nil {
			j.server.log.Warn().Err(err).Msg("nightly sweep archive upload failed")
		}
	}
	return nil
}
