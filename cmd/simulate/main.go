// Command simulate is the CLI surface for the core (§6): run a single
// symbol, a portfolio, or a parameter sweep from a JSON config file and
// print the result as JSON. Exit codes: 0 success, 1 validation error, 2
// execution error (including a capital leak), 3 cancellation/timeout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/dca-simulator/internal/archive"
	"github.com/aristath/dca-simulator/internal/batch"
	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/config"
	"github.com/aristath/dca-simulator/internal/engine"
	"github.com/aristath/dca-simulator/internal/logging"
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/aristath/dca-simulator/internal/portfolio"
	"github.com/aristath/dca-simulator/internal/priceprovider"
	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/rs/zerolog"
)

const (
	exitOK int = iota
	exitValidation
	exitExecution
	exitCancelled
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: simulate <run|portfolio|batch> --config <file>")
		os.Exit(exitValidation)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(exitValidation)
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Warn().Msg("received shutdown signal, cancelling in-flight run")
		cancel()
	}()
	defer cancel()

	var code int
	switch os.Args[1] {
	case "run":
		code = runSingle(ctx, log, cfg, os.Args[2:])
	case "portfolio":
		code = runPortfolio(ctx, log, cfg, os.Args[2:])
	case "batch":
		code = runBatch(ctx, log, cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		code = exitValidation
	}
	os.Exit(code)
}

func parseConfigFlag(fs *flag.FlagSet, args []string) (string, error) {
	path := fs.String("config", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *path == "" {
		return "", fmt.Errorf("--config is required")
	}
	return *path, nil
}

func readJSONConfig(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// runFileConfig is the on-disk shape for `simulate run --config`.
type runFileConfig struct {
	Symbol        string     `json:"symbol"`
	PriceCachePath string    `json:"priceCachePath"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	Params        params.Set `json:"params"`
}

func runSingle(ctx context.Context, log zerolog.Logger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	path, err := parseConfigFlag(fs, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	var fileCfg runFileConfig
	if err := readJSONConfig(path, &fileCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	provider, closeFn, err := openProvider(fileCfg.PriceCachePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	defer closeFn()

	start, end, err := parseDateRange(fileCfg.Start, fileCfg.End)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	series, err := provider.Bars(ctx, fileCfg.Symbol, start, end)
	if err != nil {
		if mpd, ok := err.(simerrors.MissingPriceData); !ok || !mpd.Partial {
			fmt.Fprintln(os.Stderr, err)
			return exitValidation
		}
	}

	result, err := engine.RunSingle(ctx, log, fileCfg.Params, series)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	if result.Cancelled || result.DeadlineExceeded {
		printJSON(result)
		return exitCancelled
	}

	printJSON(result)
	maybeArchive(ctx, cfg, "run/"+fileCfg.Symbol, result)
	return exitOK
}

// portfolioFileConfig is the on-disk shape for `simulate portfolio --config`.
type portfolioFileConfig struct {
	Symbols        []string                  `json:"symbols"`
	PriceCachePath string                    `json:"priceCachePath"`
	Start          string                    `json:"start"`
	End            string                    `json:"end"`
	TotalCapital   float64                   `json:"totalCapital"`
	MarginFraction float64                   `json:"marginFraction"`
	EpsilonUsd     float64                   `json:"epsilonUsd"`
	BaseParams     params.Set                `json:"baseParams"`
	ParamsBySymbol map[string]params.Set     `json:"paramsBySymbol"`
	Membership     []portfolio.MembershipEvent `json:"membership"`
}

func runPortfolio(ctx context.Context, log zerolog.Logger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("portfolio", flag.ContinueOnError)
	path, err := parseConfigFlag(fs, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	var fileCfg portfolioFileConfig
	if err := readJSONConfig(path, &fileCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	provider, closeFn, err := openProvider(fileCfg.PriceCachePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	defer closeFn()

	start, end, err := parseDateRange(fileCfg.Start, fileCfg.End)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	pricesBySymbol := make(map[string]bars.Series, len(fileCfg.Symbols))
	for _, sym := range fileCfg.Symbols {
		series, err := provider.Bars(ctx, sym, start, end)
		if err != nil {
			if mpd, ok := err.(simerrors.MissingPriceData); !ok || !mpd.Partial {
				continue
			}
		}
		pricesBySymbol[sym] = series
	}

	epsilon := fileCfg.EpsilonUsd
	if epsilon == 0 {
		epsilon = cfg.CapitalEpsilonUsd
	}
	portCfg := portfolio.Config{
		Symbols:        fileCfg.Symbols,
		TotalCapital:   fileCfg.TotalCapital,
		MarginFraction: fileCfg.MarginFraction,
		EpsilonUsd:     epsilon,
		BaseParams:     fileCfg.BaseParams,
		ParamsBySymbol: fileCfg.ParamsBySymbol,
		Membership:     fileCfg.Membership,
	}

	result, err := portfolio.RunPortfolio(ctx, log, portCfg, pricesBySymbol)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	if result.Cancelled || result.DeadlineExceeded {
		printJSON(result)
		return exitCancelled
	}

	printJSON(result)
	maybeArchive(ctx, cfg, "portfolio/run", result)
	return exitOK
}

// batchFileConfig is the on-disk shape for `simulate batch --config`.
type batchFileConfig struct {
	Symbols         []string      `json:"symbols"`
	PriceCachePath  string        `json:"priceCachePath"`
	Start           string        `json:"start"`
	End             string        `json:"end"`
	BaseParams      params.Set    `json:"baseParams"`
	ParameterRanges []batch.Range `json:"parameterRanges"`
	Workers         int           `json:"workers"`
	CachePath       string        `json:"cachePath"`
	TopK            int           `json:"topK"`
}

func runBatch(ctx context.Context, log zerolog.Logger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	path, err := parseConfigFlag(fs, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	var fileCfg batchFileConfig
	if err := readJSONConfig(path, &fileCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	provider, closeFn, err := openProvider(fileCfg.PriceCachePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}
	defer closeFn()

	start, end, err := parseDateRange(fileCfg.Start, fileCfg.End)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitValidation
	}

	var cache *batch.ResultCache
	if fileCfg.CachePath != "" {
		cache, err = batch.OpenResultCache(fileCfg.CachePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitValidation
		}
		defer cache.Close()
	}

	workers := fileCfg.Workers
	if workers == 0 {
		workers = cfg.DefaultWorkers
	}
	batchCfg := batch.Config{
		Symbols:         fileCfg.Symbols,
		BaseParams:      fileCfg.BaseParams,
		ParameterRanges: fileCfg.ParameterRanges,
		Start:           start,
		End:             end,
		Workers:         workers,
		TopK:            fileCfg.TopK,
	}

	progress := func(completed, total int, symbol string, p map[string]any) {
		log.Info().Int("completed", completed).Int("total", total).Str("symbol", symbol).Msg("batch progress")
	}

	result, err := batch.RunBatch(ctx, log, batchCfg, provider, progress, cache)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	if result.Cancelled || result.DeadlineExceeded {
		printJSON(result)
		return exitCancelled
	}

	printJSON(result)
	maybeArchive(ctx, cfg, "batch/run", result)
	return exitOK
}

func openProvider(path string) (priceprovider.Provider, func(), error) {
	if path == "" {
		return nil, nil, fmt.Errorf("priceCachePath is required")
	}
	p, err := priceprovider.NewSQLiteProvider(path)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { p.Close() }, nil
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

// exitCodeFor maps a core error to the CLI's exit-code contract: validation
// failures (including a rejected --config) are 1, everything else the core
// can return is a 2, since capital leaks and internal invariants are both
// execution-time failures rather than input errors.
func exitCodeFor(err error) int {
	switch err.(type) {
	case simerrors.ValidationErrors, simerrors.ValidationError:
		return exitValidation
	default:
		return exitExecution
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func maybeArchive(ctx context.Context, cfg *config.Config, keyPrefix string, payload any) {
	if !cfg.ArchiveEnabled() {
		return
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel})
	a, err := archive.New(ctx, cfg.S3Region, cfg.S3Bucket, log)
	if err != nil {
		log.Warn().Err(err).Msg("archive init failed, skipping")
		return
	}
	key := archive.ResultKey(keyPrefix, "cli", time.Now())
	if err := a.PutResult(ctx, key, payload); err != nil {
		log.Warn().Err(err).Msg("archive upload failed")
	}
}
