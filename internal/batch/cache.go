package batch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/dca-simulator/internal/database"
	"github.com/aristath/dca-simulator/internal/engine"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

func decimalFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// ResultCache is a content-addressed, msgpack-encoded store of completed
// batch-combination summaries, backed by the batch_results table
// (internal/database/schemas/batchcache_schema.sql). A resumed batch run
// skips any combination already present under its CacheKey (§12
// supplement 6), complementing RunBatch's cancellation support.
type ResultCache struct {
	db *database.DB
}

// OpenResultCache opens (and migrates) the batch-result cache at path.
func OpenResultCache(path string) (*ResultCache, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileCache,
		Name:    "batchcache",
	})
	if err != nil {
		return nil, fmt.Errorf("open batch cache: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate batch cache: %w", err)
	}
	return &ResultCache{db: db}, nil
}

// Close releases the underlying connection.
func (c *ResultCache) Close() error { return c.db.Close() }

// cachedSummary is the msgpack wire shape for engine.Summary: plain
// float64/int fields only, so encoding never depends on decimal.Decimal's
// unexported representation.
type cachedSummary struct {
	TotalReturn        float64
	TimeWeightedReturn float64
	RealizedPnL        float64
	UnrealizedPnL      float64
	MaxDrawdown        float64
	BuyCount           int
	SellCount          int
	GateCounts         map[string]int
	BaselineReturn     float64
	BaselineCAGR       float64
	BaselineMaxDD      float64
}

func toCached(s engine.Summary) cachedSummary {
	gates := make(map[string]int, len(s.GateCounts))
	for k, v := range s.GateCounts {
		gates[string(k)] = v
	}
	realized, _ := s.RealizedPnL.Float64()
	unrealized, _ := s.UnrealizedPnL.Float64()
	return cachedSummary{
		TotalReturn:        s.TotalReturn,
		TimeWeightedReturn: s.TimeWeightedReturn,
		RealizedPnL:        realized,
		UnrealizedPnL:      unrealized,
		MaxDrawdown:        s.MaxDrawdown,
		BuyCount:           s.BuyCount,
		SellCount:          s.SellCount,
		GateCounts:         gates,
		BaselineReturn:     s.Baseline.Return,
		BaselineCAGR:       s.Baseline.CAGR,
		BaselineMaxDD:      s.Baseline.MaxDrawdown,
	}
}

func (c cachedSummary) toSummary() engine.Summary {
	gates := make(map[engine.GateReason]int, len(c.GateCounts))
	for k, v := range c.GateCounts {
		gates[engine.GateReason(k)] = v
	}
	return engine.Summary{
		TotalReturn:        c.TotalReturn,
		TimeWeightedReturn: c.TimeWeightedReturn,
		RealizedPnL:        decimalFromFloat(c.RealizedPnL),
		UnrealizedPnL:      decimalFromFloat(c.UnrealizedPnL),
		MaxDrawdown:        c.MaxDrawdown,
		BuyCount:           c.BuyCount,
		SellCount:          c.SellCount,
		GateCounts:         gates,
		Baseline: engine.Baseline{
			Return:      c.BaselineReturn,
			CAGR:        c.BaselineCAGR,
			MaxDrawdown: c.BaselineMaxDD,
		},
	}
}

// Get returns a cached summary for key, if present.
func (c *ResultCache) Get(ctx context.Context, key string) (engine.Summary, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM batch_results WHERE cache_key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return engine.Summary{}, false, nil
	}
	if err != nil {
		return engine.Summary{}, false, fmt.Errorf("query batch cache: %w", err)
	}

	var cached cachedSummary
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		return engine.Summary{}, false, fmt.Errorf("decode cached summary: %w", err)
	}
	return cached.toSummary(), true, nil
}

// Put stores a combination's summary under key, tagged with batchID for
// bulk cleanup/inspection.
func (c *ResultCache) Put(ctx context.Context, key, batchID string, summary engine.Summary) error {
	payload, err := msgpack.Marshal(toCached(summary))
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO batch_results (cache_key, batch_id, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			batch_id=excluded.batch_id, payload=excluded.payload, created_at=excluded.created_at`,
		key, batchID, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert batch cache entry: %w", err)
	}
	return nil
}
