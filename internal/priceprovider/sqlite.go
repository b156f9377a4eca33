package priceprovider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/database"
	"github.com/aristath/dca-simulator/internal/simerrors"
	"github.com/shopspring/decimal"
)

// SQLiteProvider is a reference Provider backed by the daily_bars cache
// table (internal/database/schemas/pricecache_schema.sql). It never fetches
// from a network source itself; callers populate the cache out of band
// (e.g. a loader cmd, or Put below) and Bars only ever reads.
type SQLiteProvider struct {
	db *database.DB
}

// NewSQLiteProvider opens (and migrates) the price cache database at path.
func NewSQLiteProvider(path string) (*SQLiteProvider, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    "pricecache",
	})
	if err != nil {
		return nil, fmt.Errorf("open price cache: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate price cache: %w", err)
	}
	return &SQLiteProvider{db: db}, nil
}

// Close releases the underlying connection.
func (p *SQLiteProvider) Close() error { return p.db.Close() }

// Bars implements Provider.
func (p *SQLiteProvider) Bars(ctx context.Context, symbol string, start, end time.Time) (bars.Series, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adjusted_close, volume
		FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return bars.Series{}, fmt.Errorf("query daily_bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []bars.Bar
	for rows.Next() {
		var dateStr string
		var open, high, low, close, adjClose float64
		var volume int64
		if err := rows.Scan(&dateStr, &open, &high, &low, &close, &adjClose, &volume); err != nil {
			return bars.Series{}, fmt.Errorf("scan daily_bars row for %s: %w", symbol, err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return bars.Series{}, fmt.Errorf("parse date %q for %s: %w", dateStr, symbol, err)
		}
		out = append(out, bars.Bar{
			Date:          date,
			Open:          decimal.NewFromFloat(open),
			High:          decimal.NewFromFloat(high),
			Low:           decimal.NewFromFloat(low),
			Close:         decimal.NewFromFloat(close),
			AdjustedClose: decimal.NewFromFloat(adjClose),
			Volume:        volume,
		})
	}
	if err := rows.Err(); err != nil {
		return bars.Series{}, fmt.Errorf("iterate daily_bars for %s: %w", symbol, err)
	}

	if len(out) == 0 {
		return bars.Series{}, simerrors.MissingPriceData{Symbol: symbol, Start: start, End: end}
	}

	first, last := out[0].Date, out[len(out)-1].Date
	series := bars.Series{Symbol: symbol, Bars: out}
	if first.After(start) || last.Before(end) {
		return series, simerrors.MissingPriceData{Symbol: symbol, Start: start, End: end, Partial: true}
	}
	return series, nil
}

// Put upserts bars into the cache; the core never calls this, only loaders.
func (p *SQLiteProvider) Put(ctx context.Context, symbol string, rows []bars.Bar) error {
	return database.WithTransaction(p.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_bars (symbol, date, open, high, low, close, adjusted_close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open=excluded.open, high=excluded.high, low=excluded.low,
				close=excluded.close, adjusted_close=excluded.adjusted_close,
				volume=excluded.volume`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, b := range rows {
			open, _ := b.Open.Float64()
			high, _ := b.High.Float64()
			low, _ := b.Low.Float64()
			close, _ := b.Close.Float64()
			adjClose, _ := b.AdjustedClose.Float64()
			if _, err := stmt.ExecContext(ctx, symbol, b.Date.Format("2006-01-02"), open, high, low, close, adjClose, b.Volume); err != nil {
				return fmt.Errorf("upsert bar %s %s: %w", symbol, b.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}
