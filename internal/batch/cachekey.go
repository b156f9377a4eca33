package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/aristath/dca-simulator/internal/bars"
	"github.com/aristath/dca-simulator/internal/params"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheKey returns a stable content hash of (symbol, effective params,
// price-series fingerprint), used to memoize completed combinations (§12
// supplement 6). msgpack gives a deterministic encoding of the params
// struct without hand-rolled field enumeration; the price fingerprint
// covers only date/close/adjustedClose so an open/high/low revision doesn't
// invalidate cached decision-price-equivalent runs.
func CacheKey(symbol string, p params.Set, series bars.Series) (string, error) {
	fingerprint := priceFingerprint(series)

	payload := struct {
		Symbol      string
		Params      params.Set
		Fingerprint string
	}{Symbol: symbol, Params: p, Fingerprint: fingerprint}

	encoded, err := msgpack.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// priceFingerprint hashes the ordered (date, decisionPrice) pairs of a
// series, using both close and adjustedClose since UseAdjustedClose is a
// per-combination parameter.
func priceFingerprint(series bars.Series) string {
	dates := make([]string, len(series.Bars))
	for i, b := range series.Bars {
		dates[i] = b.Date.Format("2006-01-02") + ":" + b.Close.String() + ":" + b.AdjustedClose.String()
	}
	sort.Strings(dates) // series is already ordered; sort defends against a caller's unordered input
	h := sha256.New()
	for _, d := range dates {
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}
