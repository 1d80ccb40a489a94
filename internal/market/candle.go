package market

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	marketbinance "strategy-core/pkg/market/binance"
)

var (
	// ErrDataUnavailable means the source could not produce data this cycle.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrRateLimited means the local or remote rate limit rejected the call.
	ErrRateLimited = errors.New("market data rate limited")
)

// Candle is one OHLCV bar. OpenTime is Unix milliseconds; series are ordered
// by strictly increasing OpenTime.
type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns OpenTime as a UTC time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// Closes extracts closing prices.
func Closes(bars []Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// FromKlines converts Binance klines, dropping any bar whose OpenTime does
// not strictly increase.
func FromKlines(klines []marketbinance.Kline) []Candle {
	out := make([]Candle, 0, len(klines))
	var last int64
	for _, k := range klines {
		if len(out) > 0 && k.OpenTime <= last {
			continue
		}
		out = append(out, Candle{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
		last = k.OpenTime
	}
	return out
}

// ParseTimeframe converts exchange intervals such as "1m", "5m", "4h", "1d"
// and "1w" into a duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	tf = strings.TrimSpace(tf)
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	unit := map[byte]time.Duration{
		's': time.Second,
		'm': time.Minute,
		'h': time.Hour,
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}[tf[len(tf)-1]]
	if unit == 0 {
		return 0, fmt.Errorf("invalid timeframe unit %q", tf)
	}
	return time.Duration(n) * unit, nil
}
