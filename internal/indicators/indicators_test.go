package indicators

import (
	"math"
	"testing"

	"strategy-core/internal/market"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"exact window", []float64{1, 2, 3}, 3, 2},
		{"uses tail", []float64{100, 1, 2, 3}, 3, 2},
		{"too short", []float64{1, 2}, 3, 0},
		{"zero period", []float64{1, 2}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SMA(tt.values, tt.period); got != tt.want {
				t.Fatalf("SMA=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestHighestLowest(t *testing.T) {
	vals := []float64{3, -1, 7, 2}
	if Highest(vals) != 7 || Lowest(vals) != -1 {
		t.Fatalf("Highest/Lowest mismatch")
	}
	if Highest(nil) != 0 || Lowest(nil) != 0 {
		t.Fatalf("empty input should yield 0")
	}
}

func flatBars(n int, rangeSize float64) []market.Candle {
	bars := make([]market.Candle, n)
	for i := range bars {
		bars[i] = market.Candle{OpenTime: int64(i), Open: 100, High: 100 + rangeSize/2, Low: 100 - rangeSize/2, Close: 100}
	}
	return bars
}

func TestATRNeedsPeriodPlusOneBars(t *testing.T) {
	if got := ATR(flatBars(14, 2), 14); got != 0 {
		t.Fatalf("ATR with 14 bars=%v, expected 0", got)
	}
	if got := ATR(flatBars(15, 2), 14); got != 2 {
		t.Fatalf("ATR with 15 bars=%v, expected 2", got)
	}
}

func TestATRUsesGapsAgainstPreviousClose(t *testing.T) {
	bars := []market.Candle{
		{Close: 100},
		{High: 111, Low: 109, Close: 110}, // gap up: |111-100| = 11
		{High: 101, Low: 99, Close: 100},  // gap down: |99-110| = 11
	}
	if got := ATR(bars, 2); math.Abs(got-11) > 1e-12 {
		t.Fatalf("ATR=%v, expected 11", got)
	}
	if got := ATR(bars, 1); math.Abs(got-11) > 1e-12 {
		t.Fatalf("ATR(1)=%v, expected 11", got)
	}
}
