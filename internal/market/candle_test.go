package market

import (
	"testing"
	"time"

	marketbinance "strategy-core/pkg/market/binance"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"1m", time.Minute, false},
		{"5m", 5 * time.Minute, false},
		{"4h", 4 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"m", 0, true},
		{"0m", 0, true},
		{"3y", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %v,%v want %v", got, err, tt.want)
			}
		})
	}
}

func TestFromKlinesDropsNonIncreasing(t *testing.T) {
	bars := FromKlines([]marketbinance.Kline{
		{OpenTime: 1000, Close: 1},
		{OpenTime: 2000, Close: 2},
		{OpenTime: 2000, Close: 99},
		{OpenTime: 1500, Close: 98},
		{OpenTime: 3000, Close: 3},
	})
	if len(bars) != 3 || bars[2].Close != 3 {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if got := Closes(bars); got[1] != 2 {
		t.Fatalf("Closes=%v", got)
	}
	if !bars[0].Time().Equal(time.UnixMilli(1000)) {
		t.Fatalf("Time() mismatch")
	}
}
