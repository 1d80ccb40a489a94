package strategy

import (
	"strategy-core/internal/market"
)

// Signal is a decision emitted by a strategy.
type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// String renders SignalNone as "none" for logs and JSON.
func (s Signal) String() string {
	if s == SignalNone {
		return "none"
	}
	return string(s)
}

// Actionable reports whether the signal asks for an order.
func (s Signal) Actionable() bool {
	return s == SignalBuy || s == SignalSell
}

// Strategy is a stateless rule over a bar series. Evaluate must return
// SignalNone when the series is shorter than the strategy's lookback and
// must not retain or mutate bars, so one value can serve concurrent backtests.
type Strategy interface {
	Name() string
	Description() string
	Evaluate(bars []market.Candle) Signal
}

// lastCloses returns the closes of the final n bars, or nil if fewer exist.
func lastCloses(bars []market.Candle, n int) []float64 {
	if len(bars) < n {
		return nil
	}
	return market.Closes(bars[len(bars)-n:])
}
