package strategy

import (
	"strategy-core/internal/indicators"
	"strategy-core/internal/market"
)

// Breakout trades a close outside the range of the preceding 19 bars.
type Breakout struct{}

const breakoutLookback = 20

func (Breakout) Name() string { return "Breakout" }

func (Breakout) Description() string {
	return "Catches big moves: buys when price breaks above the 20-candle high, sells when " +
		"it breaks below the 20-candle low. Best when volatility is expanding."
}

func (Breakout) Evaluate(bars []market.Candle) Signal {
	if len(bars) < breakoutLookback {
		return SignalNone
	}
	// The last bar is excluded from its own range.
	prior := bars[len(bars)-breakoutLookback : len(bars)-1]
	highs := make([]float64, len(prior))
	lows := make([]float64, len(prior))
	for i, b := range prior {
		highs[i] = b.High
		lows[i] = b.Low
	}

	last := bars[len(bars)-1].Close
	switch {
	case last > indicators.Highest(highs)*1.001:
		return SignalBuy
	case last < indicators.Lowest(lows)*0.999:
		return SignalSell
	}
	return SignalNone
}
