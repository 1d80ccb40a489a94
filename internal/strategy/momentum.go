package strategy

import "strategy-core/internal/market"

// Momentum follows the trend over the last five closes.
type Momentum struct{}

const momentumLookback = 5

func (Momentum) Name() string { return "Momentum" }

func (Momentum) Description() string {
	return "Follows the trend: buys when price rises >0.2% over the last 5 candles, " +
		"sells when it drops >0.2%. Best in trending markets with clear direction."
}

func (Momentum) Evaluate(bars []market.Candle) Signal {
	closes := lastCloses(bars, momentumLookback)
	if closes == nil {
		return SignalNone
	}
	first, last := closes[0], closes[len(closes)-1]
	switch {
	case last > first*1.002:
		return SignalBuy
	case last < first*0.998:
		return SignalSell
	}
	return SignalNone
}
