package strategy

import (
	"strategy-core/internal/indicators"
	"strategy-core/internal/market"
)

// Scalping buys the bottom and sells the top tenth of the 10-bar close range.
type Scalping struct{}

const scalpingLookback = 10

func (Scalping) Name() string { return "Scalping" }

func (Scalping) Description() string {
	return "Makes many small trades: buys near the bottom 10% of the 10-candle range, " +
		"sells near the top 10%. Best in tight, low-volatility sideways markets."
}

func (Scalping) Evaluate(bars []market.Candle) Signal {
	closes := lastCloses(bars, scalpingLookback)
	if closes == nil {
		return SignalNone
	}
	lo, hi := indicators.Lowest(closes), indicators.Highest(closes)
	spread := hi - lo
	if spread == 0 {
		return SignalNone
	}
	last := closes[len(closes)-1]
	switch {
	case last <= lo+spread*0.1:
		return SignalBuy
	case last >= hi-spread*0.1:
		return SignalSell
	}
	return SignalNone
}
