package strategy

import (
	"strategy-core/internal/indicators"
	"strategy-core/internal/market"
)

// MeanReversion bets that price returns to its 20-bar mean.
type MeanReversion struct{}

const meanReversionLookback = 20

func (MeanReversion) Name() string { return "Mean Reversion" }

func (MeanReversion) Description() string {
	return "Bets that price returns to the average: buys when price drops >1% below the " +
		"20-candle mean, sells when it rises >1% above. Best in range-bound, choppy markets."
}

func (MeanReversion) Evaluate(bars []market.Candle) Signal {
	closes := lastCloses(bars, meanReversionLookback)
	if closes == nil {
		return SignalNone
	}
	mean := indicators.SMA(closes, meanReversionLookback)
	last := closes[len(closes)-1]
	switch {
	case last < mean*0.99:
		return SignalBuy
	case last > mean*1.01:
		return SignalSell
	}
	return SignalNone
}
