package strategy

import "strategy-core/internal/market"

// ContraMomentum fades single-bar moves larger than 0.3%.
type ContraMomentum struct{}

func (ContraMomentum) Name() string { return "Contra-Momentum" }

func (ContraMomentum) Description() string {
	return "Fades sharp moves: sells after a >0.3% spike, buys after a >0.3% dip. " +
		"Bets on mean reversion over a single candle. Risky in strong trends."
}

func (ContraMomentum) Evaluate(bars []market.Candle) Signal {
	closes := lastCloses(bars, 2)
	if closes == nil {
		return SignalNone
	}
	prev, last := closes[0], closes[1]
	switch {
	case last > prev*1.003:
		return SignalSell
	case last < prev*0.997:
		return SignalBuy
	}
	return SignalNone
}
