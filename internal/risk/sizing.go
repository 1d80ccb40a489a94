package risk

// PositionSize returns the order amount for a new entry. With volatility
// sizing it risks RiskPerTradePct of equity per ATR of adverse move, clamped
// to [0.1, 10] x TradeSize; otherwise, or when atr is not positive, it is
// TradeSize.
func PositionSize(cfg Config, equity, atr float64) float64 {
	if !cfg.UseVolatilitySizing || atr <= 0 {
		return cfg.TradeSize
	}
	size := equity * cfg.RiskPerTradePct / 100 / atr
	lo, hi := cfg.TradeSize*0.1, cfg.TradeSize*10
	if size < lo {
		return lo
	}
	if size > hi {
		return hi
	}
	return size
}
