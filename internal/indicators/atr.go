package indicators

import (
	"math"

	"strategy-core/internal/market"
)

// DefaultATRPeriod is the lookback used for volatility sizing.
const DefaultATRPeriod = 14

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(bar market.Candle, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

// ATR averages the last period true ranges. It returns 0 when fewer than
// period+1 bars are available.
func ATR(bars []market.Candle, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	return sum / float64(period)
}
