package risk

import "math"

// ExitReason names why a position was force-closed.
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// ExitLevels are absolute stop-loss and take-profit prices for one entry.
// A disabled stop is 0 and a disabled target is +Inf, so neither can trigger.
type ExitLevels struct {
	StopLoss   float64
	TakeProfit float64
}

// Levels derives exit prices from an entry price.
func Levels(entry float64, cfg Config) ExitLevels {
	l := ExitLevels{StopLoss: 0, TakeProfit: math.Inf(1)}
	if cfg.StopLossPct > 0 {
		l.StopLoss = entry * (1 - cfg.StopLossPct/100)
	}
	if cfg.TakeProfitPct > 0 {
		l.TakeProfit = entry * (1 + cfg.TakeProfitPct/100)
	}
	return l
}

// Enabled reports whether either leg can trigger.
func (l ExitLevels) Enabled() bool {
	return l.StopLoss > 0 || !math.IsInf(l.TakeProfit, 1)
}

// CheckPrice evaluates a single observed price; stop-loss wins ties.
func (l ExitLevels) CheckPrice(price float64) ExitReason {
	if l.StopLoss > 0 && price <= l.StopLoss {
		return ExitStopLoss
	}
	if price >= l.TakeProfit {
		return ExitTakeProfit
	}
	return ExitNone
}

// CheckBar evaluates a bar's range. The stop is checked against the low
// before the target against the high, so a bar spanning both exits at the
// stop. It returns the level price that was crossed.
func (l ExitLevels) CheckBar(low, high float64) (ExitReason, float64) {
	if l.StopLoss > 0 && low <= l.StopLoss {
		return ExitStopLoss, l.StopLoss
	}
	if high >= l.TakeProfit {
		return ExitTakeProfit, l.TakeProfit
	}
	return ExitNone, 0
}
