package backtest

import (
	"time"

	"strategy-core/internal/market"
	"strategy-core/internal/risk"
	"strategy-core/internal/strategy"
)

// WarmupBars is the index of the first simulated bar. Earlier bars only feed
// the strategies' lookback windows.
const WarmupBars = 20

// Engine replays bars through a strategy with the fee, slippage and
// stop-loss/take-profit rules of a risk config. An Engine holds no mutable
// state, so one value can run many backtests concurrently.
type Engine struct {
	config risk.Config
}

// NewEngine creates an engine for cfg.
func NewEngine(cfg risk.Config) *Engine {
	return &Engine{config: cfg}
}

// Config returns the risk parameters the engine simulates with.
func (e *Engine) Config() risk.Config {
	return e.config
}

// Run simulates strat over bars starting with startCash. Each entry commits
// all available cash; each exit liquidates the whole position.
func (e *Engine) Run(bars []market.Candle, strat strategy.Strategy, startCash float64) Result {
	res := Result{StartCash: startCash, EndCash: startCash}
	if strat != nil {
		res.Strategy = strat.Name()
	}
	if strat == nil || len(bars) <= WarmupBars {
		return res
	}

	n := len(bars) - WarmupBars
	res.EquityCurve = make([]float64, 0, n)
	res.DrawdownCurve = make([]float64, 0, n)
	res.BenchmarkCurve = make([]float64, 0, n)
	res.Timestamps = make([]time.Time, 0, n)

	cfg := e.config
	slip := cfg.SlippagePct / 100
	benchStart := bars[WarmupBars].Close

	var (
		cash  = startCash
		units float64
		entry float64
		peak  float64
	)

	sell := func(price float64) {
		proceeds := units * price
		cash = proceeds - proceeds*cfg.FeeRate
		units = 0
		res.Trades++
	}

	for idx := WarmupBars; idx < len(bars); idx++ {
		bar := bars[idx]
		exited := false

		if units > 0 && entry > 0 {
			reason, level := risk.Levels(entry, cfg).CheckBar(bar.Low, bar.High)
			if reason != risk.ExitNone {
				sell(level * (1 - slip))
				if reason == risk.ExitTakeProfit || level > entry {
					res.Wins++
				}
				exited = true
			}
		}

		if !exited {
			switch strat.Evaluate(bars[:idx+1]) {
			case strategy.SignalBuy:
				if units == 0 && cash > 0 {
					price := bar.Close * (1 + slip)
					fee := cash * cfg.FeeRate
					units = (cash - fee) / price
					entry = price
					cash = 0
					res.Trades++
				}
			case strategy.SignalSell:
				if units > 0 {
					price := bar.Close * (1 - slip)
					if price > entry {
						res.Wins++
					}
					sell(price)
				}
			}
		}

		equity := cash + units*bar.Close
		if equity > peak {
			peak = equity
		}
		var dd float64
		if peak > 0 {
			dd = (peak - equity) / peak * 100
		}
		bench := startCash
		if benchStart > 0 {
			bench = startCash * bar.Close / benchStart
		}

		res.EquityCurve = append(res.EquityCurve, equity)
		res.DrawdownCurve = append(res.DrawdownCurve, dd)
		res.BenchmarkCurve = append(res.BenchmarkCurve, bench)
		res.Timestamps = append(res.Timestamps, bar.Time())
		if dd > res.MaxDrawdown {
			res.MaxDrawdown = dd
		}
	}

	res.EndCash = cash + units*bars[len(bars)-1].Close
	return res
}
