package backtest

import "time"

// Result summarizes one simulated run.
type Result struct {
	Strategy       string      `json:"strategy"`
	StartCash      float64     `json:"start_cash"`
	EndCash        float64     `json:"end_cash"`
	Trades         int         `json:"trades"`
	Wins           int         `json:"wins"`
	MaxDrawdown    float64     `json:"max_drawdown"`
	EquityCurve    []float64   `json:"equity_curve"`
	DrawdownCurve  []float64   `json:"drawdown_curve"`
	BenchmarkCurve []float64   `json:"benchmark_curve"`
	Timestamps     []time.Time `json:"timestamps"`
}

// ReturnPct is the percentage change from start to end cash.
func (r Result) ReturnPct() float64 {
	if r.StartCash == 0 {
		return 0
	}
	return (r.EndCash - r.StartCash) / r.StartCash * 100
}

// WinRate is the percentage of trades counted as wins.
func (r Result) WinRate() float64 {
	if r.Trades == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Trades) * 100
}

// BuyHoldPct is the benchmark's percentage change over the run.
func (r Result) BuyHoldPct() float64 {
	if len(r.BenchmarkCurve) == 0 || r.BenchmarkCurve[0] == 0 {
		return 0
	}
	first, last := r.BenchmarkCurve[0], r.BenchmarkCurve[len(r.BenchmarkCurve)-1]
	return (last - first) / first * 100
}
