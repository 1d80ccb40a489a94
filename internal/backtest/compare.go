package backtest

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"strategy-core/internal/market"
	"strategy-core/internal/strategy"
)

// Comparison is one strategy's row in a comparison report.
type Comparison struct {
	Strategy     string  `json:"strategy"`
	ReturnPct    float64 `json:"return_pct"`
	BuyHoldPct   float64 `json:"buy_hold_pct"`
	ExcessPct    float64 `json:"excess_pct"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	Trades       int     `json:"trades"`
	RiskAdjusted float64 `json:"risk_adjusted"`
	Result       Result  `json:"-"`
}

// Report ranks strategies run over the same bars.
type Report struct {
	Rows             []Comparison `json:"rows"`
	BestReturn       string       `json:"best_return"`
	BestRiskAdjusted string       `json:"best_risk_adjusted"`
}

// Compare runs every strategy over bars in parallel and ranks them. Rows
// keep the order of strategies. Ties go to the earlier strategy.
func (e *Engine) Compare(bars []market.Candle, strategies []strategy.Strategy, startCash float64) Report {
	rows := make([]Comparison, len(strategies))

	var wg sync.WaitGroup
	for i, s := range strategies {
		wg.Add(1)
		go func(i int, s strategy.Strategy) {
			defer wg.Done()
			rows[i] = summarize(e.Run(bars, s, startCash))
		}(i, s)
	}
	wg.Wait()

	rep := Report{Rows: rows}
	if len(rows) == 0 {
		return rep
	}
	best, bestAdj := 0, 0
	for i := range rows {
		if rows[i].ReturnPct > rows[best].ReturnPct {
			best = i
		}
		if rows[i].RiskAdjusted > rows[bestAdj].RiskAdjusted {
			bestAdj = i
		}
	}
	rep.BestReturn = rows[best].Strategy
	rep.BestRiskAdjusted = rows[bestAdj].Strategy
	return rep
}

func summarize(r Result) Comparison {
	c := Comparison{
		Strategy:    r.Strategy,
		ReturnPct:   r.ReturnPct(),
		BuyHoldPct:  r.BuyHoldPct(),
		MaxDrawdown: r.MaxDrawdown,
		WinRate:     r.WinRate(),
		Trades:      r.Trades,
		Result:      r,
	}
	c.ExcessPct = c.ReturnPct - c.BuyHoldPct
	c.RiskAdjusted = c.ReturnPct
	if c.MaxDrawdown > 0 {
		c.RiskAdjusted = c.ReturnPct / c.MaxDrawdown
	}
	return c
}

// WriteTable renders the report as an aligned text table.
func (r Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Strategy\tReturn %\tBuy&Hold %\tExcess %\tMax DD %\tWin %\tTrades\t")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f\t%d\t\n",
			row.Strategy, row.ReturnPct, row.BuyHoldPct, row.ExcessPct, row.MaxDrawdown, row.WinRate, row.Trades)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nBest return: %s\nBest risk-adjusted: %s\n", r.BestReturn, r.BestRiskAdjusted)
	return err
}
