package backtest

import (
	"bytes"
	"strings"
	"testing"

	"strategy-core/internal/risk"
	"strategy-core/internal/strategy"
)

func TestCompareMatchesSequentialRuns(t *testing.T) {
	bars := trendingCandles(120, 100, 0.4)
	e := NewEngine(risk.DefaultConfig())
	rep := e.Compare(bars, strategy.All(), 1000)

	names := strategy.Names()
	if len(rep.Rows) != len(names) {
		t.Fatalf("rows=%d, want %d", len(rep.Rows), len(names))
	}
	for i, row := range rep.Rows {
		if row.Strategy != names[i] {
			t.Fatalf("row %d is %q, want %q", i, row.Strategy, names[i])
		}
		s, _ := strategy.Get(names[i])
		seq := e.Run(bars, s, 1000)
		if row.ReturnPct != seq.ReturnPct() || row.Trades != seq.Trades {
			t.Fatalf("%s: parallel run differs from sequential", row.Strategy)
		}
		if row.ExcessPct != row.ReturnPct-row.BuyHoldPct {
			t.Fatalf("%s: excess mismatch", row.Strategy)
		}
	}
}

func TestCompareRanking(t *testing.T) {
	bars := flatCandles(25, 100)
	bars[21].High = 110
	bars[23].Low = 90
	cfg := frictionless()
	cfg.TakeProfitPct = 5
	cfg.StopLossPct = 5
	e := NewEngine(cfg)

	winner := named{"winner", scripted{20: strategy.SignalBuy}}
	loser := named{"loser", scripted{22: strategy.SignalBuy}}
	idle := named{"idle", scripted{}}

	rep := e.Compare(bars, []strategy.Strategy{loser, idle, winner}, 1000)
	if rep.BestReturn != "winner" || rep.BestRiskAdjusted != "winner" {
		t.Fatalf("best=%q risk-adjusted=%q", rep.BestReturn, rep.BestRiskAdjusted)
	}
	if rep.Rows[0].MaxDrawdown <= 0 || rep.Rows[0].RiskAdjusted != rep.Rows[0].ReturnPct/rep.Rows[0].MaxDrawdown {
		t.Fatalf("risk-adjusted must divide by drawdown: %+v", rep.Rows[0])
	}
	if rep.Rows[1].RiskAdjusted != rep.Rows[1].ReturnPct {
		t.Fatalf("zero drawdown risk-adjusted must equal return")
	}

	if empty := e.Compare(bars, nil, 1000); empty.BestReturn != "" || len(empty.Rows) != 0 {
		t.Fatalf("empty compare %+v", empty)
	}
}

func TestWriteTable(t *testing.T) {
	rep := NewEngine(risk.DefaultConfig()).Compare(trendingCandles(60, 100, 0.5), strategy.All(), 1000)
	var buf bytes.Buffer
	if err := rep.WriteTable(&buf); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Strategy", "Mean Reversion", "Contra-Momentum", "Best return: " + rep.BestReturn} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

type named struct {
	name string
	scripted
}

func (n named) Name() string { return n.name }
