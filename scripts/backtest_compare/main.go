package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"strategy-core/internal/backtest"
	"strategy-core/internal/market"
	"strategy-core/internal/risk"
	"strategy-core/internal/strategy"
	"strategy-core/pkg/config"
	marketbinance "strategy-core/pkg/market/binance"
)

// backtest_compare runs every registered strategy over the same bars and
// prints the comparison table.
//
// Usage:
//
//	go run ./scripts/backtest_compare -symbol ETHUSDT -timeframe 15m -bars 500
//	go run ./scripts/backtest_compare -mock
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}

	symbol := flag.String("symbol", cfg.Symbol, "trading pair")
	timeframe := flag.String("timeframe", cfg.Timeframe, "bar timeframe (1m, 5m, 1h, ...)")
	bars := flag.Int("bars", 500, "number of bars to fetch")
	cash := flag.Float64("cash", cfg.BacktestCash, "starting cash")
	mock := flag.Bool("mock", cfg.UseMockFeed, "use the seeded mock source instead of Binance")
	seed := flag.Int64("seed", 42, "mock source seed")
	testnet := flag.Bool("testnet", cfg.BinanceTestnet, "use the Binance testnet")
	flag.Parse()

	var source market.Source
	if *mock {
		source = market.NewMockSource(*seed, 100)
	} else {
		source = market.NewBinanceSource(marketbinance.NewClient(*testnet), nil, nil, 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sym := strings.ToUpper(*symbol)
	candles, err := source.FetchBars(ctx, sym, *timeframe, *bars)
	if err != nil {
		log.Fatalf("fetch bars error: %v", err)
	}
	if len(candles) <= backtest.WarmupBars {
		log.Fatalf("only %d bars for %s %s; need more than %d", len(candles), sym, *timeframe, backtest.WarmupBars)
	}

	rc := risk.Config{
		FeeRate:             cfg.Risk.FeeRate,
		SlippagePct:         cfg.Risk.SlippagePct,
		StopLossPct:         cfg.Risk.StopLossPct,
		TakeProfitPct:       cfg.Risk.TakeProfitPct,
		CooldownSeconds:     cfg.Risk.CooldownSeconds,
		MaxDailyLoss:        cfg.Risk.MaxDailyLoss,
		TradeSize:           cfg.Risk.TradeSize,
		UseVolatilitySizing: cfg.Risk.UseATRSizing,
		RiskPerTradePct:     cfg.Risk.RiskPerTradePct,
	}
	if err := rc.Validate(); err != nil {
		log.Fatalf("risk config error: %v", err)
	}

	log.Printf("comparing %d strategies on %d %s %s bars, cash %.2f", len(strategy.All()), len(candles), sym, *timeframe, *cash)
	rep := backtest.NewEngine(rc).Compare(candles, strategy.All(), *cash)
	if err := rep.WriteTable(os.Stdout); err != nil {
		log.Fatalf("write table error: %v", err)
	}
}
