package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"strategy-core/internal/api"
	"strategy-core/internal/events"
	"strategy-core/internal/ledger"
	"strategy-core/internal/market"
	"strategy-core/internal/monitor"
	"strategy-core/internal/order"
	"strategy-core/internal/persistence"
	"strategy-core/internal/risk"
	"strategy-core/internal/runner"
	"strategy-core/pkg/cache"
	"strategy-core/pkg/config"
	"strategy-core/pkg/db"
	exspot "strategy-core/pkg/exchanges/binance/spot"
	marketbinance "strategy-core/pkg/market/binance"
	"strategy-core/pkg/ratelimit"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting strategy core: symbol=%s timeframe=%s port=%s", cfg.Symbol, cfg.Timeframe, cfg.Port)
	if cfg.SettingsPath != "" {
		log.Printf("settings overlay applied from %s", cfg.SettingsPath)
	}
	log.Printf("using db path %s", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}
	writer := persistence.NewBatchWriter(database.DB, 50, time.Second)
	store := persistence.NewStore(database, writer)

	bus := events.NewBus()

	// Market data
	prices := cache.NewPriceCache()
	pollInterval := time.Duration(cfg.PollSeconds) * time.Second
	var (
		source market.Source
		feed   *market.PriceFeed
	)
	if cfg.UseMockFeed {
		log.Println("market: using mock feed")
		source = market.NewMockSource(time.Now().UnixNano(), 100)
	} else {
		limiter := ratelimit.NewRateLimiter(cfg.MarketRateLimit, time.Duration(cfg.MarketRatePeriodSeconds)*time.Second)
		source = market.NewBinanceSource(marketbinance.NewClient(cfg.BinanceTestnet), prices, limiter, pollInterval)
		if cfg.EnableWebsocket {
			feed = market.NewPriceFeed(marketbinance.NewStreamClient(cfg.BinanceTestnet), prices, bus, cfg.Symbol)
		}
	}

	// Execution: paper unless live trading is on and credentials exist.
	var executor ledger.Executor
	venue := "paper"
	if cfg.LiveTrading {
		if !cfg.HasBinanceCredentials() {
			log.Println("executor: LIVE_TRADING set but Binance credentials missing; staying in paper mode")
		} else {
			client := exspot.New(exspot.Config{
				APIKey:    cfg.BinanceAPIKey,
				APISecret: cfg.BinanceAPISecret,
				Testnet:   cfg.BinanceTestnet,
			})
			if err := client.SyncTime(ctx); err != nil {
				log.Printf("executor: time sync failed: %v", err)
			}
			venue = "binance-spot"
			executor = order.NewExecutor(client, venue)
			log.Printf("executor: live orders routed to %s (testnet=%v)", venue, cfg.BinanceTestnet)
		}
	}

	book := ledger.New(executor, store, bus)
	if err := book.Load(ctx); err != nil {
		log.Fatalf("ledger load failed: %v", err)
	}

	riskMgr, err := risk.NewManager(riskConfig(cfg.Risk))
	if err != nil {
		log.Fatalf("risk config invalid: %v", err)
	}

	r := runner.New(runner.Config{
		Symbol:       cfg.Symbol,
		Timeframe:    cfg.Timeframe,
		PollInterval: pollInterval,
		BacktestCash: cfg.BacktestCash,
	}, source, book, riskMgr, bus, nil)
	if err := r.SetStrategy(cfg.Strategy); err != nil {
		log.Printf("runner: %v; keeping %s", err, r.Strategy().Name())
	}

	mon := &monitor.Monitor{
		Bus:     bus,
		Metrics: r.Metrics(),
	}
	mon.Start(ctx)

	var wg sync.WaitGroup
	if feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Run(ctx)
	}()

	deps := api.Deps{
		Bus:     bus,
		DB:      database,
		Runner:  r,
		Ledger:  book,
		Risk:    riskMgr,
		Source:  source,
		Metrics: r.Metrics(),
		Writer:  writer,
	}
	if feed != nil {
		deps.Feed = feed
	}
	server := api.NewServer(deps, api.SystemMeta{
		Live:         book.Live(),
		Venue:        venue,
		Symbol:       cfg.Symbol,
		Timeframe:    cfg.Timeframe,
		UseMockFeed:  cfg.UseMockFeed,
		BacktestCash: cfg.BacktestCash,
		Version:      buildVersion(),
	}, cfg.JWTSecret, cfg.AdminPasswordHash)

	if err := server.Start(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("api server error: %v", err)
		stop()
	}

	log.Println("shutting down")
	r.Stop()
	wg.Wait()
	if err := writer.Close(); err != nil {
		log.Printf("persistence: final flush failed: %v", err)
	}
}

func riskConfig(c config.Risk) risk.Config {
	return risk.Config{
		FeeRate:             c.FeeRate,
		SlippagePct:         c.SlippagePct,
		StopLossPct:         c.StopLossPct,
		TakeProfitPct:       c.TakeProfitPct,
		CooldownSeconds:     c.CooldownSeconds,
		MaxDailyLoss:        c.MaxDailyLoss,
		TradeSize:           c.TradeSize,
		UseVolatilitySizing: c.UseATRSizing,
		RiskPerTradePct:     c.RiskPerTradePct,
	}
}

func buildVersion() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}
