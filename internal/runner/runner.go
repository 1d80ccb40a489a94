package runner

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"strategy-core/internal/events"
	"strategy-core/internal/indicators"
	"strategy-core/internal/ledger"
	"strategy-core/internal/market"
	"strategy-core/internal/monitor"
	"strategy-core/internal/risk"
	"strategy-core/internal/strategy"
)

// State is the runner's lifecycle state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// DefaultBarLimit is how many bars each cycle requests.
const DefaultBarLimit = 120

// Ledger is the part of *ledger.Ledger the runner drives.
type Ledger interface {
	PlaceOrder(ctx context.Context, symbol string, side ledger.Side, amount, price float64) ledger.Order
	Position(symbol string) ledger.Position
	RealizedToday() float64
	FlattenAll(ctx context.Context, priceOf func(ctx context.Context, symbol string) (float64, error)) []ledger.Order
}

// RiskSource supplies the risk config for each cycle; satisfied by
// *risk.Manager.
type RiskSource interface {
	Config() risk.Config
}

// Config holds the runner's fixed parameters.
type Config struct {
	Symbol       string
	Timeframe    string
	PollInterval time.Duration
	BarLimit     int
	// BacktestCash is the notional equity used for volatility sizing while
	// flat.
	BacktestCash float64
}

// Runner polls bars, enforces risk rules and places orders for one symbol
// with the selected strategy.
type Runner struct {
	cfg     Config
	source  market.Source
	ledger  Ledger
	risk    RiskSource
	bus     *events.Bus
	metrics *monitor.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	mu          sync.RWMutex
	active      bool
	strat       strategy.Strategy
	lastTrade   time.Time
	lastCycle   time.Time
	lastSignal  strategy.Signal
	lastSkip    string
	pausedOnDay string
}

// New creates an idle runner.
func New(cfg Config, source market.Source, l Ledger, riskSrc RiskSource, bus *events.Bus, strat strategy.Strategy) *Runner {
	if cfg.BarLimit <= 0 {
		cfg.BarLimit = DefaultBarLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if strat == nil {
		strat = strategy.All()[0]
	}
	return &Runner{
		cfg:     cfg,
		source:  source,
		ledger:  l,
		risk:    riskSrc,
		bus:     bus,
		metrics: monitor.NewMetrics(),
		strat:   strat,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// WithClock swaps the time source; used by tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Start activates trading from the next cycle.
func (r *Runner) Start() {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()
	log.Printf("runner: started %s on %s %s", r.Strategy().Name(), r.cfg.Symbol, r.cfg.Timeframe)
}

// Stop returns to idle from the next cycle. Open positions are kept.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	log.Println("runner: stopped")
}

// State reports idle or active.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active {
		return StateActive
	}
	return StateIdle
}

// Strategy returns the selected strategy.
func (r *Runner) Strategy() strategy.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strat
}

// SetStrategy selects a registered strategy by name.
func (r *Runner) SetStrategy(name string) error {
	s, err := strategy.Get(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.strat = s
	r.mu.Unlock()
	log.Printf("runner: strategy set to %s", s.Name())
	return nil
}

// EmergencyStop goes idle and sells every open position at the current
// price. Positions without a price are logged and left open.
func (r *Runner) EmergencyStop(ctx context.Context, reason string) []ledger.Order {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()

	log.Printf("runner: EMERGENCY STOP (%s)", reason)
	if r.bus != nil {
		r.bus.Publish(events.EventEmergencyStop, events.EmergencyStopPayload{Reason: reason})
	}
	placed := r.ledger.FlattenAll(ctx, r.source.FetchPrice)
	if len(placed) > 0 {
		r.markTrade()
	}
	return placed
}

// Run loops until ctx ends, sleeping PollInterval between cycles.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("runner: loop started (poll %s)", r.cfg.PollInterval)
	for {
		if r.State() == StateActive {
			r.safeCycle(ctx)
		}
		if !r.sleep(ctx, r.cfg.PollInterval) {
			log.Println("runner: loop stopped")
			return
		}
	}
}

func (r *Runner) safeCycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.IncErrors()
			log.Printf("runner: cycle panicked: %v\n%s", rec, debug.Stack())
		}
	}()
	r.Cycle(ctx)
}

// Cycle runs one decision step. Run calls it while active; it is exported
// for manual stepping.
func (r *Runner) Cycle(ctx context.Context) {
	timer := monitor.NewTimer(r.metrics.CycleLatency)
	defer timer.Stop()
	r.metrics.IncCycles()

	now := r.now()
	r.mu.Lock()
	r.lastCycle = now
	r.mu.Unlock()

	bars, err := r.source.FetchBars(ctx, r.cfg.Symbol, r.cfg.Timeframe, r.cfg.BarLimit)
	if err != nil || len(bars) == 0 {
		r.skip(fmt.Sprintf("no bars: %v", err))
		return
	}
	price := bars[len(bars)-1].Close
	cfg := r.risk.Config()

	if r.checkExits(ctx, cfg, price) {
		return
	}

	gate, detail := risk.Gate(cfg, r.ledger.RealizedToday(), r.lastTradeAt(), now)
	switch gate {
	case risk.GateDailyLoss:
		r.dailyLossPaused(now, detail)
		r.skip(string(gate))
		return
	case risk.GateCooldown:
		r.skip(string(gate))
		return
	}

	strat := r.Strategy()
	sig := strat.Evaluate(bars)
	r.mu.Lock()
	r.lastSignal = sig
	r.mu.Unlock()
	if !sig.Actionable() {
		return
	}

	pos := r.ledger.Position(r.cfg.Symbol)
	amount := r.positionSize(cfg, bars, pos, price)
	if sig == strategy.SignalSell {
		if pos.Amount <= 0 {
			log.Printf("runner: %s sell signal ignored, no open position", strat.Name())
			return
		}
		amount = min(amount, pos.Amount)
	}

	r.metrics.IncSignals()
	order := r.ledger.PlaceOrder(ctx, r.cfg.Symbol, ledger.Side(sig), amount, price)
	r.markTrade()
	log.Printf("runner: %s signal %s @ %.2f (size %.6f, status %s)", strat.Name(), sig, price, amount, order.Status)
	if r.bus != nil {
		r.bus.Publish(events.EventStrategySignal, events.SignalPayload{
			Strategy: strat.Name(),
			Signal:   sig.String(),
			Price:    price,
			Amount:   amount,
		})
	}
}

// checkExits force-sells the position when price crosses a stop or target.
func (r *Runner) checkExits(ctx context.Context, cfg risk.Config, price float64) bool {
	pos := r.ledger.Position(r.cfg.Symbol)
	if pos.Amount <= 0 || pos.AvgPrice <= 0 {
		return false
	}
	levels := risk.Levels(pos.AvgPrice, cfg)
	reason := levels.CheckPrice(price)
	if reason == risk.ExitNone {
		return false
	}

	var detail string
	if reason == risk.ExitStopLoss {
		detail = fmt.Sprintf("price %.2f <= stop %.2f (entry %.2f, -%.2f%%)", price, levels.StopLoss, pos.AvgPrice, cfg.StopLossPct)
	} else {
		detail = fmt.Sprintf("price %.2f >= target %.2f (entry %.2f, +%.2f%%)", price, levels.TakeProfit, pos.AvgPrice, cfg.TakeProfitPct)
	}
	log.Printf("runner: %s triggered: %s", reason, detail)

	r.ledger.PlaceOrder(ctx, r.cfg.Symbol, ledger.SideSell, pos.Amount, price)
	r.markTrade()
	if r.bus != nil {
		r.bus.Publish(events.EventRiskAlert, events.RiskAlertPayload{
			Symbol: r.cfg.Symbol,
			Reason: string(reason),
			Detail: detail,
		})
	}
	return true
}

// positionSize sizes an entry. Equity is the notional cash while flat, or
// the marked-to-market position plus its realized P&L while holding.
func (r *Runner) positionSize(cfg risk.Config, bars []market.Candle, pos ledger.Position, price float64) float64 {
	if !cfg.UseVolatilitySizing {
		return cfg.TradeSize
	}
	equity := r.cfg.BacktestCash
	if pos.Amount > 0 {
		equity = pos.Amount*price + pos.RealizedPnL
	}
	return risk.PositionSize(cfg, equity, indicators.ATR(bars, indicators.DefaultATRPeriod))
}

// dailyLossPaused logs and alerts once per UTC day.
func (r *Runner) dailyLossPaused(now time.Time, detail string) {
	day := now.UTC().Format("2006-01-02")
	r.mu.Lock()
	first := r.pausedOnDay != day
	r.pausedOnDay = day
	r.mu.Unlock()
	if !first {
		return
	}
	log.Printf("runner: max daily loss hit; strategy paused (%s)", detail)
	if r.bus != nil {
		r.bus.Publish(events.EventRiskAlert, events.RiskAlertPayload{
			Symbol: r.cfg.Symbol,
			Reason: string(risk.GateDailyLoss),
			Detail: detail,
		})
	}
}

func (r *Runner) skip(reason string) {
	r.metrics.IncSkipped()
	r.mu.Lock()
	r.lastSkip = reason
	r.mu.Unlock()
}

func (r *Runner) markTrade() {
	r.mu.Lock()
	r.lastTrade = r.now()
	r.mu.Unlock()
}

func (r *Runner) lastTradeAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastTrade
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
