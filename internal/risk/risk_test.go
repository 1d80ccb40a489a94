package risk

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero stop and target", func(c *Config) { c.StopLossPct, c.TakeProfitPct = 0, 0 }, false},
		{"negative fee", func(c *Config) { c.FeeRate = -0.1 }, true},
		{"fee of one", func(c *Config) { c.FeeRate = 1 }, true},
		{"negative slippage", func(c *Config) { c.SlippagePct = -1 }, true},
		{"stop of 100", func(c *Config) { c.StopLossPct = 100 }, true},
		{"negative target", func(c *Config) { c.TakeProfitPct = -1 }, true},
		{"negative cooldown", func(c *Config) { c.CooldownSeconds = -1 }, true},
		{"negative daily loss", func(c *Config) { c.MaxDailyLoss = -5 }, true},
		{"zero trade size", func(c *Config) { c.TradeSize = 0 }, true},
		{"risk above 100", func(c *Config) { c.RiskPerTradePct = 101 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate()=%v, wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestLevels(t *testing.T) {
	cfg := DefaultConfig()
	l := Levels(100, cfg)
	if math.Abs(l.StopLoss-98) > 1e-9 || math.Abs(l.TakeProfit-103) > 1e-9 {
		t.Fatalf("unexpected levels %+v", l)
	}

	cfg.StopLossPct, cfg.TakeProfitPct = 0, 0
	l = Levels(100, cfg)
	if l.StopLoss != 0 || !math.IsInf(l.TakeProfit, 1) || l.Enabled() {
		t.Fatalf("disabled legs must never trigger: %+v", l)
	}
	if got := l.CheckPrice(0.0001); got != ExitNone {
		t.Fatalf("CheckPrice on disabled levels=%q", got)
	}
}

func TestCheckPrice(t *testing.T) {
	l := ExitLevels{StopLoss: 98, TakeProfit: 103}
	tests := []struct {
		price float64
		want  ExitReason
	}{
		{97, ExitStopLoss},
		{98, ExitStopLoss},
		{100, ExitNone},
		{103, ExitTakeProfit},
		{110, ExitTakeProfit},
	}
	for _, tt := range tests {
		if got := l.CheckPrice(tt.price); got != tt.want {
			t.Fatalf("CheckPrice(%v)=%q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestCheckBarStopWinsWhenBothCross(t *testing.T) {
	l := ExitLevels{StopLoss: 98, TakeProfit: 103}
	reason, level := l.CheckBar(97, 104)
	if reason != ExitStopLoss || level != 98 {
		t.Fatalf("got %q @ %v, expected stop_loss @ 98", reason, level)
	}
	reason, level = l.CheckBar(99, 104)
	if reason != ExitTakeProfit || level != 103 {
		t.Fatalf("got %q @ %v, expected take_profit @ 103", reason, level)
	}
	if reason, _ = l.CheckBar(99, 102); reason != ExitNone {
		t.Fatalf("got %q, expected no exit", reason)
	}
}

func TestPositionSize(t *testing.T) {
	base := DefaultConfig()
	base.TradeSize = 0.01
	base.RiskPerTradePct = 1

	atrCfg := base
	atrCfg.UseVolatilitySizing = true

	tests := []struct {
		name   string
		cfg    Config
		equity float64
		atr    float64
		want   float64
	}{
		{"fixed", base, 1000, 50, 0.01},
		{"atr within bounds", atrCfg, 1000, 500, 0.02},
		{"atr clamped high", atrCfg, 1000, 1, 0.1},
		{"atr clamped low", atrCfg, 1000, 100000, 0.001},
		{"zero atr falls back", atrCfg, 1000, 0, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PositionSize(tt.cfg, tt.equity, tt.atr)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("PositionSize=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MaxDailyLoss = 50
	cfg.CooldownSeconds = 60

	tests := []struct {
		name     string
		cfg      Config
		realized float64
		last     time.Time
		want     GateReason
	}{
		{"open", cfg, 0, time.Time{}, GateOpen},
		{"daily loss reached", cfg, -50, time.Time{}, GateDailyLoss},
		{"daily loss not reached", cfg, -49.99, time.Time{}, GateOpen},
		{"in cooldown", cfg, 0, now.Add(-30 * time.Second), GateCooldown},
		{"cooldown elapsed", cfg, 0, now.Add(-60 * time.Second), GateOpen},
		{"daily loss checked first", cfg, -100, now, GateDailyLoss},
		{"zero max loss blocks any loss", Config{MaxDailyLoss: 0}, -500, time.Time{}, GateDailyLoss},
		{"zero max loss blocks a flat day", Config{MaxDailyLoss: 0}, 0, time.Time{}, GateDailyLoss},
		{"zero max loss with profit", Config{MaxDailyLoss: 0}, 12.5, time.Time{}, GateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := Gate(tt.cfg, tt.realized, tt.last, now)
			if got != tt.want {
				t.Fatalf("Gate=%q (%s), want %q", got, detail, tt.want)
			}
		})
	}
}

func TestManagerUpdate(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	next := DefaultConfig()
	next.StopLossPct = 5
	if err := m.Update(next); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.Config().StopLossPct != 5 {
		t.Fatalf("update not applied")
	}

	bad := next
	bad.TradeSize = -1
	if err := m.Update(bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if m.Config().TradeSize != next.TradeSize {
		t.Fatalf("invalid update must leave config unchanged")
	}
	if _, err := NewManager(bad); err == nil {
		t.Fatalf("NewManager accepted invalid config")
	}
}
