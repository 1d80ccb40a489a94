package risk

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid risk config")

// Config defines the risk parameters shared by the backtester and the live
// runner. Percentages are expressed in percent (2.0 = 2%); FeeRate is a
// fraction (0.001 = 0.1%).
type Config struct {
	FeeRate             float64 `json:"fee_rate" yaml:"fee_rate"`
	SlippagePct         float64 `json:"slippage_pct" yaml:"slippage_pct"`
	StopLossPct         float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct       float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	CooldownSeconds     int     `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	MaxDailyLoss        float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	TradeSize           float64 `json:"trade_size" yaml:"trade_size"`
	UseVolatilitySizing bool    `json:"use_volatility_sizing" yaml:"use_atr_sizing"`
	RiskPerTradePct     float64 `json:"risk_per_trade_pct" yaml:"risk_per_trade_pct"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		FeeRate:             0.001,
		SlippagePct:         0.05,
		StopLossPct:         2.0,
		TakeProfitPct:       3.0,
		CooldownSeconds:     90,
		MaxDailyLoss:        150,
		TradeSize:           0.001,
		UseVolatilitySizing: false,
		RiskPerTradePct:     1.0,
	}
}

// Validate rejects negative or out-of-range values.
func (c Config) Validate() error {
	switch {
	case c.FeeRate < 0 || c.FeeRate >= 1:
		return fmt.Errorf("%w: fee_rate %v must be in [0, 1)", ErrInvalidConfig, c.FeeRate)
	case c.SlippagePct < 0 || c.SlippagePct >= 100:
		return fmt.Errorf("%w: slippage_pct %v must be in [0, 100)", ErrInvalidConfig, c.SlippagePct)
	case c.StopLossPct < 0 || c.StopLossPct >= 100:
		return fmt.Errorf("%w: stop_loss_pct %v must be in [0, 100)", ErrInvalidConfig, c.StopLossPct)
	case c.TakeProfitPct < 0:
		return fmt.Errorf("%w: take_profit_pct %v must be >= 0", ErrInvalidConfig, c.TakeProfitPct)
	case c.CooldownSeconds < 0:
		return fmt.Errorf("%w: cooldown_seconds %d must be >= 0", ErrInvalidConfig, c.CooldownSeconds)
	case c.MaxDailyLoss < 0:
		return fmt.Errorf("%w: max_daily_loss %v must be >= 0", ErrInvalidConfig, c.MaxDailyLoss)
	case c.TradeSize <= 0:
		return fmt.Errorf("%w: trade_size %v must be > 0", ErrInvalidConfig, c.TradeSize)
	case c.RiskPerTradePct < 0 || c.RiskPerTradePct > 100:
		return fmt.Errorf("%w: risk_per_trade_pct %v must be in [0, 100]", ErrInvalidConfig, c.RiskPerTradePct)
	}
	return nil
}

// Cooldown is CooldownSeconds as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}
